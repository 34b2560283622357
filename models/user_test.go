package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }

func TestAddToReadingList(t *testing.T) {
	now := time.Now()
	bookA := primitive.NewObjectID()
	bookB := primitive.NewObjectID()
	u := &User{}

	require.NoError(t, u.AddToReadingList(bookA, "start here", now))
	require.NoError(t, u.AddToReadingList(bookB, "", now))
	require.Len(t, u.ReadingList, 2)
	assert.Equal(t, "start here", u.ReadingList[0].Notes)
	assert.Equal(t, 0, u.ReadingList[0].Progress)
	assert.False(t, u.ReadingList[0].IsFavorite)
	assert.Nil(t, u.ReadingList[0].LastRead)

	// A second add for the same book is an error, not a no-op.
	err := u.AddToReadingList(bookA, "again", now)
	assert.ErrorIs(t, err, ErrDuplicateEntry)
	assert.Len(t, u.ReadingList, 2)
}

func TestReadingListUniqueness(t *testing.T) {
	now := time.Now()
	book := primitive.NewObjectID()
	u := &User{}

	for i := 0; i < 3; i++ {
		_ = u.AddToReadingList(book, "", now)
		require.NoError(t, u.RemoveFromReadingList(book))
		require.NoError(t, u.AddToReadingList(book, "", now))
	}
	count := 0
	for _, item := range u.ReadingList {
		if item.Book == book {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRemoveFromReadingList(t *testing.T) {
	now := time.Now()
	bookA := primitive.NewObjectID()
	bookB := primitive.NewObjectID()
	bookC := primitive.NewObjectID()
	u := &User{}
	require.NoError(t, u.AddToReadingList(bookA, "", now))
	require.NoError(t, u.AddToReadingList(bookB, "", now))
	require.NoError(t, u.AddToReadingList(bookC, "", now))

	require.NoError(t, u.RemoveFromReadingList(bookB))
	require.Len(t, u.ReadingList, 2)
	// Order of the survivors is preserved.
	assert.Equal(t, bookA, u.ReadingList[0].Book)
	assert.Equal(t, bookC, u.ReadingList[1].Book)

	err := u.RemoveFromReadingList(bookB)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.Len(t, u.ReadingList, 2)
}

func TestUpdateReadingListEntry(t *testing.T) {
	now := time.Now()
	book := primitive.NewObjectID()

	t.Run("entry absent", func(t *testing.T) {
		u := &User{}
		err := u.UpdateReadingListEntry(book, ReadingListUpdate{Notes: strPtr("x")}, now)
		assert.ErrorIs(t, err, ErrEntryNotFound)
	})

	t.Run("partial update leaves other fields alone", func(t *testing.T) {
		u := &User{}
		require.NoError(t, u.AddToReadingList(book, "original", now))
		require.NoError(t, u.UpdateReadingListEntry(book, ReadingListUpdate{IsFavorite: boolPtr(true)}, now))
		assert.Equal(t, "original", u.ReadingList[0].Notes)
		assert.True(t, u.ReadingList[0].IsFavorite)
		assert.Nil(t, u.ReadingList[0].LastRead, "favorite update must not touch lastRead")
	})

	t.Run("in-range progress stamps lastRead", func(t *testing.T) {
		u := &User{}
		require.NoError(t, u.AddToReadingList(book, "", now))
		later := now.Add(time.Hour)
		require.NoError(t, u.UpdateReadingListEntry(book, ReadingListUpdate{Progress: intPtr(45)}, later))
		assert.Equal(t, 45, u.ReadingList[0].Progress)
		require.NotNil(t, u.ReadingList[0].LastRead)
		assert.Equal(t, later, *u.ReadingList[0].LastRead)
	})

	t.Run("out-of-range progress silently ignored", func(t *testing.T) {
		u := &User{}
		require.NoError(t, u.AddToReadingList(book, "", now))
		require.NoError(t, u.UpdateReadingListEntry(book, ReadingListUpdate{Progress: intPtr(30)}, now))

		for _, bad := range []int{-1, 101, 150} {
			err := u.UpdateReadingListEntry(book, ReadingListUpdate{Progress: intPtr(bad)}, now.Add(time.Hour))
			require.NoError(t, err, "soft validation: no error for progress %d", bad)
			assert.Equal(t, 30, u.ReadingList[0].Progress)
			assert.Equal(t, now, *u.ReadingList[0].LastRead, "rejected progress must not update lastRead")
		}
	})

	t.Run("rejected progress still applies notes in the same update", func(t *testing.T) {
		u := &User{}
		require.NoError(t, u.AddToReadingList(book, "", now))
		upd := ReadingListUpdate{Notes: strPtr("kept"), Progress: intPtr(150)}
		require.NoError(t, u.UpdateReadingListEntry(book, upd, now))
		assert.Equal(t, "kept", u.ReadingList[0].Notes)
		assert.Equal(t, 0, u.ReadingList[0].Progress)
	})

	t.Run("completed entry may move backwards", func(t *testing.T) {
		u := &User{}
		require.NoError(t, u.AddToReadingList(book, "", now))
		require.NoError(t, u.UpdateReadingListEntry(book, ReadingListUpdate{Progress: intPtr(100)}, now))
		require.NoError(t, u.UpdateReadingListEntry(book, ReadingListUpdate{Progress: intPtr(20)}, now))
		assert.Equal(t, 20, u.ReadingList[0].Progress)
	})
}

func TestToggleReadingListFavorite(t *testing.T) {
	now := time.Now()
	book := primitive.NewObjectID()
	u := &User{}

	_, err := u.ToggleReadingListFavorite(book)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	require.NoError(t, u.AddToReadingList(book, "", now))
	on, err := u.ToggleReadingListFavorite(book)
	require.NoError(t, err)
	assert.True(t, on)
	off, err := u.ToggleReadingListFavorite(book)
	require.NoError(t, err)
	assert.False(t, off)
}

func TestDeriveReadingListStats(t *testing.T) {
	now := time.Now()
	u := &User{}
	for _, p := range []int{0, 0, 45, 100} {
		book := primitive.NewObjectID()
		require.NoError(t, u.AddToReadingList(book, "", now))
		if p != 0 {
			require.NoError(t, u.UpdateReadingListEntry(book, ReadingListUpdate{Progress: intPtr(p)}, now))
		}
	}
	_, err := u.ToggleReadingListFavorite(u.ReadingList[2].Book)
	require.NoError(t, err)

	stats := u.DeriveReadingListStats()
	assert.Equal(t, 4, stats.TotalBooks)
	assert.Equal(t, 2, stats.NotStarted)
	assert.Equal(t, 1, stats.ReadingNow)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Favorites)
}

func TestFavoritesIdempotent(t *testing.T) {
	book := primitive.NewObjectID()
	u := &User{}

	assert.True(t, u.AddToFavorites(book))
	assert.False(t, u.AddToFavorites(book), "repeat add is a no-op")
	assert.Len(t, u.Stats.Favorites, 1)

	u.RemoveFromFavorites(book)
	assert.Empty(t, u.Stats.Favorites)
	// Removing again is not an error either.
	u.RemoveFromFavorites(book)
	assert.Empty(t, u.Stats.Favorites)
}

func TestTwoFavoriteConceptsAreIndependent(t *testing.T) {
	now := time.Now()
	book := primitive.NewObjectID()
	u := &User{}
	require.NoError(t, u.AddToReadingList(book, "", now))

	u.AddToFavorites(book)
	assert.False(t, u.ReadingList[0].IsFavorite, "favorites set must not touch the entry flag")

	_, err := u.ToggleReadingListFavorite(book)
	require.NoError(t, err)
	u.RemoveFromFavorites(book)
	assert.True(t, u.ReadingList[0].IsFavorite, "entry flag survives favorites-set removal")
}

func TestTrackCurrentlyReading(t *testing.T) {
	now := time.Now()
	book := primitive.NewObjectID()
	u := &User{}

	u.TrackCurrentlyReading(book, 10, now)
	require.Len(t, u.Stats.CurrentlyReading, 1)
	assert.Equal(t, 10, u.Stats.CurrentlyReading[0].LastPage)
	assert.Equal(t, now, u.Stats.CurrentlyReading[0].StartedAt)

	// Upsert: same book updates the page, keeps startedAt.
	u.TrackCurrentlyReading(book, 42, now.Add(time.Hour))
	require.Len(t, u.Stats.CurrentlyReading, 1)
	assert.Equal(t, 42, u.Stats.CurrentlyReading[0].LastPage)
	assert.Equal(t, now, u.Stats.CurrentlyReading[0].StartedAt)
}

func TestMarkCompleted(t *testing.T) {
	now := time.Now()
	book := primitive.NewObjectID()
	u := &User{}
	u.TrackCurrentlyReading(book, 10, now)

	u.MarkCompleted(book)
	assert.Empty(t, u.Stats.CurrentlyReading)
	assert.Equal(t, 1, u.Stats.TotalBooksRead)

	// The counter is unconditional: completing again counts again.
	u.MarkCompleted(book)
	assert.Equal(t, 2, u.Stats.TotalBooksRead)
}

func TestTrackDownloadAccumulates(t *testing.T) {
	now := time.Now()
	book := primitive.NewObjectID()
	other := primitive.NewObjectID()
	u := &User{}

	u.TrackDownload(book, now)
	u.TrackDownload(book, now.Add(time.Minute))
	u.TrackDownload(book, now.Add(2*time.Minute))
	u.TrackDownload(other, now)

	require.Len(t, u.DownloadedBooks, 2)
	assert.Equal(t, 3, u.DownloadedBooks[0].DownloadCount)
	assert.Equal(t, now.Add(2*time.Minute), u.DownloadedBooks[0].DownloadedAt)
	assert.Equal(t, 1, u.DownloadedBooks[1].DownloadCount)
	assert.Equal(t, 4, u.TotalDownloads())
}

func TestHasPremiumAccess(t *testing.T) {
	cases := []struct {
		role string
		want bool
	}{
		{RoleAdmin, true},
		{RolePremium, true},
		{RoleModerator, false},
		{RoleUser, false},
		{"", false},
	}
	for _, tc := range cases {
		u := &User{Role: tc.role}
		assert.Equal(t, tc.want, u.HasPremiumAccess(), "role %q", tc.role)
	}
}
