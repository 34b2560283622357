package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role constants for user authorization.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleUser      = "user"

	// RolePremium is never assigned at registration but is honored by the
	// premium-access check. It only appears via direct database edits.
	RolePremium = "premium"
)

var ValidRoles = []string{RoleAdmin, RoleModerator, RoleUser}

// ReadingListItem is one entry in a user's reading list. At most one entry
// exists per book; AddToReadingList enforces that.
type ReadingListItem struct {
	Book       primitive.ObjectID `bson:"book" json:"book"`
	AddedAt    time.Time          `bson:"addedAt" json:"addedAt"`
	Notes      string             `bson:"notes" json:"notes"`
	IsFavorite bool               `bson:"isFavorite" json:"isFavorite"`
	LastRead   *time.Time         `bson:"lastRead,omitempty" json:"lastRead,omitempty"`
	Progress   int                `bson:"progress" json:"progress"` // 0-100
}

// CurrentlyReadingItem tracks page position for a book the user is reading.
type CurrentlyReadingItem struct {
	Book      primitive.ObjectID `bson:"book" json:"book"`
	LastPage  int                `bson:"lastPage" json:"lastPage"`
	StartedAt time.Time          `bson:"startedAt" json:"startedAt"`
}

// ReadingStats aggregates reading activity. Favorites here is a separate
// concept from ReadingListItem.IsFavorite: the per-entry flag is a quick
// toggle on the reading list, this set is a curated favorites collection.
// The two are independent and may disagree.
type ReadingStats struct {
	TotalBooksRead   int                    `bson:"totalBooksRead" json:"totalBooksRead"`
	TotalReadingTime int                    `bson:"totalReadingTime" json:"totalReadingTime"` // minutes
	CurrentlyReading []CurrentlyReadingItem `bson:"currentlyReading" json:"currentlyReading"`
	Favorites        []primitive.ObjectID   `bson:"favorites" json:"favorites"`
}

// DownloadedBook records downloads of one book. Repeat downloads increment
// DownloadCount on the existing entry instead of appending a new one.
type DownloadedBook struct {
	Book          primitive.ObjectID `bson:"book" json:"book"`
	DownloadedAt  time.Time          `bson:"downloadedAt" json:"downloadedAt"`
	DownloadCount int                `bson:"downloadCount" json:"downloadCount"`
}

// Preferences holds per-user settings.
type Preferences struct {
	Notifications bool   `bson:"notifications" json:"notifications"`
	Theme         string `bson:"theme" json:"theme"` // light or dark
}

// User is the aggregate root. It owns the embedded engagement collections;
// every mutation goes through a method on this type and the whole document is
// persisted in one write. Never mutate a detached copy of an embedded slice.
type User struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name"`
	Email       string             `bson:"email" json:"email"`
	Password    string             `bson:"password" json:"-"` // bcrypt hash
	Role        string             `bson:"role" json:"role"`
	Avatar      string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	IsActive    bool               `bson:"isActive" json:"isActive"`
	LastLogin   *time.Time         `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	Preferences Preferences        `bson:"preferences" json:"preferences"`

	ReadingList     []ReadingListItem `bson:"readingList" json:"readingList"`
	Stats           ReadingStats      `bson:"readingStats" json:"readingStats"`
	DownloadedBooks []DownloadedBook  `bson:"downloadedBooks" json:"downloadedBooks"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// ReadingListUpdate carries a partial update for one reading list entry.
// Nil fields are left untouched.
type ReadingListUpdate struct {
	Notes      *string `json:"notes"`
	Progress   *int    `json:"progress"`
	IsFavorite *bool   `json:"isFavorite"`
}

// ReadingListStats are counts derived from the reading list.
type ReadingListStats struct {
	TotalBooks int `json:"totalBooks"`
	NotStarted int `json:"notStarted"`
	ReadingNow int `json:"readingNow"`
	Completed  int `json:"completed"`
	Favorites  int `json:"favorites"`
}

func (u *User) findReadingListItem(bookID primitive.ObjectID) *ReadingListItem {
	for i := range u.ReadingList {
		if u.ReadingList[i].Book == bookID {
			return &u.ReadingList[i]
		}
	}
	return nil
}

// AddToReadingList appends a new entry for bookID. A second add for the same
// book is an error, not a no-op.
func (u *User) AddToReadingList(bookID primitive.ObjectID, notes string, now time.Time) error {
	if u.findReadingListItem(bookID) != nil {
		return ErrDuplicateEntry
	}
	u.ReadingList = append(u.ReadingList, ReadingListItem{
		Book:    bookID,
		AddedAt: now,
		Notes:   notes,
	})
	return nil
}

// RemoveFromReadingList removes the entry for bookID, preserving the order of
// the remaining entries.
func (u *User) RemoveFromReadingList(bookID primitive.ObjectID) error {
	for i := range u.ReadingList {
		if u.ReadingList[i].Book == bookID {
			u.ReadingList = append(u.ReadingList[:i], u.ReadingList[i+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}

// UpdateReadingListEntry applies a partial update to the entry for bookID.
// Progress outside [0,100] is silently ignored; an in-range progress update
// also stamps LastRead. Notes and IsFavorite never touch LastRead.
func (u *User) UpdateReadingListEntry(bookID primitive.ObjectID, upd ReadingListUpdate, now time.Time) error {
	item := u.findReadingListItem(bookID)
	if item == nil {
		return ErrEntryNotFound
	}
	if upd.Notes != nil {
		item.Notes = *upd.Notes
	}
	if upd.Progress != nil {
		if p := *upd.Progress; p >= 0 && p <= 100 {
			item.Progress = p
			t := now
			item.LastRead = &t
		}
	}
	if upd.IsFavorite != nil {
		item.IsFavorite = *upd.IsFavorite
	}
	return nil
}

// ToggleReadingListFavorite flips the per-entry favorite flag and returns the
// new value. Independent of the Stats.Favorites set.
func (u *User) ToggleReadingListFavorite(bookID primitive.ObjectID) (bool, error) {
	item := u.findReadingListItem(bookID)
	if item == nil {
		return false, ErrEntryNotFound
	}
	item.IsFavorite = !item.IsFavorite
	return item.IsFavorite, nil
}

// DeriveReadingListStats computes counts over the reading list. Pure read.
func (u *User) DeriveReadingListStats() ReadingListStats {
	stats := ReadingListStats{TotalBooks: len(u.ReadingList)}
	for i := range u.ReadingList {
		item := &u.ReadingList[i]
		switch {
		case item.Progress == 0:
			stats.NotStarted++
		case item.Progress == 100:
			stats.Completed++
		default:
			stats.ReadingNow++
		}
		if item.IsFavorite {
			stats.Favorites++
		}
	}
	return stats
}

// AddToFavorites adds bookID to the favorites set. Idempotent: adding a book
// already present is a successful no-op. Returns whether the set changed.
func (u *User) AddToFavorites(bookID primitive.ObjectID) bool {
	for _, fav := range u.Stats.Favorites {
		if fav == bookID {
			return false
		}
	}
	u.Stats.Favorites = append(u.Stats.Favorites, bookID)
	return true
}

// RemoveFromFavorites removes bookID from the favorites set. Absence is not
// an error.
func (u *User) RemoveFromFavorites(bookID primitive.ObjectID) {
	for i, fav := range u.Stats.Favorites {
		if fav == bookID {
			u.Stats.Favorites = append(u.Stats.Favorites[:i], u.Stats.Favorites[i+1:]...)
			return
		}
	}
}

// TrackCurrentlyReading upserts the page position for bookID: an existing
// entry gets its LastPage updated, otherwise a new entry starts now.
func (u *User) TrackCurrentlyReading(bookID primitive.ObjectID, lastPage int, now time.Time) {
	for i := range u.Stats.CurrentlyReading {
		if u.Stats.CurrentlyReading[i].Book == bookID {
			u.Stats.CurrentlyReading[i].LastPage = lastPage
			return
		}
	}
	u.Stats.CurrentlyReading = append(u.Stats.CurrentlyReading, CurrentlyReadingItem{
		Book:      bookID,
		LastPage:  lastPage,
		StartedAt: now,
	})
}

// MarkCompleted removes bookID from currentlyReading (no error if absent) and
// increments TotalBooksRead. The increment is unconditional: completing the
// same book twice counts twice.
func (u *User) MarkCompleted(bookID primitive.ObjectID) {
	for i := range u.Stats.CurrentlyReading {
		if u.Stats.CurrentlyReading[i].Book == bookID {
			u.Stats.CurrentlyReading = append(u.Stats.CurrentlyReading[:i], u.Stats.CurrentlyReading[i+1:]...)
			break
		}
	}
	u.Stats.TotalBooksRead++
}

// TrackDownload records a download of bookID: an existing entry gets its
// counter incremented and timestamp refreshed, otherwise a new entry is
// appended with count 1. Never errors on repeat calls.
func (u *User) TrackDownload(bookID primitive.ObjectID, now time.Time) {
	for i := range u.DownloadedBooks {
		if u.DownloadedBooks[i].Book == bookID {
			u.DownloadedBooks[i].DownloadCount++
			u.DownloadedBooks[i].DownloadedAt = now
			return
		}
	}
	u.DownloadedBooks = append(u.DownloadedBooks, DownloadedBook{
		Book:          bookID,
		DownloadedAt:  now,
		DownloadCount: 1,
	})
}

// TotalDownloads sums per-book download counters.
func (u *User) TotalDownloads() int {
	total := 0
	for _, d := range u.DownloadedBooks {
		total += d.DownloadCount
	}
	return total
}

// HasPremiumAccess reports whether the user may download premium books.
func (u *User) HasPremiumAccess() bool {
	return u.Role == RoleAdmin || u.Role == RolePremium
}
