package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/elibrary/backend/middleware"
	"github.com/elibrary/backend/models"
	"github.com/elibrary/backend/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type memUserStore struct {
	users map[primitive.ObjectID]*models.User
}

func (m *memUserStore) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return m.users[id], nil
}

func (m *memUserStore) ReplaceUser(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

type memCatalog struct {
	books map[primitive.ObjectID]*models.Book
	incs  int
}

func (m *memCatalog) BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	return m.books[id], nil
}

func (m *memCatalog) IncrementDownloadCount(ctx context.Context, id primitive.ObjectID) error {
	m.incs++
	return nil
}

type fixture struct {
	router  *chi.Mux
	user    *models.User
	book    *models.Book
	catalog *memCatalog
}

// newFixture wires the reading-list and engagement handlers behind a router
// with the caller already authenticated, the way the real middleware leaves
// the context.
func newFixture(t *testing.T, role string) *fixture {
	t.Helper()

	user := &models.User{
		ID:       primitive.NewObjectID(),
		Name:     "Reader",
		Email:    "reader@example.com",
		Role:     role,
		IsActive: true,
	}
	book := &models.Book{
		ID:          primitive.NewObjectID(),
		Title:       "Clean Architecture",
		Author:      "Robert C. Martin",
		AccessLevel: models.AccessPublic,
		IsActive:    true,
	}
	users := &memUserStore{users: map[primitive.ObjectID]*models.User{user.ID: user}}
	catalog := &memCatalog{books: map[primitive.ObjectID]*models.Book{book.ID: book}}
	svc := service.NewEngagement(users, catalog, zap.NewNop())

	rl := &ReadingListHandler{Svc: svc, Log: zap.NewNop()}
	eng := &EngagementHandler{Svc: svc, Log: zap.NewNop()}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), middleware.UserIDKey, user.ID)
			ctx = context.WithValue(ctx, middleware.RoleKey, role)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/reading-list", func(r chi.Router) {
		r.Get("/", rl.List)
		r.Post("/", rl.Add)
		r.Get("/stats", rl.Stats)
		r.Delete("/{bookId}", rl.Remove)
		r.Put("/{bookId}", rl.Update)
		r.Post("/{bookId}/favorite", rl.ToggleFavorite)
	})
	r.Route("/users", func(r chi.Router) {
		r.Get("/favorites", eng.ListFavorites)
		r.Post("/favorites", eng.AddFavorite)
		r.Delete("/favorites/{bookId}", eng.RemoveFavorite)
		r.Put("/reading-progress", eng.ReadingProgress)
		r.Post("/reading-complete", eng.ReadingComplete)
		r.Post("/track-download", eng.TrackDownload)
		r.Get("/downloads", eng.Downloads)
		r.Get("/stats/personal", eng.PersonalStats)
	})

	return &fixture{router: r, user: user, book: book, catalog: catalog}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec, env
}

func TestReadingListAddAndList(t *testing.T) {
	f := newFixture(t, models.RoleUser)

	rec, env := f.do(t, http.MethodPost, "/reading-list/", AddToReadingListRequest{
		BookID: f.book.ID.Hex(), Notes: "weekend read",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, "Book added to reading list", env.Message)

	rec, env = f.do(t, http.MethodGet, "/reading-list/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	items, ok := env.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, items, 1)
}

func TestReadingListAddDuplicateIs400(t *testing.T) {
	f := newFixture(t, models.RoleUser)
	body := AddToReadingListRequest{BookID: f.book.ID.Hex()}

	rec, _ := f.do(t, http.MethodPost, "/reading-list/", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := f.do(t, http.MethodPost, "/reading-list/", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "book already in reading list", env.Message)
}

func TestReadingListAddUnknownBookIs404(t *testing.T) {
	f := newFixture(t, models.RoleUser)

	rec, env := f.do(t, http.MethodPost, "/reading-list/", AddToReadingListRequest{
		BookID: primitive.NewObjectID().Hex(),
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, env.Success)
}

func TestReadingListAddValidation(t *testing.T) {
	f := newFixture(t, models.RoleUser)

	rec, _ := f.do(t, http.MethodPost, "/reading-list/", AddToReadingListRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPost, "/reading-list/", AddToReadingListRequest{BookID: "not-an-id"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReadingListRemoveAbsentIs404(t *testing.T) {
	f := newFixture(t, models.RoleUser)

	rec, env := f.do(t, http.MethodDelete, "/reading-list/"+f.book.ID.Hex(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "book not found in reading list", env.Message)
}

func TestReadingListUpdate(t *testing.T) {
	f := newFixture(t, models.RoleUser)
	_, _ = f.do(t, http.MethodPost, "/reading-list/", AddToReadingListRequest{BookID: f.book.ID.Hex()})

	rec, env := f.do(t, http.MethodPut, "/reading-list/"+f.book.ID.Hex(),
		map[string]interface{}{"progress": 45, "notes": "halfway"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	entry := f.user.ReadingList[0]
	assert.Equal(t, 45, entry.Progress)
	assert.Equal(t, "halfway", entry.Notes)
	assert.NotNil(t, entry.LastRead)
}

func TestReadingListUpdateOutOfRangeProgressStillSucceeds(t *testing.T) {
	f := newFixture(t, models.RoleUser)
	_, _ = f.do(t, http.MethodPost, "/reading-list/", AddToReadingListRequest{BookID: f.book.ID.Hex()})

	rec, env := f.do(t, http.MethodPut, "/reading-list/"+f.book.ID.Hex(),
		map[string]interface{}{"progress": 150})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.Equal(t, 0, f.user.ReadingList[0].Progress)
}

func TestReadingListToggleFavorite(t *testing.T) {
	f := newFixture(t, models.RoleUser)
	_, _ = f.do(t, http.MethodPost, "/reading-list/", AddToReadingListRequest{BookID: f.book.ID.Hex()})

	rec, env := f.do(t, http.MethodPost, "/reading-list/"+f.book.ID.Hex()+"/favorite", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Book added to favorites", env.Message)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["isFavorite"])

	rec, env = f.do(t, http.MethodPost, "/reading-list/"+f.book.ID.Hex()+"/favorite", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Book removed from favorites", env.Message)
	data, ok = env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, data["isFavorite"])
}

func TestReadingListStatsEndpoint(t *testing.T) {
	f := newFixture(t, models.RoleUser)
	_, _ = f.do(t, http.MethodPost, "/reading-list/", AddToReadingListRequest{BookID: f.book.ID.Hex()})
	_, _ = f.do(t, http.MethodPut, "/reading-list/"+f.book.ID.Hex(),
		map[string]interface{}{"progress": 100})

	rec, env := f.do(t, http.MethodGet, "/reading-list/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["totalBooks"])
	assert.Equal(t, float64(1), data["completed"])
	assert.Equal(t, float64(0), data["readingNow"])
}

func TestFavoritesEndpoints(t *testing.T) {
	f := newFixture(t, models.RoleUser)

	rec, env := f.do(t, http.MethodPost, "/users/favorites", bookIDRequest{BookID: f.book.ID.Hex()})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	// Repeat add stays a 200.
	rec, _ = f.do(t, http.MethodPost, "/users/favorites", bookIDRequest{BookID: f.book.ID.Hex()})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, env = f.do(t, http.MethodGet, "/users/favorites", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	favorites, ok := env.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, favorites, 1)

	// Removing twice is fine too.
	rec, _ = f.do(t, http.MethodDelete, "/users/favorites/"+f.book.ID.Hex(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = f.do(t, http.MethodDelete, "/users/favorites/"+f.book.ID.Hex(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadingProgressRejectsNegativePage(t *testing.T) {
	f := newFixture(t, models.RoleUser)

	rec, env := f.do(t, http.MethodPut, "/users/reading-progress",
		readingProgressRequest{BookID: f.book.ID.Hex(), CurrentPage: -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestReadingCompleteFlow(t *testing.T) {
	f := newFixture(t, models.RoleUser)

	rec, _ := f.do(t, http.MethodPut, "/users/reading-progress",
		readingProgressRequest{BookID: f.book.ID.Hex(), CurrentPage: 120})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.user.Stats.CurrentlyReading, 1)

	rec, env := f.do(t, http.MethodPost, "/users/reading-complete", bookIDRequest{BookID: f.book.ID.Hex()})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Book marked as completed", env.Message)
	assert.Empty(t, f.user.Stats.CurrentlyReading)
	assert.Equal(t, 1, f.user.Stats.TotalBooksRead)
}

func TestTrackDownloadEndpoint(t *testing.T) {
	f := newFixture(t, models.RoleUser)

	for i := 0; i < 2; i++ {
		rec, _ := f.do(t, http.MethodPost, "/users/track-download", bookIDRequest{BookID: f.book.ID.Hex()})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.Len(t, f.user.DownloadedBooks, 1)
	assert.Equal(t, 2, f.user.DownloadedBooks[0].DownloadCount)
	assert.Equal(t, 2, f.catalog.incs)

	rec, env := f.do(t, http.MethodGet, "/users/downloads", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	downloads, ok := env.Data.([]interface{})
	require.True(t, ok)
	assert.Len(t, downloads, 1)
}

func TestTrackDownloadPremiumGateIs403(t *testing.T) {
	f := newFixture(t, models.RoleUser)
	f.book.AccessLevel = models.AccessPremium

	rec, env := f.do(t, http.MethodPost, "/users/track-download", bookIDRequest{BookID: f.book.ID.Hex()})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "premium subscription required to download this book", env.Message)
	assert.Empty(t, f.user.DownloadedBooks)

	f.user.Role = models.RolePremium
	rec, _ = f.do(t, http.MethodPost, "/users/track-download", bookIDRequest{BookID: f.book.ID.Hex()})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPersonalStatsEndpoint(t *testing.T) {
	f := newFixture(t, models.RoleUser)
	_, _ = f.do(t, http.MethodPost, "/reading-list/", AddToReadingListRequest{BookID: f.book.ID.Hex()})
	_, _ = f.do(t, http.MethodPost, "/users/track-download", bookIDRequest{BookID: f.book.ID.Hex()})

	rec, env := f.do(t, http.MethodGet, "/users/stats/personal", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), data["readingListCount"])
	assert.Equal(t, float64(1), data["downloadedBooksCount"])
	assert.Equal(t, float64(1), data["totalDownloads"])
}
