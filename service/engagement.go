package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/elibrary/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Sentinel errors for the engagement operations. Handlers map these onto
// HTTP status codes; models.ErrDuplicateEntry and models.ErrEntryNotFound
// pass through from the aggregate unchanged.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrBookNotFound = errors.New("book not found")
	ErrForbidden    = errors.New("premium subscription required to download this book")
)

// UserStore loads and persists user documents. Persistence is a whole
// document replace: the aggregate is the unit of atomicity.
type UserStore interface {
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	ReplaceUser(ctx context.Context, user *models.User) error
}

// BookCatalog resolves book references and owns the global counters.
type BookCatalog interface {
	BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	IncrementDownloadCount(ctx context.Context, id primitive.ObjectID) error
}

// Engagement coordinates reading lists, favorites, progress tracking and
// download history. Every mutating operation is a read-modify-write of one
// user document: load, validate against the catalog, mutate in memory
// through an aggregate method, replace the document. Two concurrent writes
// to the same user race at document granularity and the last writer wins;
// that matches the storage contract and is accepted here.
type Engagement struct {
	users   UserStore
	catalog BookCatalog
	log     *zap.Logger
	now     func() time.Time
}

func NewEngagement(users UserStore, catalog BookCatalog, log *zap.Logger) *Engagement {
	return &Engagement{users: users, catalog: catalog, log: log, now: time.Now}
}

func (e *Engagement) loadUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	user, err := e.users.UserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (e *Engagement) resolveBook(ctx context.Context, bookID primitive.ObjectID) (*models.Book, error) {
	book, err := e.catalog.BookByID(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("resolve book: %w", err)
	}
	if book == nil {
		return nil, ErrBookNotFound
	}
	return book, nil
}

func (e *Engagement) saveUser(ctx context.Context, user *models.User) error {
	if err := e.users.ReplaceUser(ctx, user); err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

// AddToReadingList adds bookID to the user's reading list. The book must
// resolve in the catalog; a second add for the same book fails with
// models.ErrDuplicateEntry.
func (e *Engagement) AddToReadingList(ctx context.Context, userID, bookID primitive.ObjectID, notes string) (*models.User, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := e.resolveBook(ctx, bookID); err != nil {
		return nil, err
	}
	if err := user.AddToReadingList(bookID, notes, e.now()); err != nil {
		return nil, err
	}
	if err := e.saveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// RemoveFromReadingList removes bookID from the user's reading list. Fails
// with models.ErrEntryNotFound when no entry exists.
func (e *Engagement) RemoveFromReadingList(ctx context.Context, userID, bookID primitive.ObjectID) (*models.User, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := user.RemoveFromReadingList(bookID); err != nil {
		return nil, err
	}
	if err := e.saveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateReadingListEntry applies a partial update to the entry for bookID.
// Out-of-range progress values are ignored without error; the rest of the
// update still applies.
func (e *Engagement) UpdateReadingListEntry(ctx context.Context, userID, bookID primitive.ObjectID, upd models.ReadingListUpdate) (*models.User, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := user.UpdateReadingListEntry(bookID, upd, e.now()); err != nil {
		return nil, err
	}
	if err := e.saveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ToggleReadingListFavorite flips the per-entry favorite flag and returns
// the new value.
func (e *Engagement) ToggleReadingListFavorite(ctx context.Context, userID, bookID primitive.ObjectID) (bool, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return false, err
	}
	isFavorite, err := user.ToggleReadingListFavorite(bookID)
	if err != nil {
		return false, err
	}
	if err := e.saveUser(ctx, user); err != nil {
		return false, err
	}
	return isFavorite, nil
}

// ReadingListStats derives counts from the reading list. No write.
func (e *Engagement) ReadingListStats(ctx context.Context, userID primitive.ObjectID) (models.ReadingListStats, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return models.ReadingListStats{}, err
	}
	return user.DeriveReadingListStats(), nil
}

// ReadingList returns the user's reading list entries. No write.
func (e *Engagement) ReadingList(ctx context.Context, userID primitive.ObjectID) ([]models.ReadingListItem, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ReadingList == nil {
		return []models.ReadingListItem{}, nil
	}
	return user.ReadingList, nil
}

// Favorites returns the user's favorites set. No write.
func (e *Engagement) Favorites(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Stats.Favorites == nil {
		return []primitive.ObjectID{}, nil
	}
	return user.Stats.Favorites, nil
}

// Downloads returns the user's download history. No write.
func (e *Engagement) Downloads(ctx context.Context, userID primitive.ObjectID) ([]models.DownloadedBook, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.DownloadedBooks == nil {
		return []models.DownloadedBook{}, nil
	}
	return user.DownloadedBooks, nil
}

// AddToFavorites adds bookID to the user's favorites set. Idempotent: a
// repeat add succeeds without changing anything.
func (e *Engagement) AddToFavorites(ctx context.Context, userID, bookID primitive.ObjectID) (*models.User, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := e.resolveBook(ctx, bookID); err != nil {
		return nil, err
	}
	if !user.AddToFavorites(bookID) {
		return user, nil
	}
	if err := e.saveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// RemoveFromFavorites removes bookID from the favorites set. Absence is not
// an error.
func (e *Engagement) RemoveFromFavorites(ctx context.Context, userID, bookID primitive.ObjectID) (*models.User, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.RemoveFromFavorites(bookID)
	if err := e.saveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// TrackCurrentlyReading upserts the user's page position for bookID.
func (e *Engagement) TrackCurrentlyReading(ctx context.Context, userID, bookID primitive.ObjectID, lastPage int) (*models.User, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if _, err := e.resolveBook(ctx, bookID); err != nil {
		return nil, err
	}
	user.TrackCurrentlyReading(bookID, lastPage, e.now())
	if err := e.saveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// MarkCompleted removes bookID from currentlyReading and increments the
// totalBooksRead counter. The increment is unconditional; completing the
// same book twice counts twice. Kept for compatibility with existing
// clients, see DESIGN.md.
func (e *Engagement) MarkCompleted(ctx context.Context, userID, bookID primitive.ObjectID) (*models.User, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.MarkCompleted(bookID)
	if err := e.saveUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// TrackDownload records a download in the user document and bumps the
// book's global counter. The book must resolve; premium books require
// premium access. Repeat calls never error: the per-user entry accumulates
// a count while the global counter increments once per call. The counter
// increment is a second, best-effort write: a failure there is logged and
// does not undo the user-document update.
func (e *Engagement) TrackDownload(ctx context.Context, userID, bookID primitive.ObjectID) (*models.User, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	book, err := e.resolveBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	if book.IsPremium() && !user.HasPremiumAccess() {
		return nil, ErrForbidden
	}
	user.TrackDownload(bookID, e.now())
	if err := e.saveUser(ctx, user); err != nil {
		return nil, err
	}
	if err := e.catalog.IncrementDownloadCount(ctx, bookID); err != nil {
		e.log.Warn("book download counter increment failed",
			zap.String("bookId", bookID.Hex()), zap.Error(err))
	}
	return user, nil
}

// PersonalStats is the engagement summary for one user.
type PersonalStats struct {
	TotalBooksRead       int                           `json:"totalBooksRead"`
	TotalReadingTime     int                           `json:"totalReadingTime"`
	CurrentlyReading     []models.CurrentlyReadingItem `json:"currentlyReading"`
	Favorites            []primitive.ObjectID          `json:"favorites"`
	ReadingListCount     int                           `json:"readingListCount"`
	DownloadedBooksCount int                           `json:"downloadedBooksCount"`
	TotalDownloads       int                           `json:"totalDownloads"`
}

// Stats returns the user's engagement summary. No write.
func (e *Engagement) Stats(ctx context.Context, userID primitive.ObjectID) (*PersonalStats, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	stats := &PersonalStats{
		TotalBooksRead:       user.Stats.TotalBooksRead,
		TotalReadingTime:     user.Stats.TotalReadingTime,
		CurrentlyReading:     user.Stats.CurrentlyReading,
		Favorites:            user.Stats.Favorites,
		ReadingListCount:     len(user.ReadingList),
		DownloadedBooksCount: len(user.DownloadedBooks),
		TotalDownloads:       user.TotalDownloads(),
	}
	if stats.CurrentlyReading == nil {
		stats.CurrentlyReading = []models.CurrentlyReadingItem{}
	}
	if stats.Favorites == nil {
		stats.Favorites = []primitive.ObjectID{}
	}
	return stats, nil
}
