package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/elibrary/backend/middleware"
	"github.com/elibrary/backend/service"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// EngagementHandler exposes favorites, currently-reading progress, download
// tracking and personal stats.
type EngagementHandler struct {
	Svc *service.Engagement
	Log *zap.Logger
}

type bookIDRequest struct {
	BookID string `json:"bookId"`
}

func decodeBookID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	var req bookIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return primitive.NilObjectID, false
	}
	if req.BookID == "" {
		writeError(w, http.StatusBadRequest, "book ID is required")
		return primitive.NilObjectID, false
	}
	bookID, err := primitive.ObjectIDFromHex(req.BookID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return primitive.NilObjectID, false
	}
	return bookID, true
}

// ListFavorites returns the caller's favorites set. GET /api/users/favorites
func (h *EngagementHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	favorites, err := h.Svc.Favorites(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, "", favorites)
}

// AddFavorite adds a book to the favorites set; a repeat add is a no-op that
// still succeeds. POST /api/users/favorites
func (h *EngagementHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	bookID, ok := decodeBookID(w, r)
	if !ok {
		return
	}
	if _, err := h.Svc.AddToFavorites(r.Context(), userID, bookID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, "Book added to favorites", nil)
}

// RemoveFavorite removes a book from the favorites set; absence is not an
// error. DELETE /api/users/favorites/{bookId}
func (h *EngagementHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	bookID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "bookId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	if _, err := h.Svc.RemoveFromFavorites(r.Context(), userID, bookID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, "Book removed from favorites", nil)
}

type readingProgressRequest struct {
	BookID      string `json:"bookId"`
	CurrentPage int    `json:"currentPage"`
}

// ReadingProgress upserts the caller's page position for a book.
// PUT /api/users/reading-progress
func (h *EngagementHandler) ReadingProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req readingProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	bookID, err := primitive.ObjectIDFromHex(req.BookID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	if req.CurrentPage < 0 {
		writeError(w, http.StatusBadRequest, "currentPage cannot be negative")
		return
	}
	if _, err := h.Svc.TrackCurrentlyReading(r.Context(), userID, bookID, req.CurrentPage); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, "Reading progress updated", nil)
}

// ReadingComplete marks a book finished: it leaves currentlyReading and the
// totalBooksRead counter goes up. POST /api/users/reading-complete
func (h *EngagementHandler) ReadingComplete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	bookID, ok := decodeBookID(w, r)
	if !ok {
		return
	}
	if _, err := h.Svc.MarkCompleted(r.Context(), userID, bookID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, "Book marked as completed", nil)
}

// TrackDownload records a download for the caller and bumps the book's
// global counter. Premium books require premium access.
// POST /api/users/track-download
func (h *EngagementHandler) TrackDownload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	bookID, ok := decodeBookID(w, r)
	if !ok {
		return
	}
	if _, err := h.Svc.TrackDownload(r.Context(), userID, bookID); err != nil {
		writeServiceError(w, err)
		return
	}
	h.Log.Info("download tracked",
		zap.String("userId", userID.Hex()), zap.String("bookId", bookID.Hex()))
	writeSuccess(w, "Download tracked successfully", nil)
}

// Downloads returns the caller's download history. GET /api/users/downloads
func (h *EngagementHandler) Downloads(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	downloads, err := h.Svc.Downloads(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, "", downloads)
}

// PersonalStats returns the caller's engagement summary.
// GET /api/users/stats/personal
func (h *EngagementHandler) PersonalStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	stats, err := h.Svc.Stats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, "", stats)
}
