package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/elibrary/backend/middleware"
	"github.com/elibrary/backend/models"
	"github.com/elibrary/backend/service"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ReadingListHandler exposes the reading-list operations over HTTP. All
// routes require an authenticated principal; the list belongs to the caller.
type ReadingListHandler struct {
	Svc *service.Engagement
	Log *zap.Logger
}

func principalAndBook(w http.ResponseWriter, r *http.Request) (userID, bookID primitive.ObjectID, ok bool) {
	userID, ok = middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return userID, bookID, false
	}
	bookID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "bookId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return userID, bookID, false
	}
	return userID, bookID, true
}

// List returns the caller's reading list. GET /api/reading-list
func (h *ReadingListHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	list, err := h.Svc.ReadingList(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, "", list)
}

type AddToReadingListRequest struct {
	BookID string `json:"bookId"`
	Notes  string `json:"notes"`
}

// Add puts a book on the caller's reading list. POST /api/reading-list
func (h *ReadingListHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req AddToReadingListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.BookID == "" {
		writeError(w, http.StatusBadRequest, "book ID is required")
		return
	}
	bookID, err := primitive.ObjectIDFromHex(req.BookID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	if _, err := h.Svc.AddToReadingList(r.Context(), userID, bookID, req.Notes); err != nil {
		writeServiceError(w, err)
		return
	}
	h.Log.Info("book added to reading list",
		zap.String("userId", userID.Hex()), zap.String("bookId", bookID.Hex()))
	writeSuccess(w, "Book added to reading list", nil)
}

// Remove takes a book off the caller's reading list.
// DELETE /api/reading-list/{bookId}
func (h *ReadingListHandler) Remove(w http.ResponseWriter, r *http.Request) {
	userID, bookID, ok := principalAndBook(w, r)
	if !ok {
		return
	}
	if _, err := h.Svc.RemoveFromReadingList(r.Context(), userID, bookID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, "Book removed from reading list", nil)
}

// Update applies a partial update to one entry (notes, progress, favorite
// flag). PUT /api/reading-list/{bookId}
func (h *ReadingListHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, bookID, ok := principalAndBook(w, r)
	if !ok {
		return
	}
	var upd models.ReadingListUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if _, err := h.Svc.UpdateReadingListEntry(r.Context(), userID, bookID, upd); err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, "Reading list updated successfully", nil)
}

type ToggleFavoriteData struct {
	IsFavorite bool `json:"isFavorite"`
}

// ToggleFavorite flips the entry's favorite flag and reports the new value.
// POST /api/reading-list/{bookId}/favorite
func (h *ReadingListHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	userID, bookID, ok := principalAndBook(w, r)
	if !ok {
		return
	}
	isFavorite, err := h.Svc.ToggleReadingListFavorite(r.Context(), userID, bookID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	action := "removed from"
	if isFavorite {
		action = "added to"
	}
	writeSuccess(w, "Book "+action+" favorites", ToggleFavoriteData{IsFavorite: isFavorite})
}

// Stats derives counts over the caller's reading list.
// GET /api/reading-list/stats
func (h *ReadingListHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	stats, err := h.Svc.ReadingListStats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeSuccess(w, "", stats)
}
