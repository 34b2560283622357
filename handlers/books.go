package handlers

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/elibrary/backend/middleware"
	"github.com/elibrary/backend/models"
	"github.com/elibrary/backend/service"
	"github.com/elibrary/backend/store"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// BooksHandler serves the book catalog: browsing, downloads, admin edits.
type BooksHandler struct {
	DB       *store.DB
	S3       *service.S3Service
	Notifier *service.Notifier
	Log      *zap.Logger
}

type BookListData struct {
	Books       []models.Book `json:"books"`
	TotalPages  int64         `json:"totalPages"`
	CurrentPage int64         `json:"currentPage"`
	Total       int64         `json:"total"`
}

// List returns active books with optional search/category/featured filters.
// GET /api/books?page=&limit=&search=&category=&featured=
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.ParseInt(q.Get("page"), 10, 64)
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.ParseInt(q.Get("limit"), 10, 64)
	if limit < 1 {
		limit = 12
	}
	filter := store.BookFilter{
		Search:   q.Get("search"),
		Category: q.Get("category"),
		Featured: q.Get("featured") == "true",
		Page:     page,
		Limit:    limit,
	}
	books, total, err := h.DB.ListBooks(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list books")
		return
	}
	if books == nil {
		books = []models.Book{}
	}
	writeSuccess(w, "", BookListData{
		Books:       books,
		TotalPages:  int64(math.Ceil(float64(total) / float64(limit))),
		CurrentPage: page,
		Total:       total,
	})
}

// Get returns one book and bumps its view counter. The increment is
// best-effort and does not fail the read. GET /api/books/{id}
func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	book, err := h.DB.BookByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load book")
		return
	}
	if book == nil || !book.IsActive {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	if err := h.DB.IncrementViewCount(r.Context(), id); err != nil {
		h.Log.Warn("view counter increment failed", zap.String("bookId", id.Hex()), zap.Error(err))
	} else {
		book.ViewCount++
	}
	writeSuccess(w, "", book)
}

// Cover streams the book's cover image from S3. GET /api/books/{id}/cover
func (h *BooksHandler) Cover(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	book, err := h.DB.BookByID(r.Context(), id)
	if err != nil || book == nil {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	if book.CoverS3Key == "" || h.S3 == nil {
		writeError(w, http.StatusNotFound, "no cover")
		return
	}
	body, contentType, err := h.S3.GetObject(r.Context(), book.CoverS3Key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load cover")
		return
	}
	defer body.Close()
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	io.Copy(w, body)
}

type DownloadURLData struct {
	URL string `json:"url"`
}

// DownloadURL issues a presigned link to the book file. Premium books are
// gated on the caller's role; recording the download in the user document
// stays with POST /api/users/track-download so the frontend controls when a
// download counts. GET /api/books/{id}/download
func (h *BooksHandler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	role := middleware.RoleFromContext(r.Context())
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	book, err := h.DB.BookByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load book")
		return
	}
	if book == nil || !book.IsActive {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	if book.IsPremium() && role != models.RoleAdmin && role != models.RolePremium {
		writeError(w, http.StatusForbidden, "premium subscription required to download this book")
		return
	}
	if h.S3 == nil {
		writeError(w, http.StatusServiceUnavailable, "download not configured")
		return
	}
	filename := book.Title + "." + book.Format
	url, err := h.S3.PresignedGetURL(r.Context(), book.FileS3Key, 15*time.Minute, filename)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate download url")
		return
	}
	writeSuccess(w, "", DownloadURLData{URL: url})
}

type UpdateBookRequest struct {
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	Description     string   `json:"description"`
	ISBN            string   `json:"isbn"`
	Category        string   `json:"category"`
	CoverImage      string   `json:"coverImage"`
	Pages           int      `json:"pages"`
	PublicationYear int      `json:"publicationYear"`
	Publisher       string   `json:"publisher"`
	Language        string   `json:"language"`
	AccessLevel     string   `json:"accessLevel"`
	Tags            []string `json:"tags"`
	IsFeatured      bool     `json:"isFeatured"`
	IsActive        bool     `json:"isActive"`
}

// Update edits catalog fields on a book (admin only). PUT /api/books/{id}
func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	book, err := h.DB.BookByID(r.Context(), id)
	if err != nil || book == nil {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	var req UpdateBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Title == "" || req.Author == "" {
		writeError(w, http.StatusBadRequest, "title and author are required")
		return
	}
	if req.Category != "" && !models.CategoryValid(req.Category) {
		writeError(w, http.StatusBadRequest, "invalid category")
		return
	}
	if req.AccessLevel != "" && !models.AccessLevelValid(req.AccessLevel) {
		writeError(w, http.StatusBadRequest, "invalid access level; use public, premium, or admin")
		return
	}
	book.Title = req.Title
	book.Author = req.Author
	book.Description = req.Description
	book.ISBN = req.ISBN
	book.Category = req.Category
	book.CoverImage = req.CoverImage
	book.Pages = req.Pages
	book.PublicationYear = req.PublicationYear
	book.Publisher = req.Publisher
	book.Language = req.Language
	book.AccessLevel = req.AccessLevel
	book.Tags = req.Tags
	book.IsFeatured = req.IsFeatured
	book.IsActive = req.IsActive
	if err := h.DB.UpdateBook(r.Context(), id, book); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update book")
		return
	}
	writeSuccess(w, "Book updated successfully", book)
}

// Delete removes a book and its stored files (admin only).
// DELETE /api/books/{id}
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	fileKey, coverKey, err := h.DB.DeleteBook(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	if h.S3 != nil {
		if fileKey != "" {
			_ = h.S3.Delete(r.Context(), fileKey)
		}
		if coverKey != "" {
			_ = h.S3.Delete(r.Context(), coverKey)
		}
	}
	h.Log.Info("book deleted", zap.String("bookId", id.Hex()))
	writeSuccess(w, "Book deleted successfully", nil)
}

type RefreshMetadataRequest struct {
	ISBN string `json:"isbn"`
}

// RefreshMetadata refetches metadata from Open Library by ISBN and applies
// it to the book (admin only). POST /api/books/{id}/refresh-metadata
func (h *BooksHandler) RefreshMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	book, err := h.DB.BookByID(r.Context(), id)
	if err != nil || book == nil {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	var req RefreshMetadataRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	isbn := req.ISBN
	if isbn == "" {
		isbn = book.ISBN
	}
	if isbn == "" {
		writeError(w, http.StatusBadRequest, "no ISBN provided and book has no ISBN")
		return
	}
	meta, err := service.FetchMetadataByISBN(r.Context(), isbn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to fetch metadata: "+err.Error())
		return
	}
	book.ISBN = meta.ISBN
	if meta.Title != "" {
		book.Title = meta.Title
	}
	if meta.Author != "" {
		book.Author = meta.Author
	}
	if meta.Publisher != "" {
		book.Publisher = meta.Publisher
	}
	if meta.PublicationYear != 0 {
		book.PublicationYear = meta.PublicationYear
	}
	if meta.Pages != 0 {
		book.Pages = meta.Pages
	}
	if meta.CoverURL != "" {
		book.CoverImage = meta.CoverURL
	}
	if err := h.DB.UpdateBook(r.Context(), id, book); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save metadata")
		return
	}
	writeSuccess(w, "Metadata refreshed", book)
}

// Announce emails users who opted into notifications about this book
// (admin only). POST /api/books/{id}/announce
func (h *BooksHandler) Announce(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid book id")
		return
	}
	book, err := h.DB.BookByID(r.Context(), id)
	if err != nil || book == nil {
		writeError(w, http.StatusNotFound, "book not found")
		return
	}
	if h.Notifier == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications not configured")
		return
	}
	result, err := h.Notifier.AnnounceBook(r.Context(), book)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "announcement failed: "+err.Error())
		return
	}
	writeSuccess(w, "Announcement sent", result)
}
