package handlers

import (
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/elibrary/backend/middleware"
	"github.com/elibrary/backend/models"
	"github.com/elibrary/backend/service"
	"github.com/elibrary/backend/store"
	"go.uber.org/zap"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeEPUB = "application/epub+zip"
)

// UploadHandler accepts a multipart book upload: the file itself, an
// optional cover image, and the catalog fields as form values. Admin only.
type UploadHandler struct {
	DB       *store.DB
	S3       *service.S3Service
	MaxBytes int64
	Log      *zap.Logger
}

type UploadData struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Upload handles POST /api/books (multipart/form-data).
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.S3 == nil {
		writeError(w, http.StatusServiceUnavailable, "upload not configured (missing S3)")
		return
	}
	if h.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)
	}
	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".pdf" && ext != ".epub" {
		writeError(w, http.StatusBadRequest, "only pdf and epub files are allowed")
		return
	}
	format := "pdf"
	contentType := contentTypePDF
	if ext == ".epub" {
		format = "epub"
		contentType = contentTypeEPUB
	}

	title := strings.TrimSpace(r.FormValue("title"))
	author := strings.TrimSpace(r.FormValue("author"))
	if title == "" {
		title = strings.TrimSuffix(header.Filename, ext)
	}
	if author == "" {
		writeError(w, http.StatusBadRequest, "author is required")
		return
	}
	category := r.FormValue("category")
	if category == "" {
		category = "Other"
	}
	if !models.CategoryValid(category) {
		writeError(w, http.StatusBadRequest, "invalid category")
		return
	}
	accessLevel := r.FormValue("accessLevel")
	if accessLevel == "" {
		accessLevel = models.AccessPublic
	}
	if !models.AccessLevelValid(accessLevel) {
		writeError(w, http.StatusBadRequest, "invalid access level; use public, premium, or admin")
		return
	}
	language := r.FormValue("language")
	if language == "" {
		language = "English"
	}
	pages, _ := strconv.Atoi(r.FormValue("pages"))
	pubYear, _ := strconv.Atoi(r.FormValue("publicationYear"))

	fileKey, err := h.S3.Upload(r.Context(), "books/", header.Filename, file, contentType)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to upload to storage")
		return
	}

	var coverKey string
	if cover, coverHeader, err := r.FormFile("cover"); err == nil {
		defer cover.Close()
		coverType := coverHeader.Header.Get("Content-Type")
		if coverType == "" {
			coverType = "image/jpeg"
		}
		key, err := h.S3.Upload(r.Context(), "books/covers/", coverHeader.Filename, cover, coverType)
		if err != nil {
			h.Log.Warn("cover upload failed", zap.Error(err))
		} else {
			coverKey = key
		}
	}

	now := time.Now()
	book := &models.Book{
		Title:           title,
		Author:          author,
		Description:     r.FormValue("description"),
		ISBN:            strings.ReplaceAll(r.FormValue("isbn"), "-", ""),
		Category:        category,
		FileS3Key:       fileKey,
		CoverS3Key:      coverKey,
		FileSize:        header.Size,
		Format:          format,
		Pages:           pages,
		PublicationYear: pubYear,
		Publisher:       r.FormValue("publisher"),
		Language:        language,
		AccessLevel:     accessLevel,
		IsActive:        true,
		UploadedBy:      userID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if tags := r.FormValue("tags"); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				book.Tags = append(book.Tags, t)
			}
		}
	}

	id, err := h.DB.InsertBook(r.Context(), book)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save book record")
		return
	}
	book.ID = id
	h.Log.Info("book uploaded",
		zap.String("bookId", id.Hex()),
		zap.String("title", book.Title),
		zap.Int64("size", book.FileSize))
	writeJSON(w, http.StatusCreated, Envelope{
		Success: true,
		Message: "Book uploaded successfully",
		Data:    UploadData{ID: id.Hex(), Title: book.Title},
	})
}
