package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/elibrary/backend/middleware"
	"github.com/elibrary/backend/models"
	"github.com/elibrary/backend/store"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// UsersHandler covers the admin-facing user management routes. All routes
// here run behind the AdminOnly middleware.
type UsersHandler struct {
	DB  *store.DB
	Log *zap.Logger
}

func roleValid(role string) bool {
	for _, r := range models.ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

type UserListData struct {
	Users       []models.User `json:"users"`
	TotalPages  int64         `json:"totalPages"`
	CurrentPage int64         `json:"currentPage"`
	Total       int64         `json:"total"`
}

// List returns users with optional search/role filters and paging.
// GET /api/users?page=&limit=&search=&role=
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.ParseInt(q.Get("page"), 10, 64)
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.ParseInt(q.Get("limit"), 10, 64)
	if limit < 1 {
		limit = 10
	}
	filter := store.UserFilter{
		Search: q.Get("search"),
		Role:   q.Get("role"),
		Page:   page,
		Limit:  limit,
	}
	users, total, err := h.DB.ListUsers(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	writeSuccess(w, "", UserListData{
		Users:       users,
		TotalPages:  int64(math.Ceil(float64(total) / float64(limit))),
		CurrentPage: page,
		Total:       total,
	})
}

// Stats returns the aggregate user dashboard numbers. GET /api/users/stats
func (h *UsersHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.DB.AggregateUserStats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user stats")
		return
	}
	writeSuccess(w, "", stats)
}

// Get returns a single user by id. GET /api/users/{id}
func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	user, err := h.DB.UserByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load user")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeSuccess(w, "", user)
}

type UpdateUserRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"isActive"`
}

// Update modifies identity fields on a user. PUT /api/users/{id}
func (h *UsersHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	user, err := h.DB.UserByID(r.Context(), id)
	if err != nil || user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	var newName *string
	if req.Name != nil {
		n := strings.TrimSpace(*req.Name)
		if n == "" || len(n) > 100 {
			writeError(w, http.StatusBadRequest, "name is required and cannot exceed 100 characters")
			return
		}
		newName = &n
	}
	var newEmail *string
	if req.Email != nil {
		e := strings.TrimSpace(strings.ToLower(*req.Email))
		if !emailPattern.MatchString(e) {
			writeError(w, http.StatusBadRequest, "please enter a valid email")
			return
		}
		existing, _ := h.DB.UserByEmail(r.Context(), e)
		if existing != nil && existing.ID != id {
			writeError(w, http.StatusConflict, "email already in use")
			return
		}
		newEmail = &e
	}
	var newRole *string
	if req.Role != nil {
		role := strings.TrimSpace(strings.ToLower(*req.Role))
		if !roleValid(role) {
			writeError(w, http.StatusBadRequest, "invalid role; use admin, moderator, or user")
			return
		}
		newRole = &role
	}
	if err := h.DB.UpdateUserProfile(r.Context(), id, newName, newEmail, newRole, req.IsActive); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update user")
		return
	}
	user, _ = h.DB.UserByID(r.Context(), id)
	writeSuccess(w, "User updated successfully", user)
}

// Delete removes a user document entirely, embedded collections included.
// Admins cannot delete themselves. DELETE /api/users/{id}
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	currentID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if currentID == id {
		writeError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}
	user, err := h.DB.UserByID(r.Context(), id)
	if err != nil || user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err := h.DB.DeleteUser(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete user")
		return
	}
	h.Log.Info("user deleted",
		zap.String("userId", id.Hex()), zap.String("by", currentID.Hex()))
	writeSuccess(w, "User deleted successfully", nil)
}
