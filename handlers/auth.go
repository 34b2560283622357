package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/elibrary/backend/middleware"
	"github.com/elibrary/backend/models"
	"github.com/elibrary/backend/store"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

type AuthHandler struct {
	DB        *store.DB
	JWTSecret string
	Log       *zap.Logger
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthData struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register creates a new user account. Role always starts as "user";
// promotion is an admin action.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || len(req.Name) > 100 {
		writeError(w, http.StatusBadRequest, "name is required and cannot exceed 100 characters")
		return
	}
	if !emailPattern.MatchString(req.Email) {
		writeError(w, http.StatusBadRequest, "please enter a valid email")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}
	existing, err := h.DB.UserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, "user already exists with this email")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), 12)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	now := time.Now()
	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hash),
		Role:     models.RoleUser,
		IsActive: true,
		Preferences: models.Preferences{
			Notifications: true,
			Theme:         "light",
		},
		ReadingList:     []models.ReadingListItem{},
		DownloadedBooks: []models.DownloadedBook{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	user.Stats.CurrentlyReading = []models.CurrentlyReadingItem{}
	user.Stats.Favorites = []primitive.ObjectID{}

	id, err := h.DB.CreateUser(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}
	user.ID = id
	token, err := h.createToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create token")
		return
	}
	h.Log.Info("user registered", zap.String("userId", id.Hex()), zap.String("email", user.Email))
	writeJSON(w, http.StatusCreated, Envelope{
		Success: true,
		Message: "User registered successfully",
		Data:    AuthData{Token: token, User: user},
	})
}

// Login verifies credentials, stamps lastLogin and issues a token. Inactive
// accounts are rejected.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}
	user, err := h.DB.UserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if !user.IsActive {
		writeError(w, http.StatusForbidden, "account is deactivated")
		return
	}
	now := time.Now()
	if err := h.DB.StampLastLogin(r.Context(), user.ID, now); err != nil {
		h.Log.Warn("lastLogin stamp failed", zap.String("userId", user.ID.Hex()), zap.Error(err))
	}
	user.LastLogin = &now
	token, err := h.createToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not create token")
		return
	}
	writeSuccess(w, "Login successful", AuthData{Token: token, User: user})
}

// Me returns the authenticated user's own document.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	user, err := h.DB.UserByID(r.Context(), userID)
	if err != nil || user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeSuccess(w, "", user)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "current password and new password are required")
		return
	}
	if len(req.NewPassword) < 6 {
		writeError(w, http.StatusBadRequest, "new password must be at least 6 characters long")
		return
	}
	user, err := h.DB.UserByID(r.Context(), userID)
	if err != nil || user == nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		writeError(w, http.StatusBadRequest, "current password is incorrect")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), 12)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}
	if err := h.DB.UpdateUserPassword(r.Context(), userID, string(hash)); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to change password")
		return
	}
	writeSuccess(w, "Password changed successfully", nil)
}

func (h *AuthHandler) createToken(user *models.User) (string, error) {
	claims := &middleware.Claims{
		UserID: user.ID.Hex(),
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour * 7)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.JWTSecret))
}
