package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/elibrary/backend/models"
	"github.com/elibrary/backend/store"
	"github.com/elibrary/backend/utils"
	"go.uber.org/zap"
)

// NotificationsHandler manages the SMTP settings used for book
// announcements. Admin only. The password is encrypted before it is stored
// and never returned.
type NotificationsHandler struct {
	DB     *store.DB
	EncKey []byte // 32 bytes for AES-256-GCM; nil disables saving
	Log    *zap.Logger
}

type SMTPConfigRequest struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FromEmail string `json:"fromEmail"`
}

// GetConfig returns the stored SMTP settings minus the password.
// GET /api/notifications/config
func (h *NotificationsHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.DB.SMTPConfigDoc(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load config")
		return
	}
	if cfg == nil {
		writeError(w, http.StatusNotFound, "smtp is not configured")
		return
	}
	writeSuccess(w, "", cfg)
}

// SaveConfig stores SMTP settings with the password encrypted.
// PUT /api/notifications/config
func (h *NotificationsHandler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	if h.EncKey == nil {
		writeError(w, http.StatusServiceUnavailable, "notification encryption key is not set")
		return
	}
	var req SMTPConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Host == "" || req.Port == 0 || req.FromEmail == "" {
		writeError(w, http.StatusBadRequest, "host, port and fromEmail are required")
		return
	}
	encrypted, err := utils.Encrypt([]byte(req.Password), h.EncKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encrypt password")
		return
	}
	cfg := &models.SMTPConfig{
		Host:      req.Host,
		Port:      req.Port,
		Username:  req.Username,
		Password:  encrypted,
		FromEmail: req.FromEmail,
	}
	if err := h.DB.SaveSMTPConfig(r.Context(), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save config")
		return
	}
	h.Log.Info("smtp config updated", zap.String("host", cfg.Host))
	writeSuccess(w, "SMTP configuration saved", nil)
}

// RecentLogs returns the latest announcement send attempts.
// GET /api/notifications/logs
func (h *NotificationsHandler) RecentLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.DB.RecentEmailLogs(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load logs")
		return
	}
	if logs == nil {
		logs = []models.EmailLog{}
	}
	writeSuccess(w, "", logs)
}
