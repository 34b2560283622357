package service

import (
	"context"
	"fmt"
	"time"

	mail "github.com/go-mail/mail/v2"

	"github.com/elibrary/backend/models"
	"github.com/elibrary/backend/store"
	"github.com/elibrary/backend/utils"
	"go.uber.org/zap"
)

// Notifier sends new-book announcements to users who opted in. SMTP
// settings live in Mongo with the password encrypted; every send attempt is
// appended to the email log.
type Notifier struct {
	DB     *store.DB
	EncKey []byte // 32 bytes for AES-256-GCM; nil disables sending
	Log    *zap.Logger
}

// AnnounceResult summarizes one announcement run.
type AnnounceResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// AnnounceBook emails every active user with notifications enabled about a
// newly published book. Send failures are logged per recipient and do not
// abort the run.
func (n *Notifier) AnnounceBook(ctx context.Context, book *models.Book) (*AnnounceResult, error) {
	cfg, err := n.DB.SMTPConfigDoc(ctx)
	if err != nil {
		return nil, fmt.Errorf("load smtp config: %w", err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("smtp is not configured")
	}
	if n.EncKey == nil {
		return nil, fmt.Errorf("notification encryption key is not set")
	}
	password, err := utils.Decrypt(cfg.Password, n.EncKey)
	if err != nil {
		return nil, fmt.Errorf("decrypt smtp password: %w", err)
	}

	recipients, err := n.DB.UsersWithNotificationsEnabled(ctx)
	if err != nil {
		return nil, fmt.Errorf("load recipients: %w", err)
	}

	dialer := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, password)
	subject := "New in the library: " + book.Title
	body := fmt.Sprintf("%s by %s is now available in the e-library.", book.Title, book.Author)

	result := &AnnounceResult{}
	for _, u := range recipients {
		msg := mail.NewMessage()
		msg.SetHeader("From", cfg.FromEmail)
		msg.SetHeader("To", u.Email)
		msg.SetHeader("Subject", subject)
		msg.SetBody("text/plain", "Hi "+u.Name+",\n\n"+body)

		entry := &models.EmailLog{
			To:      u.Email,
			Subject: subject,
			BookID:  book.ID,
			Status:  "sent",
			SentAt:  time.Now(),
		}
		if err := dialer.DialAndSend(msg); err != nil {
			entry.Status = "failed"
			entry.Error = err.Error()
			result.Failed++
			n.Log.Warn("announcement send failed", zap.String("to", u.Email), zap.Error(err))
		} else {
			result.Sent++
		}
		if err := n.DB.InsertEmailLog(ctx, entry); err != nil {
			n.Log.Warn("email log insert failed", zap.Error(err))
		}
	}
	return result, nil
}
