package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SMTPConfig holds the outbound mail settings for book announcements. A
// single document lives in the notification_config collection; Password is
// stored AES-256-GCM encrypted.
type SMTPConfig struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Host      string             `bson:"host" json:"host"`
	Port      int                `bson:"port" json:"port"`
	Username  string             `bson:"username" json:"username"`
	Password  string             `bson:"password" json:"-"`
	FromEmail string             `bson:"fromEmail" json:"fromEmail"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// EmailLog records one announcement send attempt.
type EmailLog struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	To      string             `bson:"to" json:"to"`
	Subject string             `bson:"subject" json:"subject"`
	BookID  primitive.ObjectID `bson:"bookId,omitempty" json:"bookId,omitempty"`
	Status  string             `bson:"status" json:"status"` // sent or failed
	Error   string             `bson:"error,omitempty" json:"error,omitempty"`
	SentAt  time.Time          `bson:"sentAt" json:"sentAt"`
}
