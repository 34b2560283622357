package store

import (
	"context"
	"time"

	"github.com/elibrary/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SMTPConfigDoc returns the single SMTP settings document, or nil if none
// has been saved yet.
func (db *DB) SMTPConfigDoc(ctx context.Context) (*models.SMTPConfig, error) {
	var cfg models.SMTPConfig
	err := db.NotificationConfig().FindOne(ctx, bson.M{}).Decode(&cfg)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveSMTPConfig upserts the single SMTP settings document.
func (db *DB) SaveSMTPConfig(ctx context.Context, cfg *models.SMTPConfig) error {
	cfg.UpdatedAt = time.Now()
	update := bson.M{"$set": bson.M{
		"host":      cfg.Host,
		"port":      cfg.Port,
		"username":  cfg.Username,
		"password":  cfg.Password,
		"fromEmail": cfg.FromEmail,
		"updatedAt": cfg.UpdatedAt,
	}}
	_, err := db.NotificationConfig().UpdateOne(ctx, bson.M{}, update, options.Update().SetUpsert(true))
	return err
}

func (db *DB) InsertEmailLog(ctx context.Context, entry *models.EmailLog) error {
	_, err := db.EmailLogs().InsertOne(ctx, entry)
	return err
}

// RecentEmailLogs returns the most recent send attempts, newest first.
func (db *DB) RecentEmailLogs(ctx context.Context, limit int64) ([]models.EmailLog, error) {
	cur, err := db.EmailLogs().Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"sentAt": -1}).SetLimit(limit))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var logs []models.EmailLog
	if err := cur.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
