package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(ctx context.Context, uri, dbName string) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	db := &DB{
		Client:   client,
		Database: client.Database(dbName),
	}
	if err := db.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

func (db *DB) ensureIndexes(ctx context.Context) error {
	_, err := db.Users().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "role", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "readingList.book", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = db.Books().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "accessLevel", Value: 1}}},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
	})
	return err
}

func (db *DB) Users() *mongo.Collection {
	return db.Database.Collection("users")
}

func (db *DB) Books() *mongo.Collection {
	return db.Database.Collection("books")
}

func (db *DB) NotificationConfig() *mongo.Collection {
	return db.Database.Collection("notification_config")
}

func (db *DB) EmailLogs() *mongo.Collection {
	return db.Database.Collection("email_logs")
}

func (db *DB) Disconnect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Client.Disconnect(ctx)
}
