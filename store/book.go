package store

import (
	"context"
	"time"

	"github.com/elibrary/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// BookFilter narrows ListBooks results. Zero value matches all active books.
type BookFilter struct {
	Search   string // substring match on title, author or tags
	Category string
	Featured bool
	Page     int64 // 1-based
	Limit    int64
}

func (db *DB) InsertBook(ctx context.Context, book *models.Book) (primitive.ObjectID, error) {
	res, err := db.Books().InsertOne(ctx, book)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (db *DB) BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var book models.Book
	err := db.Books().FindOne(ctx, bson.M{"_id": id}).Decode(&book)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (db *DB) ListBooks(ctx context.Context, filter BookFilter) ([]models.Book, int64, error) {
	query := bson.M{"isActive": true}
	if filter.Search != "" {
		query["$or"] = bson.A{
			bson.M{"title": bson.M{"$regex": filter.Search, "$options": "i"}},
			bson.M{"author": bson.M{"$regex": filter.Search, "$options": "i"}},
			bson.M{"tags": bson.M{"$regex": filter.Search, "$options": "i"}},
		}
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Featured {
		query["isFeatured"] = true
	}
	total, err := db.Books().CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(bson.M{"createdAt": -1})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
		if filter.Page > 1 {
			opts.SetSkip((filter.Page - 1) * filter.Limit)
		}
	}
	cur, err := db.Books().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	var books []models.Book
	if err := cur.All(ctx, &books); err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

// UpdateBook replaces a book's editable fields by ID.
func (db *DB) UpdateBook(ctx context.Context, id primitive.ObjectID, book *models.Book) error {
	update := bson.M{
		"title":           book.Title,
		"author":          book.Author,
		"description":     book.Description,
		"isbn":            book.ISBN,
		"category":        book.Category,
		"coverImage":      book.CoverImage,
		"pages":           book.Pages,
		"publicationYear": book.PublicationYear,
		"publisher":       book.Publisher,
		"language":        book.Language,
		"accessLevel":     book.AccessLevel,
		"tags":            book.Tags,
		"isFeatured":      book.IsFeatured,
		"isActive":        book.IsActive,
		"updatedAt":       time.Now(),
	}
	_, err := db.Books().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": update})
	return err
}

// DeleteBook removes a book by ID and returns its S3 keys so the caller can
// clean up storage.
func (db *DB) DeleteBook(ctx context.Context, id primitive.ObjectID) (fileS3Key, coverS3Key string, err error) {
	var book models.Book
	err = db.Books().FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&book)
	if err != nil {
		return "", "", err
	}
	return book.FileS3Key, book.CoverS3Key, nil
}

// IncrementDownloadCount bumps the book's global download counter by 1. This
// is a separate write from the user-document update that records the same
// download; the two are not transactional.
func (db *DB) IncrementDownloadCount(ctx context.Context, id primitive.ObjectID) error {
	_, err := db.Books().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"downloadCount": 1}})
	return err
}

// IncrementViewCount bumps the book's view counter by 1.
func (db *DB) IncrementViewCount(ctx context.Context, id primitive.ObjectID) error {
	_, err := db.Books().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"viewCount": 1}})
	return err
}
