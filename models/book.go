package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Access level constants for download gating.
const (
	AccessPublic  = "public"
	AccessPremium = "premium"
	AccessAdmin   = "admin"
)

var ValidAccessLevels = []string{AccessPublic, AccessPremium, AccessAdmin}

var ValidCategories = []string{
	"Fiction", "Non-Fiction", "Science", "Technology", "History",
	"Biography", "Self-Help", "Business", "Other",
}

type Book struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title           string             `bson:"title" json:"title"`
	Author          string             `bson:"author" json:"author"`
	Description     string             `bson:"description" json:"description"`
	ISBN            string             `bson:"isbn,omitempty" json:"isbn,omitempty"`
	Category        string             `bson:"category" json:"category"`
	CoverImage      string             `bson:"coverImage,omitempty" json:"coverImage,omitempty"`
	FileS3Key       string             `bson:"fileS3Key" json:"-"` // object key in S3
	CoverS3Key      string             `bson:"coverS3Key,omitempty" json:"-"`
	FileSize        int64              `bson:"fileSize" json:"fileSize"`
	Format          string             `bson:"format" json:"format"` // "pdf" or "epub"
	Pages           int                `bson:"pages" json:"pages"`
	PublicationYear int                `bson:"publicationYear,omitempty" json:"publicationYear,omitempty"`
	Publisher       string             `bson:"publisher,omitempty" json:"publisher,omitempty"`
	Language        string             `bson:"language" json:"language"`
	AccessLevel     string             `bson:"accessLevel" json:"accessLevel"` // public, premium, admin
	Tags            []string           `bson:"tags,omitempty" json:"tags,omitempty"`
	IsFeatured      bool               `bson:"isFeatured" json:"isFeatured"`
	IsActive        bool               `bson:"isActive" json:"isActive"`
	UploadedBy      primitive.ObjectID `bson:"uploadedBy" json:"uploadedBy"`
	DownloadCount   int64              `bson:"downloadCount" json:"downloadCount"`
	ViewCount       int64              `bson:"viewCount" json:"viewCount"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsPremium reports whether downloads of this book are gated on premium
// access.
func (b *Book) IsPremium() bool {
	return b.AccessLevel == AccessPremium
}

func CategoryValid(category string) bool {
	for _, c := range ValidCategories {
		if c == category {
			return true
		}
	}
	return false
}

func AccessLevelValid(level string) bool {
	for _, l := range ValidAccessLevels {
		if l == level {
			return true
		}
	}
	return false
}
