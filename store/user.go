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

// UserFilter narrows ListUsers results. Zero value matches everything.
type UserFilter struct {
	Search string // substring match on name or email
	Role   string
	Page   int64 // 1-based
	Limit  int64
}

func (db *DB) CreateUser(ctx context.Context, user *models.User) (primitive.ObjectID, error) {
	res, err := db.Users().InsertOne(ctx, user)
	if err != nil {
		return primitive.NilObjectID, err
	}
	return res.InsertedID.(primitive.ObjectID), nil
}

func (db *DB) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := db.Users().FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *DB) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	err := db.Users().FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ReplaceUser writes the whole user document back. Every engagement mutation
// persists through here, so a document is either fully updated or untouched.
// Concurrent replacements of the same document are last-writer-wins.
func (db *DB) ReplaceUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	res, err := db.Users().ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (db *DB) ListUsers(ctx context.Context, filter UserFilter) ([]models.User, int64, error) {
	query := bson.M{}
	if filter.Search != "" {
		query["$or"] = bson.A{
			bson.M{"name": bson.M{"$regex": filter.Search, "$options": "i"}},
			bson.M{"email": bson.M{"$regex": filter.Search, "$options": "i"}},
		}
	}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	total, err := db.Users().CountDocuments(ctx, query)
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
	cur, err := db.Users().Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// UpdateUserProfile sets only the provided top-level identity fields. Nil
// fields are untouched. Embedded engagement collections are never updated
// through here.
func (db *DB) UpdateUserProfile(ctx context.Context, id primitive.ObjectID, name, email, role *string, isActive *bool) error {
	updates := bson.M{}
	if name != nil {
		updates["name"] = *name
	}
	if email != nil {
		updates["email"] = *email
	}
	if role != nil {
		updates["role"] = *role
	}
	if isActive != nil {
		updates["isActive"] = *isActive
	}
	if len(updates) == 0 {
		return nil
	}
	updates["updatedAt"] = time.Now()
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": updates})
	return err
}

func (db *DB) UpdateUserPassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": id},
		bson.M{"$set": bson.M{"password": hash, "updatedAt": time.Now()}})
	return err
}

func (db *DB) StampLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := db.Users().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"lastLogin": at}})
	return err
}

func (db *DB) DeleteUser(ctx context.Context, id primitive.ObjectID) error {
	_, err := db.Users().DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// RoleCount is one bucket of the by-role user aggregation.
type RoleCount struct {
	Role  string `bson:"_id" json:"role"`
	Count int64  `bson:"count" json:"count"`
}

// UserStats summarizes the users collection for the admin dashboard.
type UserStats struct {
	TotalUsers    int64         `json:"totalUsers"`
	ActiveUsers   int64         `json:"activeUsers"`
	InactiveUsers int64         `json:"inactiveUsers"`
	UsersByRole   []RoleCount   `json:"usersByRole"`
	RecentUsers   []models.User `json:"recentUsers"`
}

func (db *DB) AggregateUserStats(ctx context.Context) (*UserStats, error) {
	total, err := db.Users().CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	active, err := db.Users().CountDocuments(ctx, bson.M{"isActive": true})
	if err != nil {
		return nil, err
	}
	cur, err := db.Users().Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$role", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var byRole []RoleCount
	if err := cur.All(ctx, &byRole); err != nil {
		return nil, err
	}
	recentCur, err := db.Users().Find(ctx, bson.M{},
		options.Find().SetSort(bson.M{"createdAt": -1}).SetLimit(5))
	if err != nil {
		return nil, err
	}
	defer recentCur.Close(ctx)
	var recent []models.User
	if err := recentCur.All(ctx, &recent); err != nil {
		return nil, err
	}
	return &UserStats{
		TotalUsers:    total,
		ActiveUsers:   active,
		InactiveUsers: total - active,
		UsersByRole:   byRole,
		RecentUsers:   recent,
	}, nil
}

// UsersWithNotificationsEnabled returns active users who opted into
// announcement emails.
func (db *DB) UsersWithNotificationsEnabled(ctx context.Context) ([]models.User, error) {
	cur, err := db.Users().Find(ctx, bson.M{"isActive": true, "preferences.notifications": true})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var users []models.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
