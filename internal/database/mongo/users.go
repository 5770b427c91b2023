package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-inbox/internal/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserRepository implements database.UserWriter on a MongoDB collection.
type UserRepository struct {
	coll *mongo.Collection
}

// NewUserRepository wraps an existing collection.
func NewUserRepository(coll *mongo.Collection) *UserRepository {
	return &UserRepository{coll: coll}
}

// byCreation sorts by _id, which grows with insertion time.
var byCreation = options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

// ListWithEncodings returns users whose first encoding exists.
func (r *UserRepository) ListWithEncodings(ctx context.Context) ([]database.User, error) {
	filter := bson.M{"face_encodings.0": bson.M{"$exists": true}}
	return r.find(ctx, filter)
}

// List returns every user in creation order.
func (r *UserRepository) List(ctx context.Context) ([]database.User, error) {
	return r.find(ctx, bson.M{})
}

// Get retrieves a user by hex ObjectID.
func (r *UserRepository) Get(ctx context.Context, id string) (*database.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, database.ErrUserNotFound
	}

	var doc userDoc
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, database.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	u := doc.toUser()
	return &u, nil
}

// Count returns the number of user documents.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return int(n), nil
}

// Create inserts a new user document with one encoding.
func (r *UserRepository) Create(ctx context.Context, encoding []float32, createdAt time.Time) (*database.User, error) {
	doc := userDoc{
		ID:            primitive.NewObjectID(),
		FaceEncodings: [][]float64{toFloat64(encoding)},
		CreatedAt:     createdAt.UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	u := doc.toUser()
	return &u, nil
}

// SetMailLink sets the gmail sub-document.
func (r *UserRepository) SetMailLink(ctx context.Context, id string, link database.MailLink) error {
	return r.update(ctx, id, bson.M{}, bson.M{"$set": bson.M{"gmail": gmailDoc{
		Email:    link.Email,
		Tokens:   link.Token,
		LinkedAt: link.LinkedAt.UTC(),
	}}})
}

// UpdateToken replaces gmail.tokens of a linked user.
func (r *UserRepository) UpdateToken(ctx context.Context, id string, token database.Token) error {
	return r.update(ctx, id, bson.M{"gmail": bson.M{"$exists": true}},
		bson.M{"$set": bson.M{"gmail.tokens": token}})
}

// ClearMailLink unsets the gmail sub-document.
func (r *UserRepository) ClearMailLink(ctx context.Context, id string) error {
	return r.update(ctx, id, bson.M{}, bson.M{"$unset": bson.M{"gmail": ""}})
}

// Delete removes the user document.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return database.ErrUserNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return database.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) update(ctx context.Context, id string, filter bson.M, change bson.M) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return database.ErrUserNotFound
	}
	filter["_id"] = oid

	res, err := r.coll.UpdateOne(ctx, filter, change)
	if err != nil {
		return fmt.Errorf("update user %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return database.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) find(ctx context.Context, filter bson.M) ([]database.User, error) {
	cur, err := r.coll.Find(ctx, filter, byCreation)
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	defer cur.Close(ctx)

	var users []database.User
	for cur.Next(ctx) {
		var doc userDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		users = append(users, doc.toUser())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func (d *userDoc) toUser() database.User {
	u := database.User{
		ID:        d.ID.Hex(),
		CreatedAt: d.CreatedAt,
	}
	for _, enc := range d.FaceEncodings {
		u.FaceEncodings = append(u.FaceEncodings, toFloat32(enc))
	}
	if d.Gmail != nil {
		u.Mail = &database.MailLink{
			Email:    d.Gmail.Email,
			Token:    d.Gmail.Tokens,
			LinkedAt: d.Gmail.LinkedAt,
		}
	}
	return u
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

var _ database.UserWriter = (*UserRepository)(nil)
