// Package mongo stores users as documents in a MongoDB "users" collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-inbox/internal/config"
	"github.com/kozaktomas/face-inbox/internal/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const usersCollection = "users"

// userDoc is the stored document shape.
type userDoc struct {
	ID            primitive.ObjectID `bson:"_id"`
	FaceEncodings [][]float64        `bson:"face_encodings"`
	CreatedAt     time.Time          `bson:"created_at"`
	Gmail         *gmailDoc          `bson:"gmail,omitempty"`
}

type gmailDoc struct {
	Email    string         `bson:"email"`
	Tokens   database.Token `bson:"tokens"`
	LinkedAt time.Time      `bson:"linked_at"`
}

// Store wraps a connected client and the users collection.
type Store struct {
	client *mongo.Client
	users  *mongo.Collection
}

// Connect opens a client for cfg.URL and prepares the users collection.
func Connect(ctx context.Context, cfg *config.DatabaseConfig) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(cfg.URL)
	opts.SetMaxPoolSize(uint64(max(cfg.MaxOpenConns, 1)))
	opts.SetMinPoolSize(uint64(max(min(cfg.MaxIdleConns, cfg.MaxOpenConns), 0)))

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	users := client.Database(cfg.MongoDatabase).Collection(usersCollection)
	if _, err := users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: 1}},
	}); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create users index: %w", err)
	}

	return &Store{client: client, users: users}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}

// Ping reports whether the primary answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("ping mongodb: %w", err)
	}
	return nil
}

// Users returns the user repository backed by this store.
func (s *Store) Users() *UserRepository {
	return &UserRepository{coll: s.users}
}
