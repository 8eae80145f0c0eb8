// Package store provides read access to the document store holding cluster
// partitions and ingested articles.
//
// The store is an explicitly constructed dependency with its own lifecycle:
// opened before a pipeline pass or server start, closed by the owner. The
// pipeline only reads from it; the single write path is the user upsert done
// by the login callback.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/newsdeck/internal/cluster"
)

// Store wraps a document-store client and database handle.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// Open connects to the document store and verifies connectivity with a ping.
// A store that cannot be reached at startup is a fatal condition for the
// caller; Open surfaces it rather than degrading.
func Open(ctx context.Context, uri, database string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("store ping failed: %w", err)
	}

	logger.Info("connected to document store", zap.String("database", database))

	return &Store{
		client: client,
		db:     client.Database(database),
		logger: logger,
	}, nil
}

// Close releases the underlying client.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("store disconnect: %w", err)
	}
	return nil
}

// Clusters loads every record from the named partition collection, sorted by
// identifier descending (most recent first, stable for ties).
//
// A collection that does not yet exist or is empty yields an empty slice,
// not an error.
func (s *Store) Clusters(ctx context.Context, collection string) ([]cluster.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})
	cur, err := s.db.Collection(collection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var records []cluster.Record
	if err := cur.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	if records == nil {
		records = []cluster.Record{}
	}
	return records, nil
}

// ArticleURLs lists the source URLs of every ingested article in the named
// collection. This bulk listing seeds the metadata index once per pass.
func (s *Store) ArticleURLs(ctx context.Context, collection string) ([]string, error) {
	opts := options.Find().SetProjection(bson.D{{Key: "url", Value: 1}, {Key: "_id", Value: 0}})
	cur, err := s.db.Collection(collection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var docs []struct {
		URL string `bson:"url"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}

	urls := make([]string, 0, len(docs))
	for _, d := range docs {
		if d.URL != "" {
			urls = append(urls, d.URL)
		}
	}
	return urls, nil
}

// User is an authenticated dashboard user.
type User struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	Name      string    `bson:"name"`
	CreatedAt time.Time `bson:"created_at"`
}

// UpsertUser inserts a user record if no record with the email exists and
// returns the stored user either way.
//
// The existence check and insert are not transactional; two concurrent
// logins for a new user can race and insert duplicates. Accepted as-is.
func (s *Store) UpsertUser(ctx context.Context, collection, email, name string) (*User, error) {
	coll := s.db.Collection(collection)

	var existing User
	err := coll.FindOne(ctx, bson.D{{Key: "email", Value: email}}).Decode(&existing)
	if err == nil {
		return &existing, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("find user: %w", err)
	}

	u := &User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := coll.InsertOne(ctx, u); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	s.logger.Info("created user", zap.String("email", email))
	return u, nil
}
