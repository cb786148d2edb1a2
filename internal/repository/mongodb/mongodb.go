// Package mongodb implements the account repository on MongoDB.
//
// WHY A DOCUMENT STORE?
// The persisted layout is one `accounts` collection where each document owns
// its whole inbox as an embedded `messages` array. That shape gives us the
// two atomicity properties the app leans on without any transactions:
//
//   - a filtered single-document update ({username, isAcceptingMessages:true}
//     + $push) checks the acceptance flag and appends in one step, so
//     concurrent anonymous senders never lose each other's writes
//   - $pull removes one message in one step, and "nothing removed" is the
//     only signal — which is exactly the ambiguous NotFound we want
//
// Connection pooling, timeouts, and readiness are the driver's job; this
// package only configures them.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/whisper-net/internal/config"
	"github.com/sakif/whisper-net/internal/repository"
)

const accountsCollection = "accounts"

// compile-time check that *Store implements repository.Store
var _ repository.Store = (*Store)(nil)

// Store wraps the mongo client plus the per-operation timeout.
type Store struct {
	client   *mongo.Client
	database string
	timeout  time.Duration
}

// New connects to MongoDB, verifies the connection, and ensures the unique
// username index exists. The unique index is what makes username collisions
// fail atomically at insert time instead of racing a lookup.
func New(cfg config.MongoConfig) (*Store, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx,
		options.Client().ApplyURI(cfg.URI),
		options.Client().SetMaxPoolSize(cfg.MaxPoolSize),
	)
	if err != nil {
		return nil, fmt.Errorf("mongodb: connecting: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), timeout)
	defer pingCancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: pinging: %w", err)
	}

	s := &Store{
		client:   client,
		database: cfg.Database,
		timeout:  timeout,
	}

	if err := s.ensureIndexes(); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb: creating indexes: %w", err)
	}

	return s, nil
}

func (s *Store) accounts() *mongo.Collection {
	return s.client.Database(s.database).Collection(accountsCollection)
}

func (s *Store) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.accounts().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "email", Value: 1}},
		},
	})
	return err
}

// Close disconnects the client, waiting at most as long as ctx allows.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
