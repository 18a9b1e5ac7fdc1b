// Package firestore provides a Firestore implementation of the users.Storage interface.
// User records live in a single collection keyed by email and are written with
// firestore.MergeAll so that fields an event does not mention stay untouched.
package firestore

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mihaimyh/lemongate/pkg/users"
)

const defaultUsersCollection = "users"

// Storage implements users.Storage using Google Cloud Firestore
type Storage struct {
	client           *firestore.Client
	usersCollection  string
	clientTimestamps bool
}

// Config holds Firestore storage configuration
type Config struct {
	// UsersCollection is the Firestore collection for user records
	// Default: "users"
	UsersCollection string

	// ClientTimestamps writes the gateway's clock into timestamp fields.
	// By default timestamp fields are written as firestore.ServerTimestamp.
	ClientTimestamps bool
}

// New creates a new Firestore storage adapter
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}

	if config.UsersCollection == "" {
		config.UsersCollection = defaultUsersCollection
	}

	return &Storage{
		client:           client,
		usersCollection:  config.UsersCollection,
		clientTimestamps: config.ClientTimestamps,
	}, nil
}

// UpsertUser implements users.Storage
func (s *Storage) UpsertUser(ctx context.Context, update users.Update) error {
	if err := validateKey(update.Email); err != nil {
		return err
	}

	_, err := s.client.Collection(s.usersCollection).
		Doc(update.Email).
		Set(ctx, s.documentData(update), firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// GetUser implements users.Storage
func (s *Storage) GetUser(ctx context.Context, email string) (*users.Record, error) {
	if err := validateKey(email); err != nil {
		return nil, err
	}

	snap, err := s.client.Collection(s.usersCollection).Doc(email).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, users.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !snap.Exists() {
		return nil, users.ErrUserNotFound
	}

	var rec users.Record
	if err := snap.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	if rec.Email == "" {
		rec.Email = email
	}
	return &rec, nil
}

// Close releases the underlying client.
func (s *Storage) Close() error {
	return s.client.Close()
}

// documentData converts an update into the merge payload. Timestamp fields
// become server timestamps unless client timestamps are configured.
func (s *Storage) documentData(update users.Update) map[string]interface{} {
	data := update.Fields()
	if s.clientTimestamps {
		return data
	}
	for _, key := range []string{users.FieldPurchaseDate, users.FieldSubscriptionStart, users.FieldLastUpdated} {
		if _, ok := data[key]; ok {
			data[key] = firestore.ServerTimestamp
		}
	}
	return data
}

// validateKey rejects emails that cannot be used as a document ID.
func validateKey(email string) error {
	if strings.TrimSpace(email) == "" || strings.Contains(email, "/") {
		return users.ErrInvalidEmail
	}
	return nil
}
