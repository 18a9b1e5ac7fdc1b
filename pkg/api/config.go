package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mihaimyh/lemongate/pkg/billing"
	"github.com/mihaimyh/lemongate/pkg/users"
)

// Syncer reconciles a user with the billing provider. billing.Provider
// satisfies it.
type Syncer interface {
	SyncUser(ctx context.Context, email string) (string, error)
}

// Config holds configuration for the user API handler
type Config struct {
	// Store is the user record store (required)
	Store users.Storage

	// GetEmail extracts the user's email from the HTTP request (required)
	GetEmail func(*http.Request) string

	// Syncer enables the sync endpoint. If nil, sync answers 501.
	Syncer Syncer

	// OnError handles errors (auth, internal, etc.)
	// If nil, uses default error handling
	OnError func(http.ResponseWriter, *http.Request, error)

	// Logger is optional; internal errors are logged through it
	Logger billing.Logger
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Store == nil {
		return fmt.Errorf("store is required")
	}
	if c.GetEmail == nil {
		return fmt.Errorf("getEmail is required")
	}
	return nil
}

// NewHandler creates a new user API handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = &billing.NoopLogger{}
	}
	return &Handler{
		config: config,
	}, nil
}

// FromHeader returns a GetEmail function that reads the email from a header
func FromHeader(headerName string) func(*http.Request) string {
	return func(r *http.Request) string {
		return r.Header.Get(headerName)
	}
}

// FromContext returns a GetEmail function that reads the email from the
// request context, e.g. after an auth middleware stored it there
func FromContext(key interface{}) func(*http.Request) string {
	return func(r *http.Request) string {
		if email, ok := r.Context().Value(key).(string); ok {
			return email
		}
		return ""
	}
}

// FromPathValue returns a GetEmail function that reads a path wildcard set by
// http.ServeMux or any router that populates Request.PathValue.
func FromPathValue(name string) func(*http.Request) string {
	return func(r *http.Request) string {
		return r.PathValue(name)
	}
}
