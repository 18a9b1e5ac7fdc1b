package firestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
)

const (
	emulatorHostEnv = "FIRESTORE_EMULATOR_HOST"
	googleTokenURI  = "https://oauth2.googleapis.com/token"
)

// Credentials identifies a Firebase service account. When ClientEmail or
// PrivateKey is empty, Application Default Credentials are used instead.
type Credentials struct {
	ProjectID   string
	ClientEmail string

	// PrivateKey is the PEM key. Literal "\n" sequences, as found in
	// single-line environment values, are turned into newlines.
	PrivateKey string
}

type serviceAccountKey struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`
}

// HasServiceAccount reports whether explicit service-account credentials are set.
func (c Credentials) HasServiceAccount() bool {
	return strings.TrimSpace(c.ClientEmail) != "" && strings.TrimSpace(c.PrivateKey) != ""
}

// NormalizedPrivateKey returns the private key with escaped newlines restored.
func (c Credentials) NormalizedPrivateKey() string {
	key := strings.TrimSpace(c.PrivateKey)
	if len(key) >= 2 && key[0] == '"' && key[len(key)-1] == '"' {
		key = key[1 : len(key)-1]
	}
	return strings.ReplaceAll(key, `\n`, "\n")
}

func (c Credentials) serviceAccountJSON() ([]byte, error) {
	return json.Marshal(serviceAccountKey{
		Type:        "service_account",
		ProjectID:   strings.TrimSpace(c.ProjectID),
		ClientEmail: strings.TrimSpace(c.ClientEmail),
		PrivateKey:  c.NormalizedPrivateKey(),
		TokenURI:    googleTokenURI,
	})
}

// NewClient creates a Firestore client from creds. Explicit credentials are
// ignored when FIRESTORE_EMULATOR_HOST is set.
func NewClient(ctx context.Context, creds Credentials) (*firestore.Client, error) {
	projectID := strings.TrimSpace(creds.ProjectID)
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}

	var opts []option.ClientOption
	if os.Getenv(emulatorHostEnv) == "" && creds.HasServiceAccount() {
		keyJSON, err := creds.serviceAccountJSON()
		if err != nil {
			return nil, fmt.Errorf("failed to encode service account: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(keyJSON))
	}

	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return client, nil
}
