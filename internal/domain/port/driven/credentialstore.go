package driven

import (
	"context"
	"errors"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// FITFLOW_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set FITFLOW_SECRET_KEY")

// CredentialStore defines the driven port for encrypted credential persistence.
// Values are keyed by connection id and credential key. The adapter layer is
// responsible for encryption; this interface operates on plaintext values.
type CredentialStore interface {
	// Set stores or replaces a single credential value.
	Set(ctx context.Context, connectionID, key, value string) error

	// Get retrieves a single credential value.
	// Returns ("", nil) if no value exists for that key.
	Get(ctx context.Context, connectionID, key string) (string, error)

	// GetAll returns every stored value for a connection, keyed by
	// credential key. Returns an empty map if the connection is unknown.
	GetAll(ctx context.Context, connectionID string) (map[string]string, error)

	// Replace atomically swaps all values of a connection for fields.
	Replace(ctx context.Context, connectionID string, fields map[string]string) error

	// Delete removes a single credential value. Deleting a missing key is not an error.
	Delete(ctx context.Context, connectionID, key string) error

	// DeleteConnection removes every value stored for a connection.
	DeleteConnection(ctx context.Context, connectionID string) error

	// ListConnections returns the ids of all connections with stored values.
	ListConnections(ctx context.Context) ([]string, error)
}
