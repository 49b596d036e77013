package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// Credential values are encrypted with AES-256-GCM before write and decrypted after read.
type CredentialRepo struct {
	db  *DB
	key []byte // 32-byte AES-256 key; nil when encryption is disabled.
}

// NewCredentialRepo creates a new CredentialRepo. key must be 32 bytes for AES-256-GCM,
// or nil to disable credential storage (value operations return ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, key []byte) *CredentialRepo {
	return &CredentialRepo{db: db, key: key}
}

// Set stores or replaces a single credential value.
func (r *CredentialRepo) Set(ctx context.Context, connectionID, key, value string) error {
	encrypted, err := r.encrypt(value)
	if err != nil {
		return err
	}

	const query = `INSERT INTO credentials (connection_id, cred_key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (connection_id, cred_key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`
	if _, err := r.db.Writer.ExecContext(ctx, query, connectionID, key, encrypted); err != nil {
		return fmt.Errorf("set credential %q/%q: %w", connectionID, key, err)
	}
	return nil
}

// Get retrieves a single credential value.
// Returns ("", nil) if no value exists for that key.
func (r *CredentialRepo) Get(ctx context.Context, connectionID, key string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT value FROM credentials WHERE connection_id = ? AND cred_key = ?`
	var encrypted string
	err := r.db.Reader.QueryRowContext(ctx, query, connectionID, key).Scan(&encrypted)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %q/%q: %w", connectionID, key, err)
	}

	plaintext, err := r.decrypt(encrypted)
	if err != nil {
		return "", fmt.Errorf("decrypt credential %q/%q: %w", connectionID, key, err)
	}
	return plaintext, nil
}

// GetAll returns every stored value for a connection, decrypted.
func (r *CredentialRepo) GetAll(ctx context.Context, connectionID string) (map[string]string, error) {
	if r.key == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT cred_key, value FROM credentials WHERE connection_id = ?`
	rows, err := r.db.Reader.QueryContext(ctx, query, connectionID)
	if err != nil {
		return nil, fmt.Errorf("list credentials for %q: %w", connectionID, err)
	}
	defer rows.Close()

	fields := make(map[string]string)
	for rows.Next() {
		var key, encrypted string
		if err := rows.Scan(&key, &encrypted); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}

		plaintext, err := r.decrypt(encrypted)
		if err != nil {
			return nil, fmt.Errorf("decrypt credential %q/%q: %w", connectionID, key, err)
		}
		fields[key] = plaintext
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return fields, nil
}

// Replace atomically swaps all values of a connection for fields.
func (r *CredentialRepo) Replace(ctx context.Context, connectionID string, fields map[string]string) error {
	if r.key == nil {
		return driven.ErrEncryptionKeyNotSet
	}

	// Encrypt before opening the transaction so the writer is held briefly.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	encrypted := make([]string, len(keys))
	for i, k := range keys {
		enc, err := r.encrypt(fields[k])
		if err != nil {
			return err
		}
		encrypted[i] = enc
	}

	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace %q: %w", connectionID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE connection_id = ?`, connectionID); err != nil {
		return fmt.Errorf("clear credentials %q: %w", connectionID, err)
	}

	const insert = `INSERT INTO credentials (connection_id, cred_key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`
	for i, k := range keys {
		if _, err := tx.ExecContext(ctx, insert, connectionID, k, encrypted[i]); err != nil {
			return fmt.Errorf("insert credential %q/%q: %w", connectionID, k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace %q: %w", connectionID, err)
	}
	return nil
}

// Delete removes a single credential value.
func (r *CredentialRepo) Delete(ctx context.Context, connectionID, key string) error {
	const query = `DELETE FROM credentials WHERE connection_id = ? AND cred_key = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, connectionID, key); err != nil {
		return fmt.Errorf("delete credential %q/%q: %w", connectionID, key, err)
	}
	return nil
}

// DeleteConnection removes every value stored for a connection.
func (r *CredentialRepo) DeleteConnection(ctx context.Context, connectionID string) error {
	const query = `DELETE FROM credentials WHERE connection_id = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, connectionID); err != nil {
		return fmt.Errorf("delete connection %q: %w", connectionID, err)
	}
	return nil
}

// ListConnections returns the ids of all connections with stored values.
func (r *CredentialRepo) ListConnections(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT connection_id FROM credentials ORDER BY connection_id`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connections: %w", err)
	}
	return ids, nil
}

// encrypt encrypts plaintext using AES-256-GCM and returns a base64-encoded string
// containing the nonce (12 bytes) prepended to the ciphertext.
func (r *CredentialRepo) encrypt(plaintext string) (string, error) {
	if r.key == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	gcm, err := r.aead()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	// Seal appends the ciphertext to nonce, producing: nonce || ciphertext || tag.
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// decrypt decrypts a base64-encoded AES-256-GCM ciphertext.
func (r *CredentialRepo) decrypt(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	gcm, err := r.aead()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("gcm.Open: %w", err)
	}

	return string(plaintext), nil
}

func (r *CredentialRepo) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(r.key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}
