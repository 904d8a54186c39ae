package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// credentialKey is the fixed identifier of the single credential row. The
// subsystem holds one credential set per authenticated professional.
const credentialKey = "primary"

// CredentialStore persists the OAuth2 token pair in the credentials table.
// Absence of the row means "not connected". It implements auth.TokenStore.
type CredentialStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewCredentialStore creates a credential store backed by db.
func NewCredentialStore(db *DB) *CredentialStore {
	return &CredentialStore{db: db.sql, now: time.Now}
}

// SaveToken upserts the token pair. The refresh token is the durable part;
// the access token and its expiry are kept only to warm up after a restart.
func (s *CredentialStore) SaveToken(token *oauth2.Token) error {
	if token == nil || token.RefreshToken == "" {
		return fmt.Errorf("refusing to persist credential without a refresh token")
	}

	var expiry sql.NullString
	if !token.Expiry.IsZero() {
		expiry.String = token.Expiry.UTC().Format(time.RFC3339)
		expiry.Valid = true
	}

	_, err := s.db.Exec(`
		INSERT INTO credentials (id, refresh_token, access_token, access_token_expiry, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			refresh_token = excluded.refresh_token,
			access_token = excluded.access_token,
			access_token_expiry = excluded.access_token_expiry,
			updated_at = excluded.updated_at`,
		credentialKey, token.RefreshToken, token.AccessToken, expiry,
		s.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// LoadToken returns the persisted token pair, or nil (and no error) when
// not connected.
func (s *CredentialStore) LoadToken() (*oauth2.Token, error) {
	row := s.db.QueryRow(
		`SELECT refresh_token, access_token, access_token_expiry FROM credentials WHERE id = ?`,
		credentialKey)

	var token oauth2.Token
	var expiry sql.NullString
	err := row.Scan(&token.RefreshToken, &token.AccessToken, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}

	if expiry.Valid {
		if t, err := time.Parse(time.RFC3339, expiry.String); err == nil {
			token.Expiry = t
		}
	}
	return &token, nil
}

// Clear erases the persisted credential. Clearing an absent credential is
// a no-op.
func (s *CredentialStore) Clear() error {
	if _, err := s.db.Exec(`DELETE FROM credentials WHERE id = ?`, credentialKey); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}
