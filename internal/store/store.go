// package store persists the signed-in credential and settings snapshots.
//
// Values live in a small key/value table. [Credentials] layers the credential document on top
// of any [KV] and doubles as the gateway's [oauth2.TokenSource].
package store

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/desertthunder/playsync/internal/identity"
	"github.com/desertthunder/playsync/internal/models"
	"github.com/desertthunder/playsync/internal/shared"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	tokenKey   = "token"
	profileKey = "profile"
)

// KV is a byte-valued key/value store. Get returns nil, nil for a missing key.
type KV interface {
	Set(key string, value []byte) error
	Get(key string) ([]byte, error)
	Delete(key string) error
}

// SQLiteKV stores values in the credentials table.
type SQLiteKV struct {
	db *sql.DB
}

func NewSQLiteKV(db *sql.DB) *SQLiteKV {
	return &SQLiteKV{db: db}
}

func (s *SQLiteKV) Set(key string, value []byte) error {
	query := `
		INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.Exec(query, key, value, time.Now().UTC()); err != nil {
		return errors.Wrapf(err, "failed to store %s", key)
	}
	return nil
}

func (s *SQLiteKV) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM credentials WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get %s", key)
	}
	return value, nil
}

func (s *SQLiteKV) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM credentials WHERE key = ?`, key); err != nil {
		return errors.Wrapf(err, "failed to delete %s", key)
	}
	return nil
}

// MemoryKV keeps values in process memory.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string][]byte)}
}

func (m *MemoryKV) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryKV) Get(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Credentials reads and writes the stored [models.Credential].
type Credentials struct {
	kv       KV
	resolver *identity.Resolver
}

func NewCredentials(kv KV) *Credentials {
	return &Credentials{kv: kv, resolver: identity.NewResolver()}
}

// Save replaces the stored credential. The token's exp claim, if any, becomes the oauth2 expiry.
func (c *Credentials) Save(cred models.Credential) error {
	if cred.Empty() {
		return errors.Wrap(shared.ErrMissingCredentials, "cannot store empty token")
	}

	tok := &oauth2.Token{AccessToken: cred.Token, TokenType: "Bearer"}
	if exp, ok := c.resolver.Expiry(cred.Token); ok {
		tok.Expiry = exp
	}

	tokenJSON, err := json.Marshal(tok)
	if err != nil {
		return errors.Wrap(err, "failed to marshal token")
	}
	profileJSON, err := json.Marshal(cred.Profile)
	if err != nil {
		return errors.Wrap(err, "failed to marshal profile")
	}

	if err := c.kv.Set(tokenKey, tokenJSON); err != nil {
		return err
	}
	return c.kv.Set(profileKey, profileJSON)
}

// Credential returns the stored credential. A missing credential is the zero value, not an error.
func (c *Credentials) Credential() (models.Credential, error) {
	tok, err := c.token()
	if err != nil || tok == nil {
		return models.Credential{}, err
	}

	cred := models.Credential{Token: tok.AccessToken}
	profileJSON, err := c.kv.Get(profileKey)
	if err != nil {
		return models.Credential{}, err
	}
	if len(profileJSON) > 0 {
		if err := json.Unmarshal(profileJSON, &cred.Profile); err != nil {
			return models.Credential{}, errors.Wrap(err, "failed to unmarshal profile")
		}
	}
	return cred, nil
}

// Token implements [oauth2.TokenSource]. It fails with [shared.ErrMissingCredentials] when signed out.
func (c *Credentials) Token() (*oauth2.Token, error) {
	tok, err := c.token()
	if err != nil {
		return nil, err
	}
	if tok == nil || tok.AccessToken == "" {
		return nil, shared.ErrMissingCredentials
	}
	return tok, nil
}

func (c *Credentials) token() (*oauth2.Token, error) {
	tokenJSON, err := c.kv.Get(tokenKey)
	if err != nil {
		return nil, err
	}
	if len(tokenJSON) == 0 {
		return nil, nil
	}

	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal token")
	}
	return &tok, nil
}

// Clear removes the stored credential.
func (c *Credentials) Clear() error {
	if err := c.kv.Delete(tokenKey); err != nil {
		return err
	}
	return c.kv.Delete(profileKey)
}
