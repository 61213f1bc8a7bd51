package store

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	"github.com/desertthunder/playsync/internal/models"
	"github.com/pkg/errors"
)

// ErrNoSnapshot is returned when no settings snapshot exists for a user.
var ErrNoSnapshot = errors.New("no settings snapshot")

// Snapshot is a saved copy of a user's full settings document.
type Snapshot struct {
	Document  models.UserSettings
	CreatedAt time.Time
}

// Snapshots keeps the last saved settings document per user.
type Snapshots interface {
	SaveSnapshot(user models.UserID, doc models.UserSettings) error
	Snapshot(user models.UserID) (Snapshot, error)
}

// SQLiteSnapshots stores snapshots in the settings_snapshots table.
type SQLiteSnapshots struct {
	db *sql.DB
}

func NewSQLiteSnapshots(db *sql.DB) *SQLiteSnapshots {
	return &SQLiteSnapshots{db: db}
}

func (s *SQLiteSnapshots) SaveSnapshot(user models.UserID, doc models.UserSettings) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, "failed to marshal settings")
	}

	query := `
		INSERT INTO settings_snapshots (user_id, document, created_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET document = excluded.document, created_at = excluded.created_at
	`
	if _, err := s.db.Exec(query, user.String(), data, time.Now().UTC()); err != nil {
		return errors.Wrap(err, "failed to store settings snapshot")
	}
	return nil
}

func (s *SQLiteSnapshots) Snapshot(user models.UserID) (Snapshot, error) {
	var (
		data      []byte
		createdAt time.Time
	)
	err := s.db.QueryRow(`SELECT document, created_at FROM settings_snapshots WHERE user_id = ?`, user.String()).
		Scan(&data, &createdAt)
	if err == sql.ErrNoRows {
		return Snapshot{}, errors.Wrapf(ErrNoSnapshot, "user %s", user)
	}
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to query settings snapshot")
	}

	snap := Snapshot{CreatedAt: createdAt}
	if err := json.Unmarshal(data, &snap.Document); err != nil {
		return Snapshot{}, errors.Wrap(err, "failed to unmarshal settings snapshot")
	}
	return snap, nil
}

// MemorySnapshots keeps snapshots in process memory.
type MemorySnapshots struct {
	mu    sync.Mutex
	snaps map[models.UserID]Snapshot
}

func NewMemorySnapshots() *MemorySnapshots {
	return &MemorySnapshots{snaps: make(map[models.UserID]Snapshot)}
}

func (m *MemorySnapshots) SaveSnapshot(user models.UserID, doc models.UserSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[user] = Snapshot{Document: doc, CreatedAt: time.Now().UTC()}
	return nil
}

func (m *MemorySnapshots) Snapshot(user models.UserID) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[user]
	if !ok {
		return Snapshot{}, errors.Wrapf(ErrNoSnapshot, "user %s", user)
	}
	return snap, nil
}
