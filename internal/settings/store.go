package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/radiusdt/impact-connector/internal/database"
	"github.com/radiusdt/impact-connector/internal/models"
)

// ErrNotConfigured is returned by Load when no plugin settings are stored.
var ErrNotConfigured = errors.New("impact settings not configured")

// Store persists plugin settings in the host's settings table.
type Store interface {
	Load(ctx context.Context) (models.Settings, error)
	Save(ctx context.Context, s models.Settings) error
}

// =============================================
// POSTGRES
// =============================================

// PostgresStore reads and writes the host `setting` table. Rows for the
// configured store override the shared rows (store_id 0).
type PostgresStore struct {
	db      *database.PostgresDB
	storeID int
}

func NewPostgresStore(db *database.PostgresDB, storeID int) *PostgresStore {
	return &PostgresStore{db: db, storeID: storeID}
}

func (s *PostgresStore) Load(ctx context.Context) (models.Settings, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT name, value FROM setting
		WHERE (name LIKE 'impactsettings.%' OR name = $1)
		  AND store_id IN (0, $2)
		ORDER BY store_id
	`, keyStoreIPAddresses, s.storeID)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	defer rows.Close()

	raw := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return models.Settings{}, fmt.Errorf("failed to scan setting: %w", err)
		}
		raw[name] = value
	}
	if err := rows.Err(); err != nil {
		return models.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}

	if !hasPluginKeys(raw) {
		return decode(raw), ErrNotConfigured
	}
	return decode(raw), nil
}

func (s *PostgresStore) Save(ctx context.Context, settings models.Settings) error {
	return s.db.InTx(ctx, func(tx pgx.Tx) error {
		for name, value := range encode(settings) {
			_, err := tx.Exec(ctx, `
				INSERT INTO setting (name, value, store_id)
				VALUES ($1, $2, $3)
				ON CONFLICT (name, store_id) DO UPDATE SET value = EXCLUDED.value
			`, name, value, s.storeID)
			if err != nil {
				return fmt.Errorf("failed to save setting %s: %w", name, err)
			}
		}
		return nil
	})
}

// =============================================
// IN-MEMORY
// =============================================

// InMemoryStore is a Store for tests and database-less runs.
type InMemoryStore struct {
	mu  sync.RWMutex
	raw map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{raw: make(map[string]string)}
}

func (s *InMemoryStore) Load(_ context.Context) (models.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !hasPluginKeys(s.raw) {
		return decode(s.raw), ErrNotConfigured
	}
	return decode(s.raw), nil
}

func (s *InMemoryStore) Save(_ context.Context, settings models.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range encode(settings) {
		s.raw[k] = v
	}
	return nil
}

// SetStoreIPAddresses sets the host customer setting that gates IpAddress.
func (s *InMemoryStore) SetStoreIPAddresses(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v {
		s.raw[keyStoreIPAddresses] = "true"
	} else {
		s.raw[keyStoreIPAddresses] = "false"
	}
}
