// Package settings provides the key-value settings store in config.db.
// Settings hold the runtime-tunable pieces of the rebalancer (deviation
// threshold, minimum rebalance amount, last run timestamp) and change
// without a restart.
package settings

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// Repository handles settings database operations. Settings are stored as
// strings and converted with type-safe getters.
type Repository struct {
	db  *sql.DB // config.db - settings table
	log zerolog.Logger
}

// NewRepository creates a new settings repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "settings").Logger(),
	}
}

// Get retrieves a setting value by key. Returns nil if the setting doesn't
// exist (not an error).
func (r *Repository) Get(key string) (*string, error) {
	var value string
	err := r.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return &value, nil
}

// Set stores a setting value, inserting or updating as needed
func (r *Repository) Set(key string, value string) error {
	now := time.Now().Unix()

	_, err := r.db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, now)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}

	r.log.Debug().Str("key", key).Msg("Setting updated")
	return nil
}

// GetUint64 retrieves a setting as uint64, returning the default when the
// key is missing.
func (r *Repository) GetUint64(key string, defaultValue uint64) (uint64, error) {
	value, err := r.Get(key)
	if err != nil {
		return 0, err
	}
	if value == nil {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseUint(*value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("setting %s is not a valid unsigned integer: %w", key, err)
	}
	return parsed, nil
}

// SetUint64 stores a uint64 setting
func (r *Repository) SetUint64(key string, value uint64) error {
	return r.Set(key, strconv.FormatUint(value, 10))
}

// GetTime retrieves a setting as a UTC timestamp (stored as Unix seconds).
// Returns the zero time when the key is missing.
func (r *Repository) GetTime(key string) (time.Time, error) {
	value, err := r.Get(key)
	if err != nil {
		return time.Time{}, err
	}
	if value == nil {
		return time.Time{}, nil
	}
	unix, err := strconv.ParseInt(*value, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("setting %s is not a valid timestamp: %w", key, err)
	}
	return time.Unix(unix, 0).UTC(), nil
}

// SetTime stores a timestamp setting as Unix seconds
func (r *Repository) SetTime(key string, t time.Time) error {
	return r.Set(key, strconv.FormatInt(t.Unix(), 10))
}
