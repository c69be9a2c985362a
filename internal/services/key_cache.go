package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akagifreeez/telegram-key-bot/internal/models"
)

// KeyCache stores the last known API key per Telegram user.
// It is never authoritative: the remote key service may have rotated the key
// since the last Put.
type KeyCache interface {
	// Put inserts or replaces the record for telegramID and refreshes
	// updated_at. A different user holding the same username loses its row.
	Put(ctx context.Context, telegramID int64, username, apiKey string) error
	// Get returns the cached record, or nil when the user has none.
	Get(ctx context.Context, telegramID int64) (*models.UserKey, error)
	Ping(ctx context.Context) error
	Close() error
}

// OpenKeyCache picks the backend from the database URL: postgres:// URLs go
// to PostgreSQL, anything else is treated as a SQLite file path. The schema
// is migrated before returning.
func OpenKeyCache(ctx context.Context, databaseURL string) (KeyCache, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return OpenPostgresKeyCache(ctx, databaseURL)
	}
	return OpenSQLiteKeyCache(databaseURL)
}

func validatePut(telegramID int64, username, apiKey string) error {
	if telegramID == 0 {
		return fmt.Errorf("telegram id is required")
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if apiKey == "" {
		return fmt.Errorf("api key is required")
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	formats := []string{
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
		time.RFC3339,
		time.RFC3339Nano,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
