package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/akagifreeez/telegram-key-bot/internal/models"
	"github.com/akagifreeez/telegram-key-bot/pkg/database"
)

var _ KeyCache = (*SQLiteKeyCache)(nil)

// SQLiteKeyCache keeps the users table in a local SQLite file.
type SQLiteKeyCache struct {
	db *database.SQLite
}

// OpenSQLiteKeyCache opens the file at path and migrates it.
func OpenSQLiteKeyCache(path string) (*SQLiteKeyCache, error) {
	db, err := database.NewSQLite(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("path", path).Msg("SQLite key cache ready")
	return NewSQLiteKeyCache(db), nil
}

// NewSQLiteKeyCache wraps an already migrated database.
func NewSQLiteKeyCache(db *database.SQLite) *SQLiteKeyCache {
	return &SQLiteKeyCache{db: db}
}

func (c *SQLiteKeyCache) Put(ctx context.Context, telegramID int64, username, apiKey string) error {
	if err := validatePut(telegramID, username, apiKey); err != nil {
		return err
	}

	tx, err := c.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put %d: %w", telegramID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM users WHERE username = ? AND telegram_id <> ?`,
		username, telegramID,
	); err != nil {
		return fmt.Errorf("release username %q: %w", username, err)
	}

	const upsert = `
		INSERT INTO users (telegram_id, username, api_key, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT (telegram_id) DO UPDATE
		SET username = excluded.username,
			api_key = excluded.api_key,
			updated_at = CURRENT_TIMESTAMP`
	if _, err := tx.ExecContext(ctx, upsert, telegramID, username, apiKey); err != nil {
		return fmt.Errorf("put key for %d: %w", telegramID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit put %d: %w", telegramID, err)
	}
	return nil
}

func (c *SQLiteKeyCache) Get(ctx context.Context, telegramID int64) (*models.UserKey, error) {
	const query = `SELECT telegram_id, username, api_key, created_at, updated_at FROM users WHERE telegram_id = ?`

	var k models.UserKey
	var createdAt, updatedAt string
	err := c.db.Reader.QueryRowContext(ctx, query, telegramID).
		Scan(&k.TelegramID, &k.Username, &k.APIKey, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get key for %d: %w", telegramID, err)
	}

	if k.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at for %d: %w", telegramID, err)
	}
	if k.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at for %d: %w", telegramID, err)
	}
	return &k, nil
}

func (c *SQLiteKeyCache) Ping(ctx context.Context) error {
	return c.db.Reader.PingContext(ctx)
}

func (c *SQLiteKeyCache) Close() error {
	return c.db.Close()
}
