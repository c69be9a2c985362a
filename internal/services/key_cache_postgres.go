package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/akagifreeez/telegram-key-bot/internal/models"
	"github.com/akagifreeez/telegram-key-bot/pkg/database"
)

var _ KeyCache = (*PostgresKeyCache)(nil)

// PostgresKeyCache keeps the users table in PostgreSQL, for deployments that
// already run one.
type PostgresKeyCache struct {
	db *database.DB
}

func OpenPostgresKeyCache(ctx context.Context, databaseURL string) (*PostgresKeyCache, error) {
	db, err := database.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	log.Info().Msg("Running database migrations...")
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Msg("PostgreSQL key cache ready")

	return NewPostgresKeyCache(db), nil
}

func NewPostgresKeyCache(db *database.DB) *PostgresKeyCache {
	return &PostgresKeyCache{db: db}
}

func (c *PostgresKeyCache) Put(ctx context.Context, telegramID int64, username, apiKey string) error {
	if err := validatePut(telegramID, username, apiKey); err != nil {
		return err
	}

	tx, err := c.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin put %d: %w", telegramID, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM users WHERE username = $1 AND telegram_id <> $2`,
		username, telegramID,
	); err != nil {
		return fmt.Errorf("release username %q: %w", username, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO users (telegram_id, username, api_key, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (telegram_id) DO UPDATE
		SET username = EXCLUDED.username,
			api_key = EXCLUDED.api_key,
			updated_at = NOW()
	`, telegramID, username, apiKey)
	if err != nil {
		return fmt.Errorf("put key for %d: %w", telegramID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit put %d: %w", telegramID, err)
	}
	return nil
}

func (c *PostgresKeyCache) Get(ctx context.Context, telegramID int64) (*models.UserKey, error) {
	var k models.UserKey
	err := c.db.Pool.QueryRow(ctx,
		`SELECT telegram_id, username, api_key, created_at, updated_at FROM users WHERE telegram_id = $1`,
		telegramID,
	).Scan(&k.TelegramID, &k.Username, &k.APIKey, &k.CreatedAt, &k.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get key for %d: %w", telegramID, err)
	}
	return &k, nil
}

func (c *PostgresKeyCache) Ping(ctx context.Context) error {
	return c.db.Pool.Ping(ctx)
}

func (c *PostgresKeyCache) Close() error {
	c.db.Close()
	return nil
}
