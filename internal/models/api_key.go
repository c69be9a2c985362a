package models

import (
	"time"
)

// UserKey is the locally cached credential for one Telegram user.
// The remote key service stays authoritative; this row only holds the last
// key the bot saw.
type UserKey struct {
	TelegramID int64     `json:"telegram_id" db:"telegram_id"`
	Username   string    `json:"username" db:"username"`
	APIKey     string    `json:"-" db:"api_key"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// MaskedKey returns the key with everything but the last four characters
// hidden, for log lines.
func (k *UserKey) MaskedKey() string {
	return MaskKey(k.APIKey)
}

func MaskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
