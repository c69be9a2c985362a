package telegrambot

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// BotLogger routes the Telegram library's internal logging into zerolog.
// Pass it to tgbotapi.SetLogger.
type BotLogger struct {
	log zerolog.Logger
}

func NewBotLogger(l zerolog.Logger) *BotLogger {
	return &BotLogger{log: l.With().Str("component", "tgbotapi").Logger()}
}

// Println is used by the library for polling failures.
func (b *BotLogger) Println(v ...interface{}) {
	b.log.Warn().Msg(strings.TrimSpace(fmt.Sprintln(v...)))
}

// Printf is used for request/response tracing in debug mode.
func (b *BotLogger) Printf(format string, v ...interface{}) {
	b.log.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
