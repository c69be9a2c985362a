package telegrambot

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/message"

	"github.com/akagifreeez/telegram-key-bot/internal/services"
	"github.com/akagifreeez/telegram-key-bot/pkg/keyapi"
	"github.com/akagifreeez/telegram-key-bot/pkg/ratelimit"
)

// Sender delivers replies. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Requester issues raw Bot API calls. *tgbotapi.BotAPI satisfies it.
type Requester interface {
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// KeyAPI is the subset of the remote key service the commands use.
// *keyapi.Client satisfies it.
type KeyAPI interface {
	Register(ctx context.Context, username string, telegramID int64) (*keyapi.KeyInfo, error)
	LookupKey(ctx context.Context, telegramID int64) (*keyapi.KeyInfo, error)
	RotateKey(ctx context.Context, username, currentKey string) (*keyapi.KeyInfo, error)
	Health(ctx context.Context) (*keyapi.HealthStatus, error)
}

// Deps is everything a command handler may touch. It is built once in main.
type Deps struct {
	Sender  Sender
	KeyAPI  KeyAPI
	Cache   services.KeyCache
	Limiter ratelimit.Limiter // nil disables rate limiting

	// Location is the timezone /viewkey and /health render timestamps in.
	Location   *time.Location
	ChannelURL string

	// BotUsername is this bot's own username. Commands addressed to another
	// bot (/start@OtherBot) are ignored. Empty accepts every mention.
	BotUsername string
}

var commands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Register for the service"},
	{Command: "viewkey", Description: "View your API key"},
	{Command: "recreate", Description: "Regenerate your API key"},
	{Command: "health", Description: "Check the service status"},
	{Command: "help", Description: "Show available commands"},
}

// request carries one inbound command through a handler.
type request struct {
	msg  *tgbotapi.Message
	user *tgbotapi.User
	p    *message.Printer
	log  zerolog.Logger
}

type commandHandler func(ctx context.Context, req *request) string

type BotHandler struct {
	deps     Deps
	handlers map[string]commandHandler
}

func NewBotHandler(deps Deps) *BotHandler {
	if deps.Location == nil {
		deps.Location = time.UTC
	}

	h := &BotHandler{deps: deps}
	h.handlers = map[string]commandHandler{
		"start":    h.handleStart,
		"viewkey":  h.handleViewKey,
		"recreate": h.handleRecreate,
		"health":   h.handleHealth,
		"help":     h.handleHelp,
	}
	return h
}

// RegisterCommands publishes the command list shown in Telegram's menu.
func (h *BotHandler) RegisterCommands(api Requester) error {
	if _, err := api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		return fmt.Errorf("cannot set bot commands: %w", err)
	}
	return nil
}

// Run dispatches updates until ctx is done or the channel closes. Each
// update is handled on its own goroutine; nothing orders or waits for them.
func (h *BotHandler) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			go h.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate answers a single update. Anything that is not a command from
// a user is ignored.
func (h *BotHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}
	if !h.addressedToUs(msg) {
		return
	}

	// Once a command starts it runs to completion; shutdown does not cancel
	// it.
	ctx = context.WithoutCancel(ctx)

	command := msg.Command()
	req := &request{
		msg:  msg,
		user: msg.From,
		p:    printerFor(msg.From.LanguageCode),
		log: log.With().
			Str("request_id", uuid.NewString()).
			Int64("telegram_id", msg.From.ID).
			Str("command", command).
			Logger(),
	}

	req.log.Debug().Str("username", msg.From.UserName).Msg("Command received")

	if !h.allow(ctx, req) {
		h.reply(req, req.p.Sprintf(msgRateLimited))
		return
	}

	handler, ok := h.handlers[command]
	if !ok {
		h.reply(req, req.p.Sprintf(msgUnknownCommand))
		return
	}

	h.reply(req, h.run(ctx, handler, req))
}

// addressedToUs reports whether the command carries no @mention or
// mentions this bot.
func (h *BotHandler) addressedToUs(msg *tgbotapi.Message) bool {
	_, mention, found := strings.Cut(msg.CommandWithAt(), "@")
	if !found || h.deps.BotUsername == "" {
		return true
	}
	return strings.EqualFold(mention, h.deps.BotUsername)
}

func (h *BotHandler) allow(ctx context.Context, req *request) bool {
	if h.deps.Limiter == nil {
		return true
	}
	ok, err := h.deps.Limiter.Allow(ctx, strconv.FormatInt(req.user.ID, 10))
	if err != nil {
		// Fail open.
		req.log.Warn().Err(err).Msg("Rate limiter unavailable")
		return true
	}
	if !ok {
		req.log.Info().Msg("Command rate limited")
	}
	return ok
}

// run invokes the handler and turns a panic into the generic error reply.
func (h *BotHandler) run(ctx context.Context, handler commandHandler, req *request) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			req.log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Command handler panicked")
			reply = req.p.Sprintf(msgInternalError)
		}
	}()
	return handler(ctx, req)
}

func (h *BotHandler) reply(req *request, text string) {
	out := tgbotapi.NewMessage(req.msg.Chat.ID, text)
	out.ParseMode = tgbotapi.ModeHTML
	out.DisableWebPagePreview = true

	if _, err := h.deps.Sender.Send(out); err != nil {
		req.log.Error().Err(err).Msg("Failed to send reply")
	}
}
