package telegrambot

import (
	"context"
	"html"
	"time"

	"golang.org/x/text/message"

	"github.com/akagifreeez/telegram-key-bot/internal/models"
	"github.com/akagifreeez/telegram-key-bot/pkg/keyapi"
)

const timeLayout = "2006-01-02 15:04:05 MST"

func (h *BotHandler) handleStart(ctx context.Context, req *request) string {
	username := req.user.UserName
	if username == "" {
		return req.p.Sprintf(msgNeedUsername)
	}

	info, err := h.deps.KeyAPI.Register(ctx, username, req.user.ID)
	if err != nil {
		switch keyapi.KindOf(err) {
		case keyapi.KindConflict:
			req.log.Info().Msg("User already registered")
			return req.p.Sprintf(msgAlreadyRegistered, html.EscapeString(username))
		case keyapi.KindTransport:
			req.log.Error().Err(err).Msg("Network error during user registration")
			return req.p.Sprintf(msgRegisterNetwork)
		default:
			req.log.Error().Err(err).Msg("API error during user registration")
			return req.p.Sprintf(msgRegisterFailed)
		}
	}

	if info.Key == "" {
		req.log.Warn().Msg("Registration response did not contain an API key")
		return req.p.Sprintf(msgWelcome, html.EscapeString(username)) + h.channelLine(req.p)
	}

	h.cacheKey(ctx, req, info.Key)
	return req.p.Sprintf(msgWelcomeWithKey, html.EscapeString(username), html.EscapeString(info.Key)) +
		h.channelLine(req.p)
}

func (h *BotHandler) handleViewKey(ctx context.Context, req *request) string {
	info, err := h.deps.KeyAPI.LookupKey(ctx, req.user.ID)
	if err != nil {
		switch keyapi.KindOf(err) {
		case keyapi.KindNotFound:
			req.log.Info().Msg("No API key on record")
			return req.p.Sprintf(msgKeyNotFound)
		case keyapi.KindMalformed:
			req.log.Error().Err(err).Msg("API key response has unexpected shape")
			return req.p.Sprintf(msgKeyRetrieveFailed)
		default:
			req.log.Error().Err(err).Msg("Error retrieving API key")
			return req.p.Sprintf(msgKeyRetrieveError)
		}
	}

	return req.p.Sprintf(msgKeyView,
		html.EscapeString(info.Key),
		h.formatTime(req.p, info.CreatedAt, msgUnknown),
		h.formatTime(req.p, info.UpdatedAt, msgUnknown),
		h.formatTime(req.p, info.LastUsedAt, msgNever),
	)
}

func (h *BotHandler) handleRecreate(ctx context.Context, req *request) string {
	username := req.user.UserName
	if username == "" {
		return req.p.Sprintf(msgNeedUsernameRecreate)
	}

	current, err := h.currentKey(ctx, req)
	if current == "" {
		switch keyapi.KindOf(err) {
		case keyapi.KindNotFound, keyapi.KindMalformed, keyapi.KindNone:
			return req.p.Sprintf(msgRecreateNoKey)
		default:
			return req.p.Sprintf(msgRecreateError)
		}
	}

	info, err := h.deps.KeyAPI.RotateKey(ctx, username, current)
	if err != nil {
		switch keyapi.KindOf(err) {
		case keyapi.KindUnauthorized, keyapi.KindNotFound:
			req.log.Warn().Err(err).Msg("Key rotation rejected the current key")
			return req.p.Sprintf(msgRecreateNoKey)
		case keyapi.KindMalformed:
			req.log.Error().Err(err).Msg("Key rotation response has unexpected shape")
			return req.p.Sprintf(msgRecreateFailed)
		default:
			req.log.Error().Err(err).Msg("Error regenerating API key")
			return req.p.Sprintf(msgRecreateError)
		}
	}

	h.cacheKey(ctx, req, info.Key)
	return req.p.Sprintf(msgRecreateDone, html.EscapeString(info.Key))
}

// currentKey resolves the key used to authenticate a rotation: the remote
// record first, the local cache when the remote lookup fails. It returns ""
// with the lookup error when neither has one.
func (h *BotHandler) currentKey(ctx context.Context, req *request) (string, error) {
	info, lookupErr := h.deps.KeyAPI.LookupKey(ctx, req.user.ID)
	if lookupErr == nil {
		return info.Key, nil
	}
	req.log.Warn().Err(lookupErr).Msg("Remote key lookup failed, trying local cache")

	cached, err := h.deps.Cache.Get(ctx, req.user.ID)
	if err != nil {
		req.log.Error().Err(err).Msg("Error reading API key from cache")
	}
	if cached != nil && cached.APIKey != "" {
		req.log.Info().Str("key", cached.MaskedKey()).Msg("Using cached API key")
		return cached.APIKey, nil
	}
	return "", lookupErr
}

func (h *BotHandler) handleHealth(ctx context.Context, req *request) string {
	status, err := h.deps.KeyAPI.Health(ctx)
	if err != nil {
		req.log.Error().Err(err).Msg("Health check failed")
		return req.p.Sprintf(msgHealthFailed)
	}

	latency := status.Latency
	switch {
	case status.LatencyMillis != nil:
		latency = req.p.Sprintf(msgLatencyMillis, *status.LatencyMillis)
	case latency == "":
		latency = req.p.Sprintf(msgUnknown)
	}

	return req.p.Sprintf(msgHealth,
		html.EscapeString(status.Status),
		html.EscapeString(latency),
		h.formatTime(req.p, status.Timestamp, msgUnknown),
		status.RoundTrip.Milliseconds(),
	)
}

func (h *BotHandler) handleHelp(_ context.Context, req *request) string {
	return req.p.Sprintf(msgHelp)
}

// cacheKey stores the key the remote service just handed out. A failure is
// logged only; the reply has already been decided.
func (h *BotHandler) cacheKey(ctx context.Context, req *request, key string) {
	if err := h.deps.Cache.Put(ctx, req.user.ID, req.user.UserName, key); err != nil {
		req.log.Error().Err(err).Msg("Error saving API key to cache")
		return
	}
	req.log.Info().Str("key", models.MaskKey(key)).Msg("Saved API key to cache")
}

func (h *BotHandler) channelLine(p *message.Printer) string {
	if h.deps.ChannelURL == "" {
		return ""
	}
	return "\n" + p.Sprintf(msgChannel, html.EscapeString(h.deps.ChannelURL))
}

func (h *BotHandler) formatTime(p *message.Printer, t time.Time, zeroKey string) string {
	if t.IsZero() {
		return p.Sprintf(zeroKey)
	}
	return t.In(h.deps.Location).Format(timeLayout)
}
