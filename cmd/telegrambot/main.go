package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/akagifreeez/telegram-key-bot/internal/config"
	"github.com/akagifreeez/telegram-key-bot/internal/handlers"
	"github.com/akagifreeez/telegram-key-bot/internal/services"
	"github.com/akagifreeez/telegram-key-bot/internal/telegrambot"
	"github.com/akagifreeez/telegram-key-bot/pkg/keyapi"
	"github.com/akagifreeez/telegram-key-bot/pkg/ratelimit"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg)

	log.Info().
		Str("environment", cfg.Environment).
		Str("api_base_url", cfg.APIBaseURL).
		Msg("Starting Telegram key bot")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := "sqlite"
	if cfg.UsesPostgres() {
		backend = "postgres"
	}
	cache, err := services.OpenKeyCache(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("backend", backend).Msg("Failed to open key cache")
	}
	log.Info().Str("backend", backend).Msg("Key cache ready")

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		cache.Close()
		log.Fatal().Err(err).Msg("Failed to authenticate with Telegram")
	}
	bot.Debug = cfg.TelegramDebug
	if err := tgbotapi.SetLogger(telegrambot.NewBotLogger(log.Logger)); err != nil {
		log.Warn().Err(err).Msg("Failed to attach Telegram library logger")
	}
	log.Info().Str("bot", bot.Self.UserName).Msg("Authorized on Telegram")

	limiter := newLimiter(cfg)

	botHandler := telegrambot.NewBotHandler(telegrambot.Deps{
		Sender:      bot,
		KeyAPI:      keyapi.NewClient(cfg.APIBaseURL, cfg.HealthURL, cfg.HTTPTimeout),
		Cache:       cache,
		Limiter:     limiter,
		Location:    cfg.DisplayLocation,
		ChannelURL:  cfg.ChannelURL,
		BotUsername: bot.Self.UserName,
	})

	if err := botHandler.RegisterCommands(bot); err != nil {
		log.Warn().Err(err).Msg("Failed to register bot commands")
	}

	var opsServer *http.Server
	if cfg.OpsPort != "" {
		opsServer = handlers.NewOpsServer(cfg.OpsPort, cache)
		go func() {
			log.Info().Str("port", cfg.OpsPort).Msg("Ops server listening")
			if err := opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Ops server error")
			}
		}()
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = cfg.TelegramPollTimeout
	updates := bot.GetUpdatesChan(u)

	go botHandler.Run(ctx, updates)
	log.Info().Msg("Bot is now running. Press CTRL-C to exit.")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)
	<-sc

	log.Info().Msg("Gracefully shutting down.")

	bot.StopReceivingUpdates()
	cancel()

	if opsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ops server shutdown error")
		}
		shutdownCancel()
	}
	if limiter != nil {
		if err := limiter.Close(); err != nil {
			log.Error().Err(err).Msg("Rate limiter close error")
		}
	}
	if err := cache.Close(); err != nil {
		log.Error().Err(err).Msg("Key cache close error")
	}

	log.Info().Msg("Bot stopped")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.IsProduction() {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

// newLimiter returns nil when rate limiting is disabled. A Redis that cannot
// be reached at startup degrades to the per-process limiter.
func newLimiter(cfg *config.Config) ratelimit.Limiter {
	if cfg.CommandRateLimit <= 0 {
		log.Info().Msg("Command rate limiting disabled")
		return nil
	}

	if cfg.RedisURL != "" {
		limiter, err := ratelimit.NewRedisLimiter(cfg.RedisURL, cfg.CommandRateLimit, "telegram-bot:commands")
		if err == nil {
			log.Info().Int("per_minute", cfg.CommandRateLimit).Msg("Using Redis rate limiter")
			return limiter
		}
		log.Warn().Err(err).Msg("Redis unavailable, falling back to in-memory rate limiter")
	}

	log.Info().Int("per_minute", cfg.CommandRateLimit).Msg("Using in-memory rate limiter")
	return ratelimit.NewMemoryLimiter(cfg.CommandRateLimit, time.Minute)
}
