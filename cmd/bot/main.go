package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"burstbot/internal/blackjack"
	"burstbot/internal/bridge"
	"burstbot/internal/chat"
	"burstbot/internal/chat/discord"
	"burstbot/internal/config"
	"burstbot/internal/locale"
	"burstbot/internal/logging"
	"burstbot/internal/store"

	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "burstbot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()

	bundle, err := locale.LoadEmbedded()
	if err != nil {
		return err
	}
	if missing := bundle.Missing(cfg.Locale, blackjack.Keys); len(missing) > 0 {
		logger.Warn("locale is missing messages, falling back", zap.String("locale", cfg.Locale), zap.Strings("keys", missing))
	}
	printer, err := bundle.Printer(cfg.Locale)
	if err != nil {
		return err
	}

	platform, err := discord.New(cfg.DiscordToken, cfg.CategoryName, logger)
	if err != nil {
		return err
	}

	b := bridge.New(bridge.Options{
		URL:            cfg.SocketURL(),
		Timeout:        cfg.InactivityTimeout(),
		OpenTimeout:    cfg.OpenTimeout,
		TeardownGrace:  cfg.TeardownGrace,
		DeleteInterval: cfg.ChannelDeleteInterval,
	}, bridge.Deps{
		Dialer:   bridge.WebsocketDialer{},
		Platform: platform,
		Notifier: blackjack.NewNotifier(printer),
		Channels: bridge.NewChannelIndex(db, logger),
		Results:  db,
		Tips:     bridge.NewHTTPTips(cfg.ServerEndpoint),
		Throttle: bridge.NewThrottle(cfg.CommandRate, cfg.CommandWindow),
		Logger:   logger,
	})

	r := &router{ctx: ctx, prefix: cfg.CommandPrefix, bridge: b, logger: logger}
	if err := platform.Open(r.handle); err != nil {
		return err
	}
	defer platform.Close()

	swept, err := b.SweepOrphans(ctx)
	if err != nil {
		logger.Error("orphan sweep failed", zap.Error(err))
	} else if swept > 0 {
		logger.Info("deleted orphaned channels", zap.Int("count", swept))
	}

	logger.Info("bot started", zap.String("socket", cfg.SocketURL()), zap.String("locale", printer.Locale()))
	<-ctx.Done()

	logger.Info("shutdown signal received, press Ctrl+C again to force")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := b.Shutdown(shutdownCtx); err != nil {
		logger.Error("sessions did not finish before shutdown", zap.Error(err))
	}
	logger.Info("graceful shutdown complete")
	return nil
}

// router sends the join command to the matchmaker and everything else to
// the match owning the channel.
type router struct {
	ctx    context.Context
	prefix string
	bridge *bridge.Bridge
	logger *zap.Logger
}

func (r *router) handle(_ context.Context, in chat.Incoming) {
	content := strings.TrimSpace(in.Content)
	if content == r.prefix || strings.HasPrefix(content, r.prefix+" ") {
		go r.join(in)
		return
	}

	err := r.bridge.HandleMessage(r.ctx, in)
	switch {
	case err == nil:
	case errors.Is(err, bridge.ErrMatchNotFound), errors.Is(err, bridge.ErrThrottled):
	case errors.Is(err, bridge.ErrNotChannelOwner), errors.Is(err, bridge.ErrNotYourTurn):
		r.logger.Debug("ignored chat input", zap.String("channel_id", in.ChannelID), zap.Error(err))
	default:
		r.logger.Warn("rejected chat input", zap.String("channel_id", in.ChannelID), zap.Error(err))
	}
}

func (r *router) join(in chat.Incoming) {
	if in.GuildID == "" {
		return
	}
	logger := r.logger.With(zap.String("user_id", in.Author.ID))
	logger.Info("player waiting for a match")
	matchID, err := r.bridge.Join(r.ctx, in.GuildID, in.Author)
	if err != nil {
		logger.Error("join failed", zap.Error(err))
		return
	}
	logger.Info("player joined", zap.String("match_id", matchID))
}
