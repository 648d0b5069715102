// The bot binary runs the CTF community hub: the solve approval workflow
// behind the Discord interactions webhook, the read API, and the notification
// dispatcher.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ctf-hub/ctf-community-hub/config"
	"github.com/ctf-hub/ctf-community-hub/internal/application/query"
	"github.com/ctf-hub/ctf-community-hub/internal/application/verify"
	"github.com/ctf-hub/ctf-community-hub/internal/application/workflow"
	"github.com/ctf-hub/ctf-community-hub/internal/infrastructure/external/discord"
	"github.com/ctf-hub/ctf-community-hub/internal/infrastructure/external/mail"
	"github.com/ctf-hub/ctf-community-hub/internal/infrastructure/messaging"
	"github.com/ctf-hub/ctf-community-hub/internal/infrastructure/persistence/postgres"
	redisstore "github.com/ctf-hub/ctf-community-hub/internal/infrastructure/persistence/redis"
	httpiface "github.com/ctf-hub/ctf-community-hub/internal/interface/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("starting",
		"app", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", string(cfg.App.Environment))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage.
	conn, err := postgres.NewConnection(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer conn.Close()

	if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store := postgres.NewSolveStore(conn)
	users := postgres.NewUserRepository(conn)

	// Leaderboard cache, optional.
	var queryCache query.LeaderboardCache
	var invalidator workflow.LeaderboardInvalidator
	redisClient, err := redisstore.NewClient(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
		cache := redisstore.NewLeaderboardCache(redisClient, cfg.Redis.LeaderboardTTL)
		queryCache = cache
		invalidator = cache
	}

	// Discord collaborators.
	client := discord.NewClient(discord.NewClientConfig(cfg.Discord, logger))
	sink := discord.NewSink(client, cfg.Discord)
	roles := discord.NewRoleSync(client, cfg.Discord)

	// Announcements go through the bounded-retry dispatcher.
	dispatcher := messaging.NewDispatcher(cfg.Dispatcher, logger, nil)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()
	asyncSink := messaging.NewAsyncSink(sink, dispatcher)

	approval := workflow.NewApproval(store, users, roles, asyncSink, invalidator, cfg.Ladder, logger)

	// Identity verification, enabled when a token key is configured.
	var verifySvc *verify.Service
	if cfg.Verify.TokenKey != "" {
		cipher, err := verify.NewTokenCipherHex(cfg.Verify.TokenKey)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		mailer := mail.NewSMTPMailer(cfg.Verify, logger)
		verifySvc = verify.NewService(cipher, users, roles, mailer, cfg.Verify.EmailDomain, logger)
	}

	interactions, err := httpiface.NewInteractions(cfg.Discord, approval, logger)
	if err != nil {
		return fmt.Errorf("interactions: %w", err)
	}
	api := httpiface.NewAPI(httpiface.APIConfig{
		Leaderboard: query.NewLeaderboard(users, queryCache, logger),
		Stats:       query.NewStats(store, users, cfg.Ladder, logger),
		Ladder:      query.NewRankLadder(users, cfg.Ladder),
		Roles:       query.NewRoles(users, cfg.Ladder),
		Submit:      approval,
		Registry:    workflow.NewRegistry(store, logger),
		Verify:      verifySvc,
	}, logger)
	server := httpiface.NewServer(cfg.HTTP, interactions, api, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.App.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
