package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"relay/internal/bot"
	"relay/internal/decision"
	decisionmetrics "relay/internal/decision/metrics"
	"relay/internal/messenger/discord"
	"relay/internal/platform/config"
	"relay/internal/platform/database"
	"relay/internal/platform/httpserver"
	"relay/internal/platform/metrics"
	redisclient "relay/internal/platform/redis"
	"relay/internal/settings/edit"
	"relay/internal/settings/edit/session"
	settingsservice "relay/internal/settings/service"
	"relay/internal/submission"
	submissionmetrics "relay/internal/submission/metrics"
	"relay/internal/submission/throttle"
	audit "relay/pkg/platform/audit"
	"relay/pkg/platform/audit/publisher"
	auditkafka "relay/pkg/platform/audit/store/kafka"
	auditsql "relay/pkg/platform/audit/store/sql"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and relay submissions until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts)
		},
	}
}

func serve(ctx context.Context, opts *rootOptions) error {
	e, err := opts.open(ctx)
	if err != nil {
		return err
	}
	defer e.Close()

	cfg, log := e.cfg, e.logger
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg := metrics.NewRegistry()
	checks := map[string]httpserver.Check{}
	if e.db != nil {
		checks["database"] = func(ctx context.Context) error { return database.Ping(ctx, e.db) }
	}

	auditPublisher, closeAudit := newAuditPublisher(ctx, e)
	defer closeAudit()
	hasher := audit.NewHasher(cfg.Audit.HashKey)

	settings := e.settingsService(settingsservice.WithAuditPublisher(auditPublisher))
	if _, err := settings.Seed(ctx); err != nil {
		return err
	}

	rdb, err := newRedis(ctx, cfg, checks)
	if err != nil {
		return err
	}
	defer rdb.Close()
	sessions := newSessionStore(cfg, rdb)

	adapter, err := discord.New(cfg.Bot.Token, discord.WithLogger(log))
	if err != nil {
		return err
	}
	checks["discord"] = adapter.Health

	moderators := cfg.ModeratorSet()
	decisions, err := decision.New(e.tickets, adapter, settings, e.catalog,
		decision.Config{PublishChannelID: cfg.Bot.PublishChannelID, Concurrency: cfg.Fanout.Concurrency},
		decision.WithLogger(log),
		decision.WithMetrics(decisionmetrics.New(reg)),
		decision.WithAuditPublisher(auditPublisher),
		decision.WithSubjectHasher(hasher),
	)
	if err != nil {
		return err
	}
	submissions, err := submission.New(e.tickets, adapter, settings, e.catalog, moderators,
		submission.Config{Concurrency: cfg.Fanout.Concurrency},
		submission.WithLogger(log),
		submission.WithMetrics(submissionmetrics.New(reg)),
		submission.WithAuditPublisher(auditPublisher),
		submission.WithSubjectHasher(hasher),
		submission.WithThrottle(newThrottle(cfg, rdb), cfg.Throttle.Limit, cfg.Throttle.Window),
	)
	if err != nil {
		return err
	}
	editor, err := edit.New(sessions, settings, adapter, e.catalog, edit.WithLogger(log))
	if err != nil {
		return err
	}
	dispatcher, err := bot.New(bot.Deps{
		Decisions:        decisions,
		Submissions:      submissions,
		Editor:           editor,
		Messenger:        adapter,
		Texts:            settings,
		Catalog:          e.catalog,
		Moderators:       moderators,
		PublishChannelID: cfg.Bot.PublishChannelID,
	}, bot.WithLogger(log), bot.WithMetrics(metrics.New(reg)))
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.HTTP.Addr, httpserver.NewRouter(metrics.Handler(reg), checks))
	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if err := adapter.Open(ctx, dispatcher); err != nil {
		shutdown(srv, log)
		return err
	}
	log.InfoContext(ctx, "relay started",
		"http_addr", cfg.HTTP.Addr,
		"moderators", moderators.Len(),
		"storage", cfg.Storage.Driver,
		"edit_sessions", cfg.EditSession.Backend,
		"throttle_limit", cfg.Throttle.Limit,
	)

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-serverErr:
		err = fmt.Errorf("http server: %w", err)
	}

	if cerr := adapter.Close(); cerr != nil {
		log.Warn("failed to close discord gateway", "error", cerr)
	}
	shutdown(srv, log)
	return err
}

func shutdown(srv *http.Server, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("graceful shutdown failed", "error", err)
	}
}

// newAuditPublisher fans audit events out to the database and Kafka when
// configured. Sink failures never stop the bot; they are logged by the
// publisher's worker.
func newAuditPublisher(ctx context.Context, e *env) (*publisher.Publisher, func()) {
	cfg, log := e.cfg.Audit, e.logger
	var sinks audit.Tee
	if e.db != nil && cfg.Persist {
		sinks = append(sinks, auditsql.New(e.db))
	}

	var kafka *auditkafka.Store
	if len(cfg.KafkaBrokers) > 0 {
		store, err := auditkafka.New(cfg.KafkaBrokers, cfg.KafkaTopic, auditkafka.WithLogger(log))
		if err != nil {
			log.WarnContext(ctx, "kafka audit sink disabled", "error", err)
		} else {
			if err := store.EnsureTopic(ctx, 1, 1); err != nil {
				log.WarnContext(ctx, "could not ensure kafka audit topic", "topic", cfg.KafkaTopic, "error", err)
			}
			kafka = store
			sinks = append(sinks, store)
		}
	}

	pub := publisher.NewPublisher(sinks, publisher.WithAsyncBuffer(cfg.Buffer), publisher.WithLogger(log))
	return pub, func() {
		pub.Close()
		if kafka != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := kafka.Close(ctx); err != nil {
				log.Warn("failed to flush kafka audit sink", "error", err)
			}
		}
	}
}

// newRedis connects only when a component is configured to use Redis. The
// returned client is nil otherwise and is safe to Close.
func newRedis(ctx context.Context, cfg *config.Config, checks map[string]httpserver.Check) (*redisclient.Client, error) {
	if !cfg.NeedsRedis() {
		return nil, nil
	}
	client, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	checks["redis"] = client.Health
	return client, nil
}

func newSessionStore(cfg *config.Config, client *redisclient.Client) edit.SessionStore {
	if cfg.EditSession.Backend == config.SessionBackendRedis {
		return session.NewRedis(client.Client, cfg.EditSession.TTL)
	}
	return session.NewInMemory(cfg.EditSession.TTL)
}

func newThrottle(cfg *config.Config, client *redisclient.Client) submission.Throttle {
	if cfg.Throttle.Backend == config.SessionBackendRedis && cfg.Throttle.Limit > 0 {
		return throttle.NewRedis(client.Client)
	}
	return throttle.NewInMemory()
}
