package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"

	"relay/internal/decision/ports"
	"relay/internal/i18n"
	"relay/internal/platform/config"
	"relay/internal/platform/database"
	"relay/internal/platform/logger"
	settingsservice "relay/internal/settings/service"
	settingsstore "relay/internal/settings/store"
	"relay/internal/submission"
	"relay/internal/ticket/models"
	ticketstore "relay/internal/ticket/store"
	audit "relay/pkg/platform/audit"
	auditsql "relay/pkg/platform/audit/store/sql"
)

type rootOptions struct {
	configPath string
	logOutput  io.Writer
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{logOutput: os.Stderr}
	cmd := &cobra.Command{
		Use:           "relay",
		Short:         "Relay anonymous submissions to moderators and publish approved ones",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ./relay.yaml)")
	cmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newSettingsCmd(opts),
		newTicketCmd(opts),
	)
	return cmd
}

// ticketStore is everything the relay needs from ticket persistence.
type ticketStore interface {
	submission.TicketStore
	ports.TicketStore
	FindTicket(ctx context.Context, id models.ID) (*models.Ticket, error)
}

// env is the configuration and storage shared by all commands.
type env struct {
	cfg     *config.Config
	logger  *slog.Logger
	catalog *i18n.Catalog

	db       *bun.DB
	tickets  ticketStore
	settings settingsservice.Store
	// audit is nil for the memory driver.
	audit audit.Reader
}

func (o *rootOptions) open(ctx context.Context) (*env, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(o.logOutput, cfg.Log.Level, cfg.Log.Format)
	catalog, err := i18n.New(cfg.Bot.Locale)
	if err != nil {
		return nil, fmt.Errorf("load text catalog: %w", err)
	}

	e := &env{cfg: cfg, logger: log, catalog: catalog}
	if cfg.Storage.Driver == config.DriverMemory {
		e.tickets = ticketstore.NewInMemory()
		e.settings = settingsstore.NewInMemory()
		log.WarnContext(ctx, "using in-memory storage; tickets and settings are lost on exit")
		return e, nil
	}

	db, err := database.Open(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}
	e.db = db
	e.tickets = ticketstore.NewSQL(db)
	e.settings = settingsstore.NewSQL(db)
	e.audit = auditsql.New(db)
	return e, nil
}

// settingsService builds a settings service without an audit sink, for
// maintenance commands.
func (e *env) settingsService(opts ...settingsservice.Option) *settingsservice.Service {
	return settingsservice.New(e.settings, e.catalog, append([]settingsservice.Option{settingsservice.WithLogger(e.logger)}, opts...)...)
}

func (e *env) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}
