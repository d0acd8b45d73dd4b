package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"relay/internal/platform/config"
	dErrors "relay/pkg/domain-errors"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and seed missing settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := opts.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()
			if e.cfg.Storage.Driver == config.DriverMemory {
				return dErrors.New(dErrors.CodeConfiguration, "migrate needs storage.driver sqlite or postgres")
			}
			// Opening the database applies the migrations.
			n, err := e.settingsService().Seed(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "database is up to date (%s), %d settings seeded\n", e.cfg.Storage.Driver, n)
			return nil
		},
	}
}
