package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"relay/internal/settings/models"
)

// cliActor is recorded as the moderator for settings changed from the CLI.
const cliActor = "cli"

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and edit the moderator-editable texts",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Show every setting and its current value",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()
				e, err := opts.open(ctx)
				if err != nil {
					return err
				}
				defer e.Close()
				svc := e.settingsService()
				if _, err := svc.Seed(ctx); err != nil {
					return err
				}
				settings, err := svc.List(ctx)
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "KEY\tVALUE\tUPDATED")
				for _, s := range settings {
					fmt.Fprintf(w, "%s\t%s\t%s\n", s.Key, oneLine(s.Value), s.UpdatedAt.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "seed",
			Short: "Insert default values for missing settings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ctx := cmd.Context()
				e, err := opts.open(ctx)
				if err != nil {
					return err
				}
				defer e.Close()
				n, err := e.settingsService().Seed(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d settings seeded\n", n)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Replace the value of one setting",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				key, err := models.ParseKey(args[0])
				if err != nil {
					return err
				}
				e, err := opts.open(ctx)
				if err != nil {
					return err
				}
				defer e.Close()
				svc := e.settingsService()
				if _, err := svc.Seed(ctx); err != nil {
					return err
				}
				s, err := svc.Set(ctx, key, args[1], cliActor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", s.Key, oneLine(s.Value))
				return nil
			},
		},
	)
	return cmd
}

// oneLine keeps multi-line texts on a single table row.
func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", `\n`)
}
