package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/usaspending/data-broker/internal/app"
	"github.com/usaspending/data-broker/internal/clients/feeds"
	"github.com/usaspending/data-broker/internal/data/db"
	types "github.com/usaspending/data-broker/internal/domain"
	"github.com/usaspending/data-broker/internal/platform/dbctx"
	"github.com/usaspending/data-broker/internal/validation"
)

func main() {
	root := &cobra.Command{
		Use:           "broker",
		Short:         "Operational commands for the spending data broker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		migrateCmd(),
		loadProcurementCmd(),
		loadAssistanceCmd(),
		loadSubawardsCmd(),
		fixSubawardLinksCmd(),
		cleanSubmissionsCmd(),
		loadRulesCmd(),
	)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withApp(run func(ctx context.Context, a *app.App) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := app.New()
		if err != nil {
			return fmt.Errorf("init app: %w", err)
		}
		defer a.Close()
		return run(cmd.Context(), a)
	}
}

func parseWindow(startRaw, endRaw, agency string) (feeds.Window, error) {
	window := feeds.Window{AgencyCode: agency}
	end := time.Now()
	start := end.Add(-48 * time.Hour)
	var err error
	if startRaw != "" {
		if start, err = time.Parse("2006-01-02", startRaw); err != nil {
			return window, fmt.Errorf("invalid --start-date %q", startRaw)
		}
	}
	if endRaw != "" {
		if end, err = time.Parse("2006-01-02", endRaw); err != nil {
			return window, fmt.Errorf("invalid --end-date %q", endRaw)
		}
	}
	if end.Before(start) {
		return window, fmt.Errorf("--end-date precedes --start-date")
	}
	window.Start, window.End = start, end
	return window, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := app.New()
			if err != nil {
				return err
			}
			defer a.Close()
			// App.New already migrated; run once more explicitly so the
			// command fails loudly on a broken schema.
			return db.AutoMigrateAll(a.DB)
		},
	}
}

func loadProcurementCmd() *cobra.Command {
	var startRaw, endRaw, agency string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "load-procurement",
		Short: "Mirror the procurement feed into the awards tables",
		RunE: withApp(func(ctx context.Context, a *app.App) error {
			window, err := parseWindow(startRaw, endRaw, agency)
			if err != nil {
				return err
			}
			n, err := a.Loader.LoadProcurement(dbctx.Context{Ctx: ctx}, window, dryRun)
			if err != nil {
				return err
			}
			fmt.Printf("loaded %d procurement records\n", n)
			return nil
		}),
	}
	cmd.Flags().StringVar(&startRaw, "start-date", "", "window start (YYYY-MM-DD, default 48h ago)")
	cmd.Flags().StringVar(&endRaw, "end-date", "", "window end (YYYY-MM-DD, default now)")
	cmd.Flags().StringVar(&agency, "agency", "", "restrict to one agency code")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "page and count without writing")
	return cmd
}

func loadAssistanceCmd() *cobra.Command {
	var startRaw, endRaw, agency string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "load-assistance",
		Short: "Mirror the financial-assistance feed into the awards tables",
		RunE: withApp(func(ctx context.Context, a *app.App) error {
			window, err := parseWindow(startRaw, endRaw, agency)
			if err != nil {
				return err
			}
			n, err := a.Loader.LoadAssistance(dbctx.Context{Ctx: ctx}, window, dryRun)
			if err != nil {
				return err
			}
			fmt.Printf("loaded %d assistance records\n", n)
			return nil
		}),
	}
	cmd.Flags().StringVar(&startRaw, "start-date", "", "window start (YYYY-MM-DD, default 48h ago)")
	cmd.Flags().StringVar(&endRaw, "end-date", "", "window end (YYYY-MM-DD, default now)")
	cmd.Flags().StringVar(&agency, "agency", "", "restrict to one agency code")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "page and count without writing")
	return cmd
}

func subawardKind(raw string) (types.SubawardKind, error) {
	switch raw {
	case "contract":
		return types.SubawardContract, nil
	case "grant":
		return types.SubawardGrant, nil
	default:
		return "", fmt.Errorf("invalid --kind %q (contract or grant)", raw)
	}
}

func loadSubawardsCmd() *cobra.Command {
	var kindRaw, sinceRaw string
	cmd := &cobra.Command{
		Use:   "load-subawards",
		Short: "Pull the subaward feed and reconcile it against the awards mirror",
		RunE: withApp(func(ctx context.Context, a *app.App) error {
			kinds := []types.SubawardKind{types.SubawardContract, types.SubawardGrant}
			if kindRaw != "" {
				kind, err := subawardKind(kindRaw)
				if err != nil {
					return err
				}
				kinds = []types.SubawardKind{kind}
			}
			var since *time.Time
			if sinceRaw != "" {
				t, err := time.Parse("2006-01-02", sinceRaw)
				if err != nil {
					return fmt.Errorf("invalid --since %q", sinceRaw)
				}
				since = &t
			}
			dbc := dbctx.Context{Ctx: ctx}
			for _, kind := range kinds {
				n, err := a.Puller.Pull(dbc, kind, since)
				if err != nil {
					return err
				}
				fmt.Printf("ingested %d %s reports\n", n, kind)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&kindRaw, "kind", "", "contract or grant (default both)")
	cmd.Flags().StringVar(&sinceRaw, "since", "", "only reports changed since (YYYY-MM-DD)")
	return cmd
}

func fixSubawardLinksCmd() *cobra.Command {
	var kindRaw, sinceRaw string
	cmd := &cobra.Command{
		Use:   "fix-subaward-links",
		Short: "Retry unresolved subaward-to-award links",
		RunE: withApp(func(ctx context.Context, a *app.App) error {
			kinds := []types.SubawardKind{types.SubawardContract, types.SubawardGrant}
			if kindRaw != "" {
				kind, err := subawardKind(kindRaw)
				if err != nil {
					return err
				}
				kinds = []types.SubawardKind{kind}
			}
			var since *time.Time
			if sinceRaw != "" {
				t, err := time.Parse("2006-01-02", sinceRaw)
				if err != nil {
					return fmt.Errorf("invalid --since %q", sinceRaw)
				}
				since = &t
			}
			dbc := dbctx.Context{Ctx: ctx}
			for _, kind := range kinds {
				n, err := a.Reconciler.FixBrokenLinks(dbc, kind, since)
				if err != nil {
					return err
				}
				fmt.Printf("relinked %d %s rows\n", n, kind)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&kindRaw, "kind", "", "contract or grant (default both)")
	cmd.Flags().StringVar(&sinceRaw, "since", "", "only rows updated since (YYYY-MM-DD)")
	return cmd
}

func cleanSubmissionsCmd() *cobra.Command {
	var retentionDays int
	cmd := &cobra.Command{
		Use:   "clean-submissions",
		Short: "Delete unpublished submissions idle past the retention window",
		RunE: withApp(func(ctx context.Context, a *app.App) error {
			cutoff := time.Now().AddDate(0, 0, -retentionDays)
			n, err := a.Lifecycle.CleanExpired(dbctx.Context{Ctx: ctx}, cutoff)
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d submissions\n", n)
			return nil
		}),
	}
	cmd.Flags().IntVar(&retentionDays, "retention-days", 180, "idle days before an unpublished submission expires")
	return cmd
}

func loadRulesCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "load-rules",
		Short: "Replace the stored validation rule catalog from a YAML file",
		RunE: withApp(func(ctx context.Context, a *app.App) error {
			n, err := validation.LoadCatalog(dbctx.Context{Ctx: ctx}, path, a.Repos.Rules)
			if err != nil {
				return err
			}
			fmt.Printf("loaded %d rules\n", n)
			return nil
		}),
	}
	cmd.Flags().StringVar(&path, "path", "rules.yaml", "rule catalog file")
	return cmd
}
