package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"ProspectScanner/internal/app"
	"ProspectScanner/internal/domain"
	"ProspectScanner/internal/infrastructure/export"
	"ProspectScanner/internal/infrastructure/storage"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var withScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				if withScheduler {
					s, err := a.Scheduler()
					if err != nil {
						return err
					}
					if err := s.Start(ctx); err != nil {
						return err
					}
					defer s.Stop(context.Background())
				}
				return a.Serve(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&withScheduler, "schedule", false, "also run scheduled campaigns")
	return cmd
}

func newCampaignCommand(opts *rootOptions) *cobra.Command {
	var (
		description string
		maxOrgs     int
	)
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Discover organisations for a campaign, crawl and store them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				if description == "" {
					description = a.Config().Scheduler.CampaignDescription
				}
				results, err := a.Pipeline().RunCampaign(ctx, description, maxOrgs)
				if err != nil {
					return err
				}
				renderProspects(cmd.OutOrStdout(), results)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "campaign focus (default scheduler.campaignDescription)")
	cmd.Flags().IntVarP(&maxOrgs, "max", "n", 5, "maximum organisations to discover")
	return cmd
}

func newCrawlCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl URL...",
		Short: "Crawl and store the given sites",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				results, err := a.Pipeline().CrawlURLs(ctx, args)
				if err != nil {
					return err
				}
				renderProspects(cmd.OutOrStdout(), results)
				return nil
			})
		},
	}
}

func newScoreCommand(opts *rootOptions) *cobra.Command {
	var (
		url     string
		retrain bool
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score stored prospects with the ensemble",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				svc := a.Scoring()
				if retrain {
					if _, err := svc.Retrain(ctx); err != nil {
						return err
					}
				}
				if url != "" {
					scored, found, err := svc.ScoreURL(ctx, url)
					if err != nil {
						return err
					}
					if !found {
						return fmt.Errorf("prospect %s not found", url)
					}
					renderScored(cmd.OutOrStdout(), []domain.ScoredProspect{scored})
					return nil
				}
				scored, err := svc.BatchScore(ctx)
				if err != nil {
					return err
				}
				renderScored(cmd.OutOrStdout(), scored)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "score only this stored prospect")
	cmd.Flags().BoolVar(&retrain, "retrain", false, "retrain the ensemble before scoring")
	return cmd
}

func newListCommand(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored prospects by final score",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				prospects, err := a.Repository().List(ctx, limit)
				if err != nil {
					return err
				}
				if len(prospects) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No prospects stored")
					return nil
				}
				renderProspects(cmd.OutOrStdout(), prospects)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "maximum rows (0 = all)")
	return cmd
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write stored prospects to an .xlsx workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				prospects, err := a.Repository().List(ctx, 0)
				if err != nil {
					return err
				}
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				if err := export.WriteProspects(f, prospects); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return fmt.Errorf("close %s: %w", out, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d prospects to %s\n", len(prospects), out)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "prospects.xlsx", "output file")
	return cmd
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	var steps int
	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigration(cmd, opts, func(m migrator) error { return m.up() })
		},
	}
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigration(cmd, opts, func(m migrator) error { return m.down(steps) })
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(up, down)
	return cmd
}

type migrator struct {
	up   func() error
	down func(steps int) error
}

func runMigration(cmd *cobra.Command, opts *rootOptions, run func(migrator) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Database.DSN == "" {
		return errors.New("database.dsn (or DATABASE_DSN) is required for migrations")
	}
	logger := opts.logger(cfg).With("component", "migrate")

	db, err := storage.Open(cmd.Context(), cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		return err
	}
	defer db.Close()

	return run(migrator{
		up:   func() error { return storage.MigrateUp(db.DB, logger) },
		down: func(steps int) error { return storage.MigrateDown(db.DB, steps, logger) },
	})
}

func newScheduleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run campaigns on the configured cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.Application) error {
				s, err := a.Scheduler()
				if err != nil {
					return err
				}
				if err := s.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()
				return s.Stop(context.Background())
			})
		},
	}
}

func renderProspects(w io.Writer, prospects []domain.Prospect) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Organization", "URL", "Emails", "Sustainability", "Donation", "Engagement", "Final"})
	for i, p := range prospects {
		t.AppendRow(table.Row{
			i + 1,
			p.OrganizationName,
			p.URL,
			strings.Join(p.Emails, ", "),
			fmt.Sprintf("%.3f", p.Scores.Sustainability),
			fmt.Sprintf("%.3f", p.Scores.DonationProbability),
			fmt.Sprintf("%.3f", p.Scores.Engagement),
			fmt.Sprintf("%.3f", p.Scores.Final),
		})
	}
	t.Render()
}

func renderScored(w io.Writer, scored []domain.ScoredProspect) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Organization", "URL", "AI Score", "Confidence", "Recommendation"})
	for i, s := range scored {
		t.AppendRow(table.Row{
			i + 1,
			s.OrganizationName,
			s.URL,
			fmt.Sprintf("%.3f", s.AIScore),
			fmt.Sprintf("%.3f", s.Confidence),
			s.Recommendation,
		})
	}
	t.Render()
}
