package main

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/singleflight"

	"github.com/ZaguanLabs/transctl"
)

func (a *app) runCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Translate every configured resource",
		Long: `Translate every configured resource into each target language. Outputs
whose source is unchanged since the last run are skipped and strings found in
the translation memory are not sent to the engine again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openProject()
			if err != nil {
				return err
			}
			defer p.Close()

			result, err := a.translate(cmd.Context(), p, force)
			if result != nil {
				printRunResult(a, result)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "purge the manifest first so every output is recomputed")
	return cmd
}

func printRunResult(a *app, result *transctl.RunResult) {
	totals := result.Totals()
	fmt.Fprintf(a.stdout, "Files:        %d\n", len(result.Files))
	fmt.Fprintf(a.stdout, "  Written:    %d\n", len(totals.Written))
	fmt.Fprintf(a.stdout, "  Up to date: %d\n", len(totals.Skipped))
	fmt.Fprintf(a.stdout, "Strings:      %d\n", totals.Segments)
	fmt.Fprintf(a.stdout, "  Translated: %d\n", totals.TranslatedCount)
	fmt.Fprintf(a.stdout, "  From cache: %d\n", totals.CachedCount)
	fmt.Fprintf(a.stdout, "  Unchanged:  %d\n", totals.PlaceholderOnly)
	if totals.FailedCount > 0 {
		fmt.Fprintf(a.stdout, "  Failed:     %d\n", totals.FailedCount)
	}
}

func (a *app) planCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a run would do without calling the engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.openProject()
			if err != nil {
				return err
			}
			defer p.Close()

			pl, err := a.newPipeline(p, offlineTranslator)
			if err != nil {
				return err
			}
			resources, err := p.cfg.Resources()
			if err != nil {
				return err
			}
			plan, err := pl.Plan(cmd.Context(), resources)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}
			return printPlan(a, plan)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the plan as JSON")
	return cmd
}

func printPlan(a *app, plan *transctl.PlanResult) error {
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OUTPUT\tLANG\tSTATUS\tCACHED\tTO TRANSLATE")
	for _, f := range plan.Files {
		for _, t := range f.Targets {
			status := "translate"
			if t.UpToDate {
				status = "up to date"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", t.Output, t.Lang, status, t.Cached, t.ToTranslate)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	s := plan.Stats()
	fmt.Fprintf(a.stdout, "\n%d outputs to write, %d up to date, %d strings cached, %d to translate\n",
		s.Outputs, s.UpToDate, s.Cached, s.ToTranslate)
	return nil
}

func (a *app) scheduleCmd() *cobra.Command {
	var (
		expr   string
		runNow bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the translation on a cron schedule",
		Long: `Run the translation every time the cron expression fires, until
interrupted. The expression comes from --cron or [schedule] cron. A tick that
fires while a run is still going joins that run instead of starting another.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if expr == "" {
				expr = cfg.Schedule.Cron
			}
			if expr == "" {
				return &transctl.ConfigError{Message: "no schedule, set --cron or [schedule] cron"}
			}
			if _, err := cron.ParseStandard(expr); err != nil {
				return &transctl.ConfigError{Message: fmt.Sprintf("invalid cron expression %q", expr), Cause: err}
			}

			ctx := cmd.Context()
			var group singleflight.Group
			tick := func() {
				_, err, shared := group.Do("run", func() (any, error) {
					return nil, a.scheduledRun(ctx)
				})
				if shared {
					a.logger.Debug("tick joined the run in progress")
				}
				if err != nil {
					a.logger.Error("scheduled run failed", "error", err)
				}
			}

			c := cron.New()
			if _, err := c.AddFunc(expr, tick); err != nil {
				return err
			}
			c.Start()
			a.logger.Info("scheduler started", "cron", expr, "next", c.Entries()[0].Next)

			if runNow {
				go tick()
			}

			<-ctx.Done()
			<-c.Stop().Done()
			a.logger.Info("scheduler stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&expr, "cron", "", "cron expression (standard five fields)")
	cmd.Flags().BoolVar(&runNow, "now", false, "run once immediately on start")
	return cmd
}

func (a *app) scheduledRun(ctx context.Context) error {
	p, err := a.openProject()
	if err != nil {
		return err
	}
	defer p.Close()

	_, err = a.translate(ctx, p, false)
	return err
}
