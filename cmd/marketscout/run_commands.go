package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"marketscout/internal/api"
	"marketscout/internal/dailyrun"
	"marketscout/internal/daemonrun"
	"marketscout/internal/queue"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Trigger and inspect daily runs",
	}
	runCmd.AddCommand(newRunTriggerCommand(ctx))
	runCmd.AddCommand(newRunStatusCommand(ctx))
	runCmd.AddCommand(newRunListCommand(ctx))
	return runCmd
}

func newRunTriggerCommand(ctx *commandContext) *cobra.Command {
	var (
		req      api.TriggerRequest
		local    bool
		noWait   bool
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Run the daily discovery and scoring pipeline",
		Long: "Run the daily pipeline for a date (today in UTC by default). When the daemon " +
			"API is reachable the run executes there; otherwise it runs in this process. " +
			"A date that already completed is reported without re-running.",
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Date = strings.TrimSpace(req.Date)
			if req.Date != "" {
				if _, err := time.Parse(queue.RunDateLayout, req.Date); err != nil {
					return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", req.Date)
				}
			}
			if !local {
				if client := ctx.daemonClient(cmd.Context()); client != nil {
					ack, reused, err := client.TriggerRun(cmd.Context(), req)
					if err != nil {
						return err
					}
					if reused != nil {
						return ctx.printRun(cmd, *reused)
					}
					if noWait {
						fmt.Fprintf(cmd.OutOrStdout(), "Daily run for %s started on the daemon\n", ack.RunDate)
						return nil
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "Daily run for %s started on the daemon; waiting...\n", ack.RunDate)
					run, err := client.WaitForRun(cmd.Context(), ack.RunDate, interval)
					if err != nil {
						return err
					}
					return ctx.finishRun(cmd, run)
				}
			}

			logger := ctx.commandLogger(ctx.jsonOutput)
			return ctx.withComponents(cmd, logger, func(_ *daemonrun.Components, svc *api.Service) error {
				run, err := svc.TriggerDailyRun(cmd.Context(), req)
				if run == nil {
					return err
				}
				if err != nil {
					if printErr := ctx.printRun(cmd, *run); printErr != nil {
						return errors.Join(err, printErr)
					}
					return err
				}
				return ctx.finishRun(cmd, *run)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&req.Date, "date", "", "Run date YYYY-MM-DD (defaults to today in UTC)")
	flags.StringSliceVar(&req.Categories, "category", nil, "Categories to crawl (repeatable; defaults to daily.categories)")
	flags.IntVar(&req.KeywordsPerCategory, "per-category", 0, "Keywords to score per category")
	flags.StringVar(&req.Country, "country", "", "Storefront country")
	flags.BoolVar(&req.Force, "force", false, "Restart a run another process still holds")
	flags.BoolVar(&req.SkipKnown, "skip-known", false, "Skip keywords that already have a stored score")
	flags.BoolVar(&local, "local", false, "Run in this process even when the daemon is reachable")
	flags.BoolVar(&noWait, "no-wait", false, "Return once the daemon accepts the trigger")
	flags.DurationVar(&interval, "poll", 2*time.Second, "Status poll interval while waiting on the daemon")
	return cmd
}

// finishRun prints run and turns a failed run into a command error.
func (c *commandContext) finishRun(cmd *cobra.Command, run api.DailyRun) error {
	if err := c.printRun(cmd, run); err != nil {
		return err
	}
	if run.Status == string(queue.RunFailed) {
		return fmt.Errorf("daily run %s failed: %s", run.RunDate, run.ErrorMessage)
	}
	return nil
}

func (c *commandContext) printRun(cmd *cobra.Command, run api.DailyRun) error {
	if c.jsonOutput {
		return writeJSON(cmd, run)
	}
	renderRunDetail(cmd.OutOrStdout(), run, shouldColorize(cmd.OutOrStdout()))
	return nil
}

func newRunStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [date]",
		Short: "Show the daily run for a date (today by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := ""
			if len(args) == 1 && args[0] != "today" {
				date = args[0]
			}
			return ctx.withService(func(_ *api.Service, store *queue.Store) error {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				// Status reads the store only; no discovery or scoring engines are needed.
				runs, err := dailyrun.NewOrchestrator(cfg, store, nil, nil)
				if err != nil {
					return err
				}
				run, err := api.NewService(store, runs).GetDailyRunStatus(cmd.Context(), date)
				if err != nil {
					return err
				}
				return ctx.printRun(cmd, *run)
			})
		},
	}
}

func newRunListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent daily runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *api.Service, _ *queue.Store) error {
				runs, err := svc.ListDailyRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, api.RunListResponse{Runs: runs})
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No daily runs recorded")
					return nil
				}
				renderRunTable(cmd.OutOrStdout(), runs, shouldColorize(cmd.OutOrStdout()))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 14, "Maximum runs to list")
	return cmd
}
