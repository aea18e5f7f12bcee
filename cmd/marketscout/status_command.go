package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"marketscout/internal/api"
	"marketscout/internal/preflight"
	"marketscout/internal/queue"
)

type statusReport struct {
	Daemon    *api.DaemonStatus  `json:"daemon,omitempty"`
	Queue     api.QueueHealth    `json:"queue"`
	Preflight []preflight.Result `json:"preflight"`
	LatestRun *api.DailyRun      `json:"latestRun,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var skipChecks bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, and dependency health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := statusReport{}
			if client := ctx.daemonClient(cmd.Context()); client != nil {
				if status, err := client.Status(cmd.Context()); err == nil {
					report.Daemon = &status
				}
			}
			err = ctx.withService(func(svc *api.Service, _ *queue.Store) error {
				health, err := svc.QueueHealth(cmd.Context())
				if err != nil {
					return err
				}
				report.Queue = health
				if run, err := svc.LatestDailyRun(cmd.Context()); err == nil {
					report.LatestRun = run
				}
				return nil
			})
			if err != nil {
				return err
			}
			if !skipChecks {
				checkCtx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
				report.Preflight = preflight.RunAll(checkCtx, cfg)
				cancel()
			}

			if ctx.jsonOutput {
				return writeJSON(cmd, report)
			}
			renderStatusReport(cmd.OutOrStdout(), report, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipChecks, "skip-checks", false, "Skip network dependency checks")
	return cmd
}

func renderStatusReport(out io.Writer, report statusReport, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	if d := report.Daemon; d != nil {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", d.PID), colorize))
		workers := fmt.Sprintf("%d workers", d.Workflow.Workers)
		if d.Workflow.LastError != "" {
			fmt.Fprintln(out, renderStatusLine("Workflow", statusWarn, workers+"; last error: "+d.Workflow.LastError, colorize))
		} else {
			fmt.Fprintln(out, renderStatusLine("Workflow", statusOK, workers, colorize))
		}
		if d.DailyEnabled {
			fmt.Fprintln(out, renderStatusLine("Daily schedule", statusOK,
				fmt.Sprintf("%s (next %s)", d.DailySchedule, humanTime(d.NextDailyRun)), colorize))
		} else {
			fmt.Fprintln(out, renderStatusLine("Daily schedule", statusWarn, "Disabled", colorize))
		}
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "Not reachable", colorize))
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Queue", colorize) {
		fmt.Fprintln(out, line)
	}
	q := report.Queue
	fmt.Fprintln(out, renderStatusLine("Jobs", statusInfo,
		fmt.Sprintf("%d pending, %d running, %d completed, %d failed", q.Pending, q.Running, q.Completed, q.Failed), colorize))
	if q.Stale > 0 {
		fmt.Fprintln(out, renderStatusLine("Stale leases", statusWarn, fmt.Sprintf("%d running jobs past their lease", q.Stale), colorize))
	}
	if db := q.Database; db != nil {
		kind, message := statusOK, fmt.Sprintf("schema v%d", db.SchemaVersion)
		switch {
		case db.Error != "":
			kind, message = statusError, db.Error
		case !db.IntegrityCheck:
			kind, message = statusError, "integrity check failed"
		case len(db.MissingTables) > 0:
			kind, message = statusError, fmt.Sprintf("missing tables %v", db.MissingTables)
		}
		fmt.Fprintln(out, renderStatusLine("Database", kind, message, colorize))
	}
	if run := report.LatestRun; run != nil {
		fmt.Fprintln(out, renderStatusLine("Latest run", runStatusKind(run.Status), run.RunDate+" "+run.Status, colorize))
	}

	if len(report.Preflight) == 0 {
		return
	}
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Dependencies", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, result := range report.Preflight {
		kind := statusOK
		if !result.Passed {
			kind = statusWarn
		}
		fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
}
