package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"marketscout/internal/daemonctl"
	"marketscout/internal/daemonrun"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run and control the background daemon",
	}
	daemonCmd.AddCommand(newDaemonRunCommand(ctx))
	daemonCmd.AddCommand(newDaemonStartCommand(ctx))
	daemonCmd.AddCommand(newDaemonStopCommand(ctx))
	daemonCmd.AddCommand(newDaemonStatusCommand(ctx))
	return daemonCmd
}

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&opts.Development, "dev", false, "Include source locations in log output")
	return cmd
}

func newDaemonStartCommand(ctx *commandContext) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Launch the daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if ctx.daemonClient(cmd.Context()) != nil {
				fmt.Fprintln(out, "Daemon already running")
				return nil
			}
			exe, err := os.Executable()
			if err != nil {
				return fmt.Errorf("resolve executable: %w", err)
			}
			if err := daemonctl.Launch(exe, daemonctl.LaunchOptions{ConfigPath: ctx.configPath()}); err != nil {
				return err
			}
			fmt.Fprintln(out, "Daemon not running, launching...")

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			client, err := daemonctl.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
			if err != nil {
				return err
			}
			if client == nil {
				fmt.Fprintln(out, "Daemon launched (api disabled; check the log for startup errors)")
				return nil
			}
			if err := daemonctl.WaitForAPI(cmd.Context(), client, wait); err != nil {
				return err
			}
			fmt.Fprintln(out, "Daemon started")
			return nil
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 10*time.Second, "How long to wait for the daemon API")
	return cmd
}

func newDaemonStopCommand(ctx *commandContext) *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the background daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			result, err := daemonctl.Stop(cfg, grace)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill {
				fmt.Fprintf(cmd.OutOrStdout(), "Daemon (pid %d) did not exit in %s and was killed\n", result.PID, grace)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon (pid %d) stopped\n", result.PID)
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", 30*time.Second, "Time to wait for a graceful shutdown before killing")
	return cmd
}

func newDaemonStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon runtime state",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := ctx.daemonClient(cmd.Context())
			if client == nil {
				if ctx.jsonOutput {
					return writeJSON(cmd, map[string]bool{"running": false})
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return nil
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, status)
			}
			colorize := shouldColorize(cmd.OutOrStdout())
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", status.PID), colorize))
			fmt.Fprintln(out, renderStatusLine("Workers", statusInfo, fmt.Sprintf("%d", status.Workflow.Workers), colorize))
			fmt.Fprintln(out, renderStatusLine("Queue database", statusInfo, status.QueueDBPath, colorize))
			fmt.Fprintln(out, renderStatusLine("Lock file", statusInfo, status.LockFilePath, colorize))
			if status.DailyEnabled {
				fmt.Fprintln(out, renderStatusLine("Next daily run", statusInfo, humanTime(status.NextDailyRun), colorize))
			}
			if run := status.LatestRun; run != nil {
				fmt.Fprintln(out, renderStatusLine("Latest run", runStatusKind(run.Status), run.RunDate+" "+run.Status, colorize))
			}
			return nil
		},
	}
}
