package main

import (
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"marketscout/internal/api"
	"marketscout/internal/daemonrun"
	"marketscout/internal/queue"
	"marketscout/internal/scoring"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Enqueue, inspect, and process discovery jobs",
	}

	jobCmd.AddCommand(newJobEnqueueCommand(ctx))
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	jobCmd.AddCommand(newJobResetCommand(ctx))
	jobCmd.AddCommand(newJobWorkCommand(ctx))
	jobCmd.AddCommand(newJobClearCommand(ctx))

	return jobCmd
}

type scopeFlags struct {
	country  string
	category string
	tier     string
	priority int
}

func (f *scopeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.country, "country", "", "Storefront country (defaults to marketplace.country)")
	cmd.Flags().StringVar(&f.category, "category", "", "Category recorded on scored opportunities")
	cmd.Flags().StringVar(&f.tier, "tier", "", "Scoring tier: basic or full")
	cmd.Flags().IntVar(&f.priority, "priority", 0, "Higher priorities are claimed first")
}

func (f *scopeFlags) scope() (queue.Scope, error) {
	scope := queue.Scope{
		Country:  strings.ToLower(strings.TrimSpace(f.country)),
		Category: strings.ToLower(strings.TrimSpace(f.category)),
	}
	if strings.TrimSpace(f.tier) != "" {
		tier, err := scoring.ParseTier(f.tier)
		if err != nil {
			return scope, err
		}
		scope.Tier = tier
	}
	return scope, nil
}

func newJobEnqueueCommand(ctx *commandContext) *cobra.Command {
	enqueueCmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Add a discovery or scoring job to the queue",
	}

	enqueue := func(cmd *cobra.Command, jobType queue.JobType, params queue.JobParams, priority int) error {
		return ctx.withService(func(svc *api.Service, _ *queue.Store) error {
			result, err := svc.EnqueueJob(cmd.Context(), jobType, params, priority)
			if err != nil {
				return err
			}
			if ctx.jsonOutput {
				return writeJSON(cmd, result)
			}
			out := cmd.OutOrStdout()
			if result.Created {
				fmt.Fprintf(out, "Enqueued %s job %s\n", result.Job.Type, result.Job.ID)
			} else {
				fmt.Fprintf(out, "Equivalent %s job %s is already pending\n", result.Job.Type, result.Job.ID)
			}
			return nil
		})
	}

	var seedFlags scopeFlags
	var seedDepth int
	seedCmd := &cobra.Command{
		Use:   "seed <phrase>",
		Short: "Expand a seed phrase through autosuggest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := seedFlags.scope()
			if err != nil {
				return err
			}
			params := queue.JobParams{Seed: &queue.SeedParams{Scope: scope, Seed: args[0], Depth: seedDepth}}
			return enqueue(cmd, queue.JobDiscoverSeed, params, seedFlags.priority)
		},
	}
	seedFlags.register(seedCmd)
	seedCmd.Flags().IntVar(&seedDepth, "depth", 0, "Autosuggest expansion depth (defaults to discovery.seed_depth)")

	var competitorFlags scopeFlags
	competitorCmd := &cobra.Command{
		Use:   "competitor <app-id>",
		Short: "Extract keywords from a competitor app listing and reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := competitorFlags.scope()
			if err != nil {
				return err
			}
			params := queue.JobParams{Competitor: &queue.CompetitorParams{Scope: scope, AppID: args[0]}}
			return enqueue(cmd, queue.JobDiscoverCompetitor, params, competitorFlags.priority)
		},
	}
	competitorFlags.register(competitorCmd)

	var categoryFlags scopeFlags
	var categoryDepth int
	categoryCmd := &cobra.Command{
		Use:   "category <name>",
		Short: "Crawl a category's curated seeds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			categoryFlags.category = args[0]
			scope, err := categoryFlags.scope()
			if err != nil {
				return err
			}
			params := queue.JobParams{Category: &queue.CategoryParams{Scope: scope, Depth: categoryDepth}}
			return enqueue(cmd, queue.JobDiscoverCategory, params, categoryFlags.priority)
		},
	}
	categoryFlags.register(categoryCmd)
	categoryCmd.Flags().IntVar(&categoryDepth, "depth", 0, "Autosuggest expansion depth per seed")

	var bulkFlags scopeFlags
	bulkCmd := &cobra.Command{
		Use:   "bulk <keyword>...",
		Short: "Score a list of keywords without discovery",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := bulkFlags.scope()
			if err != nil {
				return err
			}
			params := queue.JobParams{ScoreBulk: &queue.ScoreBulkParams{Scope: scope, Keywords: args}}
			return enqueue(cmd, queue.JobScoreBulk, params, bulkFlags.priority)
		},
	}
	bulkFlags.register(bulkCmd)

	enqueueCmd.AddCommand(seedCmd, competitorCmd, categoryCmd, bulkCmd)
	return enqueueCmd
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *api.Service, _ *queue.Store) error {
				job, err := svc.GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, job)
				}
				renderJobDetail(cmd.OutOrStdout(), *job, shouldColorize(cmd.OutOrStdout()))
				return nil
			})
		},
	}
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter []queue.Status
			for _, value := range statuses {
				status, ok := queue.ParseStatus(value)
				if !ok {
					return fmt.Errorf("unknown status %q", value)
				}
				filter = append(filter, status)
			}
			return ctx.withService(func(svc *api.Service, _ *queue.Store) error {
				jobs, err := svc.ListJobs(cmd.Context(), limit, filter...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				renderJobTable(cmd.OutOrStdout(), jobs, shouldColorize(cmd.OutOrStdout()))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", api.DefaultListLimit, "Maximum jobs to list")
	return cmd
}

func newJobResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <id>...",
		Short: "Move failed jobs back to pending",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *api.Service, _ *queue.Store) error {
				result, err := svc.ResetFailedJobsByID(cmd.Context(), args)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				for _, item := range result.Jobs {
					switch item.Outcome {
					case api.ResetJobUpdated:
						fmt.Fprintf(out, "Job %s reset to pending\n", item.ID)
					case api.ResetJobNotFound:
						fmt.Fprintf(out, "Job %s not found\n", item.ID)
					case api.ResetJobNotFailed:
						fmt.Fprintf(out, "Job %s is %s; only failed jobs can be reset\n", item.ID, item.PriorStatus)
					}
				}
				if result.UpdatedCount == 0 {
					return errors.New("no jobs were reset")
				}
				return nil
			})
		},
	}
}

func newJobWorkCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var maxJobs int
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Process queued jobs in the foreground",
		Long: "Process queued jobs without the daemon. By default the queue is drained " +
			"once and the command exits; --follow keeps the worker pool running until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := ctx.commandLogger(false)
			return ctx.withComponents(cmd, logger, func(components *daemonrun.Components, _ *api.Service) error {
				if follow {
					runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
					defer stop()
					if err := components.Workflow.Start(runCtx); err != nil {
						return err
					}
					<-runCtx.Done()
					components.Workflow.Stop()
					return nil
				}
				processed := 0
				for maxJobs <= 0 || processed < maxJobs {
					ran, err := components.Processor.RunOnce(cmd.Context())
					if !ran {
						if err != nil {
							return err
						}
						break
					}
					if err != nil && cmd.Context().Err() != nil {
						return err
					}
					processed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Processed %s\n", pluralize(processed, "job"))
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep processing new jobs until interrupted")
	cmd.Flags().IntVar(&maxJobs, "max", 0, "Stop after this many jobs (0 drains the queue)")
	return cmd
}

func newJobClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete completed and failed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *api.Service, _ *queue.Store) error {
				removed, err := svc.ClearJobs(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, map[string]int64{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", pluralize(int(removed), "finished job"))
				return nil
			})
		},
	}
}

func pluralize(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
