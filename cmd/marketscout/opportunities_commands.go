package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"marketscout/internal/api"
	"marketscout/internal/queue"
)

func newOpportunitiesCommand(ctx *commandContext) *cobra.Command {
	oppCmd := &cobra.Command{
		Use:     "opportunities",
		Aliases: []string{"opps"},
		Short:   "Browse scored keyword opportunities",
	}
	oppCmd.AddCommand(newOpportunitiesListCommand(ctx))
	oppCmd.AddCommand(newOpportunitiesBlueprintCommand(ctx))
	oppCmd.AddCommand(newOpportunitiesHistoryCommand(ctx))
	return oppCmd
}

func newOpportunitiesListCommand(ctx *commandContext) *cobra.Command {
	var category string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List opportunities by score, highest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *api.Service, _ *queue.Store) error {
				opps, err := svc.ListOpportunities(cmd.Context(), limit, category)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, api.OpportunityListResponse{Opportunities: opps})
				}
				if len(opps) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No opportunities scored yet")
					return nil
				}
				renderOpportunityTable(cmd.OutOrStdout(), opps, shouldColorize(cmd.OutOrStdout()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Only show this category")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum opportunities to list")
	return cmd
}

func newOpportunitiesBlueprintCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "blueprint <id>",
		Short: "Record that a blueprint was generated for an opportunity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid opportunity id %q", args[0])
			}
			return ctx.withService(func(svc *api.Service, _ *queue.Store) error {
				opp, err := svc.MarkBlueprintGenerated(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, opp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Opportunity %d (%s) marked %s\n", opp.ID, opp.Keyword, opp.Status)
				return nil
			})
		},
	}
}

func newOpportunitiesHistoryCommand(ctx *commandContext) *cobra.Command {
	var category, country string
	cmd := &cobra.Command{
		Use:   "history <keyword>",
		Short: "Show every recorded score for a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(func(svc *api.Service, _ *queue.Store) error {
				history, err := svc.ScoreHistory(cmd.Context(), args[0], category, country)
				if err != nil {
					return err
				}
				if ctx.jsonOutput {
					return writeJSON(cmd, api.ScoreHistoryResponse{History: history})
				}
				renderHistoryTable(cmd.OutOrStdout(), history)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "Category the keyword was scored in")
	cmd.Flags().StringVar(&country, "country", "", "Storefront country the keyword was scored in")
	return cmd
}
