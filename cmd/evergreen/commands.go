package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evergreenhq/evergreen/internal/agent"
)

// --- ingest ---

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch the M365 roadmap feed and update the local corpus",
	Long: `Fetch the Microsoft 365 roadmap feed and update the local corpus.

By default only items changed since the last completed run are processed.

Examples:
  evergreen ingest
  evergreen ingest --full`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fullSync, _ := cmd.Flags().GetBool("full")

		comp, err := buildComponents()
		if err != nil {
			return err
		}
		defer comp.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		res := comp.pipeline.Run(ctx, fullSync)
		if !res.Success {
			printError("%s", res.Message)
			return fmt.Errorf("ingestion failed")
		}
		printSuccess("%s", res.Message)
		return nil
	},
}

func init() {
	ingestCmd.Flags().Bool("full", false, "reprocess the entire feed, ignoring the incremental cursor")
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the orchestrator a question",
	Long: `Ask the orchestrator a question about the roadmap, your customers, or
the impact of upcoming changes.

Examples:
  evergreen ask "what's new in Teams this quarter?"
  evergreen ask "add customer Contoso using Teams and SharePoint, high priority"
  evergreen ask "how do upcoming changes affect Contoso?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.Join(args, " ")

		comp, err := buildComponents()
		if err != nil {
			return err
		}
		defer comp.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		orch := agent.NewOrchestrator(comp.deps)
		answer, err := orch.Query(ctx, question)
		if err != nil {
			return err
		}
		fmt.Println(answer)
		return nil
	},
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus and customer statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		comp, err := buildComponents()
		if err != nil {
			return err
		}
		defer comp.Close()

		items, err := comp.store.CountRoadmapItems()
		if err != nil {
			return fmt.Errorf("counting roadmap items: %w", err)
		}
		customers, err := comp.store.CountCustomers()
		if err != nil {
			return fmt.Errorf("counting customers: %w", err)
		}

		printStatus("Roadmap items", "%d", items)
		printStatus("Customers", "%d", customers)
		printStatus("Data dir", "%s", comp.cfg.Storage.DataDir)
		if run, err := comp.store.LatestIngestionRun(); err == nil {
			printStatus("Last ingestion", "%s (%s, %d items)", run.StartedAt.Format("2006-01-02 15:04"), run.Status, run.ItemsProcessed)
		}
		return nil
	},
}
