package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/contracts-tracker/constants"
	"github.com/joseph-ayodele/contracts-tracker/internal/async"
	"github.com/joseph-ayodele/contracts-tracker/internal/common"
	"github.com/joseph-ayodele/contracts-tracker/internal/export"
	"github.com/joseph-ayodele/contracts-tracker/internal/ingest"
	repo "github.com/joseph-ayodele/contracts-tracker/internal/repository"
)

// discardQueue records contracts without processing them.
type discardQueue struct{}

func (discardQueue) Enqueue(context.Context, async.Job) error { return nil }

func newIngestCmd(a *app) *cobra.Command {
	var (
		noProcess  bool
		skipHidden bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <dir|file.pdf>",
		Short: "Store and process contract PDFs from disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := a.openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			var (
				q     ingest.Enqueuer = discardQueue{}
				local *async.ProcessorQueue
			)
			if !noProcess {
				local = a.localQueue(e)
				q = local
			}
			svc := ingest.NewService(e.store, e.contracts, q, a.logger)

			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			var (
				results []ingest.Result
				stats   ingest.DirStats
			)
			if info.IsDir() {
				results, stats, err = svc.IngestDirectory(ctx, args[0], skipHidden)
			} else {
				var res ingest.Result
				res, err = svc.IngestPath(ctx, args[0])
				results = []ingest.Result{res}
			}
			if local != nil {
				local.Shutdown(context.WithoutCancel(ctx))
			}
			if err != nil {
				return err
			}

			// Workers have drained; report the final state of each contract.
			if local != nil {
				for i := range results {
					refresh(ctx, e.contracts, &results[i])
				}
			}
			out := map[string]any{"results": results}
			if info.IsDir() {
				out["stats"] = stats
			}
			return a.write(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&noProcess, "no-process", false, "store contracts without extracting and scoring them")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "skip dot files and directories")
	return cmd
}

func refresh(ctx context.Context, contracts repo.ContractRepository, res *ingest.Result) {
	if res.Err != "" {
		return
	}
	c, err := contracts.GetByID(ctx, res.ContractID)
	if err != nil {
		return
	}
	res.Status = c.Status
	if c.Status == constants.StatusFailed && c.ErrorMessage != "" {
		res.Err = c.ErrorMessage
	}
}

func newWatchCmd(a *app) *cobra.Command {
	var (
		initialScan bool
		debounce    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>...",
		Short: "Ingest contract PDFs as they appear in directories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := a.openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			q := a.localQueue(e)
			defer q.Shutdown(context.Background())

			svc := ingest.NewService(e.store, e.contracts, q, a.logger)
			err = svc.Watch(ctx, ingest.WatchConfig{
				Roots:       args,
				InitialScan: initialScan,
				Debounce:    debounce,
				SkipHidden:  true,
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&initialScan, "initial-scan", true, "ingest PDFs already present")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "coalesce bursts of file events")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		out    string
		status string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write contracts to an XLSX workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := common.NewValidator().
				Field("status", status, common.OneOf(constants.StatusStrings()...)).
				Error(); err != nil {
				return err
			}
			ctx := cmd.Context()
			e, err := a.openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			data, n, err := export.NewService(e.contracts, a.logger).ContractsXLSX(ctx, repo.ListFilter{
				Status: constants.ContractStatus(status),
				SortBy: repo.SortUploadedAt,
				Order:  "asc",
			})
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			return a.write(cmd.OutOrStdout(), map[string]any{"file": out, "contracts": n})
		},
	}
	cmd.Flags().StringVar(&out, "out", "contracts.xlsx", "output workbook path")
	cmd.Flags().StringVar(&status, "status", "", "only export contracts in this status")
	return cmd
}

func newDBHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "db-health",
		Short: "Check database connectivity and report contract counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			e, err := a.openEnv(ctx)
			if err != nil {
				return err
			}
			defer e.close()

			if err := e.health(ctx); err != nil {
				return err
			}
			counts := map[string]int{}
			for _, s := range constants.StatusStrings() {
				_, n, err := e.contracts.List(ctx, repo.ListFilter{Status: constants.ContractStatus(s), Limit: 1})
				if err != nil {
					return err
				}
				counts[s] = n
			}
			_, total, err := e.contracts.List(ctx, repo.ListFilter{Limit: 1})
			if err != nil {
				return err
			}
			return a.write(cmd.OutOrStdout(), map[string]any{
				"driver":    a.cfg.Database.Driver,
				"healthy":   true,
				"total":     total,
				"by_status": counts,
			})
		},
	}
}
