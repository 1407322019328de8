package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/LJTian/KickoffHub/internal/collector"
	"github.com/LJTian/KickoffHub/internal/config"
	"github.com/LJTian/KickoffHub/internal/pipeline"
	"github.com/LJTian/KickoffHub/internal/retention"
	"github.com/LJTian/KickoffHub/internal/storage"
	"github.com/spf13/cobra"
)

var (
	sourceCodes []string
	category    string
	sweep       bool
	timeout     time.Duration
)

// 只执行一轮采集任务后退出，适合手动触发或外部调度
var rootCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one football news collection pass",
	Long: `collect fetches every active source once, deduplicates the results
and stores the representatives, then prints the run summary as JSON.

Example usage:
  collect                                  # all active sources
  collect --sources bbc-sport,sky-sports   # only the given sources
  collect --category analysis              # force a category on this run
  collect --sweep                          # also delete expired articles`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringSliceVar(&sourceCodes, "sources", nil, "source codes to collect (default: all active)")
	rootCmd.Flags().StringVar(&category, "category", "", "category override for every article of this run")
	rootCmd.Flags().BoolVar(&sweep, "sweep", false, "run the retention sweep after collecting")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall timeout")
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	// 与 cmd/api 保持一致，先同步数据源
	sources, err := cfg.Sources()
	if err != nil {
		return err
	}
	if err := store.SyncSources(ctx, sources); err != nil {
		return err
	}

	fetcher := collector.NewFeedFetcher(cfg.FetchTimeout, cfg.FetchMaxItems)
	sum, err := pipeline.New(store, fetcher, store, nil).Run(ctx, pipeline.Options{
		SourceCodes: sourceCodes,
		Category:    category,
	})
	if err != nil {
		return err
	}

	if sweep {
		if _, err := retention.NewSweeper(store, cfg.RetentionWindow(), nil).Sweep(ctx); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}
