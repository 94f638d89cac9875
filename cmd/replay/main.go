package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/reqtrail/reqtrail/internal/config"
	"github.com/reqtrail/reqtrail/internal/pkg/logger"
	"github.com/reqtrail/reqtrail/internal/replay"
	"github.com/reqtrail/reqtrail/internal/repository"
	"github.com/reqtrail/reqtrail/internal/service"
	"github.com/spf13/cobra"
)

// reqtrail-replay re-issues recorded requests against a target host. It is
// the recovery tool for volatile state lost on restart: point it at the
// history database and the host to rebuild, and it plays the log back in
// order.
//
// Sample usage:
//
//	reqtrail-replay \
//	    --dsn "postgres://..." \
//	    --base-url http://192.168.1.100 \
//	    --excluded-paths /v1/commands
func main() {
	var (
		baseURL       string
		dsn           string
		redisAddr     string
		sinceID       uint64
		limit         int
		excludedPaths []string
		dryRun        bool
		ratePerSec    float64
		timeoutSec    int
	)

	cmd := &cobra.Command{
		Use:   "reqtrail-replay",
		Short: "Replay recorded HTTP requests against a target host",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Init("info")

			src, err := buildSource(dsn, redisAddr)
			if err != nil {
				return err
			}

			replayer, err := replay.New(src, replay.Options{
				BaseURL:       baseURL,
				ExcludedPaths: excludedPaths,
				SinceSeq:      sinceID,
				Limit:         limit,
				DryRun:        dryRun,
				RatePerSec:    ratePerSec,
				Timeout:       time.Duration(timeoutSec) * time.Second,
			})
			if err != nil {
				return err
			}

			ctx := context.Background()
			report, err := replayer.Do(ctx)
			if report != nil {
				printReport(report)
			}
			if err != nil {
				return err
			}

			// resume hint for the next run
			if maxID, idErr := src.MaxID(ctx); idErr == nil && maxID > 0 {
				fmt.Printf("history max id %d; resume later with --since-id %d\n", maxID, maxID+1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&baseURL, "base-url", "", "target host, e.g. http://192.168.1.100 (required)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres DSN of the history database")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "redis address of the history mirror (used when no DSN is given)")
	cmd.Flags().Uint64Var(&sinceID, "since-id", 0, "replay only records with seq >= this value")
	cmd.Flags().IntVar(&limit, "limit", 1000, "maximum number of records to replay")
	cmd.Flags().StringSliceVar(&excludedPaths, "excluded-paths", nil, "paths that must not be replayed")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list what would be replayed without sending anything")
	cmd.Flags().Float64Var(&ratePerSec, "rate", 0, "replay requests per second, 0 = unthrottled")
	cmd.Flags().IntVar(&timeoutSec, "timeout", 10, "per-request timeout in seconds")
	_ = cmd.MarkFlagRequired("base-url")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildSource(dsn, redisAddr string) (service.HistoryRepo, error) {
	if dsn != "" {
		db, err := repository.NewDB(&config.Config{Database: config.DatabaseConfig{DSN: dsn}})
		if err != nil {
			return nil, err
		}
		repo, err := repository.NewGormHistoryRepo(db)
		if err != nil {
			return nil, err
		}
		return repo, nil
	}
	if redisAddr != "" {
		client, err := repository.NewRedisClient(&config.Config{Redis: config.RedisConfig{Addr: redisAddr}})
		if err != nil {
			return nil, err
		}
		return repository.NewRedisHistoryRepo(client, "", 0), nil
	}
	return nil, fmt.Errorf("either --dsn or --redis-addr is required")
}

func printReport(report *replay.Report) {
	for _, o := range report.Outcomes {
		switch {
		case o.Skipped:
			fmt.Printf("SKIP  #%d %s %s (excluded)\n", o.Seq, o.Method, o.Path)
		case o.DryRun:
			fmt.Printf("DRY   #%d %s %s (recorded %d)\n", o.Seq, o.Method, o.Path, o.OriginalStatus)
		case o.Err != "":
			fmt.Printf("FAIL  #%d %s %s: %s\n", o.Seq, o.Method, o.Path, o.Err)
		default:
			fmt.Printf("OK    #%d %s %s -> %d (recorded %d)\n", o.Seq, o.Method, o.Path, o.ReplayStatus, o.OriginalStatus)
		}
	}
	fmt.Printf("\nreplayed %d / %d, skipped %d, failed %d\n",
		report.Replayed, report.Total, report.Skipped, report.Failed)
}
