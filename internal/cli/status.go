package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	redisclient "github.com/andrzw/marketsync/internal/infra/redis"
	"github.com/andrzw/marketsync/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state counters and parked failures",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	offers := postgres.NewOfferRepo(db)
	published, err := offers.CountByExists(ctx, true)
	if err != nil {
		slog.Error("Failed to count offers", "error", err)
		os.Exit(1)
	}
	pending, err := offers.CountByExists(ctx, false)
	if err != nil {
		slog.Error("Failed to count offers", "error", err)
		os.Exit(1)
	}

	fmt.Printf("offers published: %d\n", published)
	fmt.Printf("offers pending:   %d\n", pending)

	if cfg.Redis.URL == "" {
		return
	}

	rdb, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("Failed to connect to redis", "error", err)
		return
	}
	defer rdb.Close()

	queue := redisclient.NewFailedOfferQueue(rdb)
	failed, err := queue.List(ctx, 20)
	if err != nil {
		slog.Warn("Failed to read failure queue", "error", err)
		return
	}

	fmt.Printf("parked failures:  %d shown\n", len(failed))
	for _, f := range failed {
		fmt.Printf("  offer %d  step=%s  fails=%d  last=%s\n    %s\n",
			f.OfferID, f.Step, f.FailCount, f.LastFailed.Format(time.RFC3339), f.Reason)
	}
}
