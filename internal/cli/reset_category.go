package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/andrzw/marketsync/internal/infra/storage/postgres"
)

var resetCategoryCmd = &cobra.Command{
	Use:   "reset-category",
	Short: "Clear resolved category ids so the next cycle re-resolves them",
	Run:   runResetCategory,
}

func init() {
	rootCmd.AddCommand(resetCategoryCmd)
}

func runResetCategory(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	n, err := postgres.NewProductRepo(db).ResetCategories(ctx)
	if err != nil {
		slog.Error("Failed to reset categories", "error", err)
		os.Exit(1)
	}
	slog.Info("Cleared resolved categories", "products", n)
}
