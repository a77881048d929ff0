// Command import-claims loads a legacy spreadsheet export (CSV or XLSX) into
// the MongoDB claims collection.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ArowuTest/agriclaim-backend/internal/config"
	mongorepo "github.com/ArowuTest/agriclaim-backend/internal/repositories/mongodb"
	"github.com/ArowuTest/agriclaim-backend/internal/utils"
	mongodb "github.com/ArowuTest/agriclaim-backend/pkg/mongodb"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newImportCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newImportCmd() *cobra.Command {
	var (
		mongoURI string
		database string
		sheet    string
		dryRun   bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "import-claims <file.csv|file.xlsx>",
		Short: "Import claims exported from the legacy spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			records, err := utils.ReadRecords(args[0], sheet)
			if err != nil {
				return err
			}

			importer := utils.NewClaimImporter(nil)
			if !dryRun {
				if mongoURI == "" {
					return errors.New("--mongo-uri or MONGODB_URI is required")
				}
				client, err := mongodb.NewClient(ctx, mongoURI, timeout)
				if client != nil {
					defer client.Disconnect(context.Background())
				}
				if err != nil {
					return fmt.Errorf("failed to connect to MongoDB: %w", err)
				}

				repo := mongorepo.NewClaimRepository(client.Database(database))
				if err := repo.EnsureIndexes(ctx); err != nil {
					return fmt.Errorf("failed to ensure indexes: %w", err)
				}
				importer = utils.NewClaimImporter(repo)
			}

			result, err := importer.Import(ctx, records, dryRun)
			if err != nil {
				return err
			}
			slog.Info("Import finished",
				"file", args[0],
				"rows", result.TotalRows,
				"created", result.Created,
				"skipped", result.Skipped,
				"errors", len(result.Errors),
				"dryRun", dryRun,
			)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}

	cmd.Flags().StringVar(&mongoURI, "mongo-uri", config.GetEnv("MONGODB_URI", ""), "MongoDB connection string")
	cmd.Flags().StringVar(&database, "database", config.GetEnv("MONGODB_DATABASE", "agriclaim"), "MongoDB database name")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Workbook sheet to read (default: first sheet)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", config.GetEnvAsBool("IMPORT_DRY_RUN", false), "Parse and validate without writing")
	cmd.Flags().DurationVar(&timeout, "timeout", config.GetEnvAsDuration("MONGODB_TIMEOUT", 10*time.Second), "MongoDB connect timeout")

	return cmd
}
