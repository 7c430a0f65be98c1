package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/luoxh/trainsys/internal/app/migrations"
	"github.com/luoxh/trainsys/internal/config"
	"github.com/luoxh/trainsys/internal/db"
	"github.com/luoxh/trainsys/internal/pkg/logger"
	"github.com/luoxh/trainsys/internal/seed"
)

var (
	dbPath     string
	reportPath string
	backup     bool
	seedData   bool
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Rebuild the students database onto the canonical schema",
	Long: `migrate brings a students database file up to the canonical schema:
renamed columns are carried over from their legacy names, obsolete
columns are dropped, and row data is normalized (training type
inference, default project codes and review status).

Running it against an already-canonical database changes nothing, so it
is safe to run repeatedly.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.Flags().StringVar(&dbPath, "db", "", "path to the SQLite database file (defaults to the configured path)")
	rootCmd.Flags().StringVar(&reportPath, "report", "", "write a JSON migration report to this path")
	rootCmd.Flags().BoolVar(&backup, "backup", true, "copy the database to a timestamped backup before changing it")
	rootCmd.Flags().BoolVar(&seedData, "seed", false, "insert demo records into an empty database afterwards")
	rootCmd.Flags().StringVar(&logFormat, "log-format", "text", "log output format (text or json)")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	logger.Configure(logger.Config{
		Level:  logger.InfoLevel,
		Pretty: strings.ToLower(logFormat) != "json",
	})

	path := dbPath
	if path == "" {
		cfg, err := config.LoadConfig(filepath.Join("configs", "config.yaml"))
		if err != nil {
			return fmt.Errorf("no --db given and config load failed: %w", err)
		}
		path = cfg.DatabasePath()
	}

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("database file %s not accessible: %w", path, err)
	}

	database, err := db.NewSQLiteDB(path)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	migrator := migrations.NewMigrator(database, path, migrations.Options{
		Backup:     backup,
		ReportPath: reportPath,
	})
	report, err := migrator.Run(ctx)
	if err != nil {
		return err
	}

	logger.Info().
		Str("db", report.DatabasePath).
		Bool("rebuilt", report.Rebuilt).
		Int("rows", report.StatsAfter.Rows).
		Int("missing_required", report.StatsAfter.MissingRequired).
		Msg("Migration finished")
	if report.BackupPath != "" {
		logger.Info().Str("backup", report.BackupPath).Msg("Backup written")
	}
	if reportPath != "" {
		logger.Info().Str("report", reportPath).Msg("Report written")
	}

	if seedData {
		if err := seed.CreateSampleData(ctx, database); err != nil {
			return fmt.Errorf("seeding sample data: %w", err)
		}
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error().Err(err).Msg("Migration failed")
		os.Exit(1)
	}
}
