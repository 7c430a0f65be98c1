package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/luoxh/trainsys/internal/pkg/logger"
)

// Schema is the canonical students table definition. The migrator brings
// legacy databases onto this shape; see internal/app/migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS students (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL DEFAULT '',
	gender TEXT NOT NULL DEFAULT '',
	education TEXT NOT NULL DEFAULT '',
	school TEXT NOT NULL DEFAULT '',
	major TEXT NOT NULL DEFAULT '',
	id_card TEXT NOT NULL DEFAULT '',
	phone TEXT NOT NULL DEFAULT '',
	company TEXT NOT NULL DEFAULT '',
	company_address TEXT NOT NULL DEFAULT '',
	job_category TEXT NOT NULL DEFAULT '',
	exam_project TEXT NOT NULL DEFAULT '',
	project_code TEXT NOT NULL DEFAULT '',
	training_type TEXT NOT NULL DEFAULT 'special_operation',
	status TEXT NOT NULL DEFAULT 'unreviewed',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	photo_path TEXT NOT NULL DEFAULT '',
	diploma_path TEXT NOT NULL DEFAULT '',
	id_card_front_path TEXT NOT NULL DEFAULT '',
	id_card_back_path TEXT NOT NULL DEFAULT '',
	hukou_residence_path TEXT NOT NULL DEFAULT '',
	hukou_personal_path TEXT NOT NULL DEFAULT '',
	training_form_path TEXT NOT NULL DEFAULT '',
	submitter_openid TEXT NOT NULL DEFAULT ''
)`

// NewSQLiteDB opens (creating when absent) the students database file and
// ensures the canonical schema exists.
func NewSQLiteDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	// busy_timeout covers concurrent request handlers sharing the file;
	// WAL keeps readers unblocked during document-generation updates.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", path)
	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	database.SetMaxOpenConns(1)
	database.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.PingContext(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := database.ExecContext(ctx, Schema); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info().Str("path", path).Msg("SQLite database ready")
	return database, nil
}
