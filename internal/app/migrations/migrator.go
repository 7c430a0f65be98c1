// Package migrations brings an existing students database up to the
// canonical column set and normalizes legacy row values. It runs offline
// against the database file, independent of the request path.
package migrations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/luoxh/trainsys/internal/app/models"
	"github.com/luoxh/trainsys/internal/pkg/apperrors"
	"github.com/luoxh/trainsys/internal/pkg/logger"
)

const (
	tableName  = "students"
	shadowName = "students_new"
)

// columnDef is one canonical column with its DDL and the literal used
// when neither the column nor a legacy alias exists in the old table.
type columnDef struct {
	name        string
	ddl         string
	defaultExpr string
}

// Canonical schema, in order. The rebuild copy and the shadow DDL are
// both derived from this list so they cannot drift apart.
var canonicalColumns = []columnDef{
	{"id", "INTEGER PRIMARY KEY AUTOINCREMENT", ""},
	{"name", "TEXT NOT NULL DEFAULT ''", "''"},
	{"gender", "TEXT NOT NULL DEFAULT ''", "''"},
	{"education", "TEXT NOT NULL DEFAULT ''", "''"},
	{"school", "TEXT NOT NULL DEFAULT ''", "''"},
	{"major", "TEXT NOT NULL DEFAULT ''", "''"},
	{"id_card", "TEXT NOT NULL DEFAULT ''", "''"},
	{"phone", "TEXT NOT NULL DEFAULT ''", "''"},
	{"company", "TEXT NOT NULL DEFAULT ''", "''"},
	{"company_address", "TEXT NOT NULL DEFAULT ''", "''"},
	{"job_category", "TEXT NOT NULL DEFAULT ''", "''"},
	{"exam_project", "TEXT NOT NULL DEFAULT ''", "''"},
	{"project_code", "TEXT NOT NULL DEFAULT ''", "''"},
	{"training_type", "TEXT NOT NULL DEFAULT 'special_operation'", "'special_operation'"},
	{"status", "TEXT NOT NULL DEFAULT 'unreviewed'", "'unreviewed'"},
	{"created_at", "TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP", "CURRENT_TIMESTAMP"},
	{"photo_path", "TEXT NOT NULL DEFAULT ''", "''"},
	{"diploma_path", "TEXT NOT NULL DEFAULT ''", "''"},
	{"id_card_front_path", "TEXT NOT NULL DEFAULT ''", "''"},
	{"id_card_back_path", "TEXT NOT NULL DEFAULT ''", "''"},
	{"hukou_residence_path", "TEXT NOT NULL DEFAULT ''", "''"},
	{"hukou_personal_path", "TEXT NOT NULL DEFAULT ''", "''"},
	{"training_form_path", "TEXT NOT NULL DEFAULT ''", "''"},
	{"submitter_openid", "TEXT NOT NULL DEFAULT ''", "''"},
}

// legacyAliases maps a canonical column to the old column its values are
// copied from during a rebuild.
var legacyAliases = map[string]string{
	"project_code":       "exam_code",
	"id_card_front_path": "cert_front_path",
	"id_card_back_path":  "cert_back_path",
}

// obsoleteColumns force a rebuild when present.
var obsoleteColumns = map[string]bool{
	"exam_code":       true,
	"cert_front_path": true,
	"cert_back_path":  true,
}

// Stats summarizes the table for the migration report.
type Stats struct {
	Rows            int            `json:"rows"`
	ByTrainingType  map[string]int `json:"by_training_type"`
	MissingRequired int            `json:"missing_required"`
}

// Report records what a migration run did.
type Report struct {
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	DatabasePath  string    `json:"database_path"`
	BackupPath    string    `json:"backup_path,omitempty"`
	Rebuilt       bool      `json:"rebuilt"`
	ColumnsBefore []string  `json:"columns_before"`
	ColumnsAfter  []string  `json:"columns_after"`
	StatsBefore   Stats     `json:"stats_before"`
	StatsAfter    Stats     `json:"stats_after"`
}

// Options controls the optional safety features of a run.
type Options struct {
	// Backup copies the database file to a timestamped sibling before
	// any mutation.
	Backup bool
	// ReportPath, when set, receives the JSON report.
	ReportPath string
}

// Migrator rebuilds and normalizes the students table.
type Migrator struct {
	db     *sql.DB
	dbPath string
	opts   Options
}

func NewMigrator(db *sql.DB, dbPath string, opts Options) *Migrator {
	return &Migrator{db: db, dbPath: dbPath, opts: opts}
}

// Run executes the full migration: optional backup, rebuild when the
// column set is off-canon, then the always-on normalization pass. Running
// it again on a canonical database changes nothing.
func (m *Migrator) Run(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: time.Now(), DatabasePath: m.dbPath}

	if m.opts.Backup {
		backupPath, err := m.backupFile()
		if err != nil {
			return nil, err
		}
		report.BackupPath = backupPath
	}

	before, err := m.tableColumns(ctx)
	if err != nil {
		return nil, err
	}
	report.ColumnsBefore = before

	if len(before) == 0 {
		// Fresh database: create the canonical table directly.
		if _, err := m.db.ExecContext(ctx, canonicalDDL(tableName)); err != nil {
			return nil, apperrors.NewDatabaseError(fmt.Errorf("creating %s table: %w", tableName, err))
		}
	} else {
		report.StatsBefore, err = m.tableStats(ctx)
		if err != nil {
			return nil, err
		}
	}

	rebuild := needsRebuild(before)
	report.Rebuilt = rebuild

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewDatabaseError(fmt.Errorf("beginning migration transaction: %w", err))
	}

	if rebuild {
		if err := rebuildTable(ctx, tx, before); err != nil {
			tx.Rollback()
			return nil, err
		}
		logger.Info().Strs("columns_before", before).Msg("Students table rebuilt to canonical schema")
	}

	if err := normalizeRows(ctx, tx); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewDatabaseError(fmt.Errorf("committing migration: %w", err))
	}

	report.ColumnsAfter, err = m.tableColumns(ctx)
	if err != nil {
		return nil, err
	}
	report.StatsAfter, err = m.tableStats(ctx)
	if err != nil {
		return nil, err
	}
	report.FinishedAt = time.Now()

	if m.opts.ReportPath != "" {
		if err := writeReport(m.opts.ReportPath, report); err != nil {
			logger.Warn().Err(err).Str("path", m.opts.ReportPath).Msg("Could not write migration report")
		}
	}

	return report, nil
}

// needsRebuild is true when an obsolete column survived or a canonical
// column is missing.
func needsRebuild(columns []string) bool {
	if len(columns) == 0 {
		return false
	}
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	for _, c := range columns {
		if obsoleteColumns[c] {
			return true
		}
	}
	for _, col := range canonicalColumns {
		if !present[col.name] {
			return true
		}
	}
	return false
}

// rebuildTable creates the shadow table, copies every row in a single
// statement mapping old columns, aliases, or literal defaults onto the
// canonical set, then swaps the tables.
func rebuildTable(ctx context.Context, tx *sql.Tx, oldColumns []string) error {
	present := make(map[string]bool, len(oldColumns))
	for _, c := range oldColumns {
		present[c] = true
	}

	if _, err := tx.ExecContext(ctx, canonicalDDL(shadowName)); err != nil {
		return apperrors.NewDatabaseError(fmt.Errorf("creating shadow table: %w", err))
	}

	targets := make([]string, 0, len(canonicalColumns))
	sources := make([]string, 0, len(canonicalColumns))
	for _, col := range canonicalColumns {
		targets = append(targets, col.name)

		var src string
		switch {
		case present[col.name]:
			src = col.name
		case present[legacyAliases[col.name]]:
			src = legacyAliases[col.name]
		default:
			sources = append(sources, col.defaultExpr)
			continue
		}
		// Legacy tables declare most columns nullable, so a carried
		// value must be coalesced onto the canonical default or the
		// shadow table's NOT NULL constraints reject the copy.
		if col.defaultExpr != "" {
			src = fmt.Sprintf("COALESCE(%s, %s)", src, col.defaultExpr)
		}
		sources = append(sources, src)
	}

	copyStmt := fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
		shadowName, strings.Join(targets, ", "), strings.Join(sources, ", "), tableName)
	if _, err := tx.ExecContext(ctx, copyStmt); err != nil {
		return apperrors.NewDatabaseError(fmt.Errorf("copying rows into shadow table: %w", err))
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE "+tableName); err != nil {
		return apperrors.NewDatabaseError(fmt.Errorf("dropping old table: %w", err))
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", shadowName, tableName)); err != nil {
		return apperrors.NewDatabaseError(fmt.Errorf("renaming shadow table: %w", err))
	}
	return nil
}

// normalizeRows repairs legacy values. Each statement is idempotent.
func normalizeRows(ctx context.Context, tx *sql.Tx) error {
	equipmentMarks := make([]string, 0, len(models.EquipmentJobCategories))
	equipmentArgs := make([]any, 0, len(models.EquipmentJobCategories))
	for _, cat := range models.EquipmentJobCategories {
		equipmentMarks = append(equipmentMarks, "?")
		equipmentArgs = append(equipmentArgs, cat.Name)
	}

	stmts := []struct {
		sql  string
		args []any
	}{
		{
			sql: fmt.Sprintf(
				"UPDATE students SET training_type = ? WHERE (training_type IS NULL OR training_type NOT IN (?, ?)) AND job_category IN (%s)",
				strings.Join(equipmentMarks, ", ")),
			args: append([]any{
				string(models.TrainingSpecialEquipment),
				string(models.TrainingSpecialOperation),
				string(models.TrainingSpecialEquipment),
			}, equipmentArgs...),
		},
		{
			sql:  "UPDATE students SET training_type = ? WHERE training_type IS NULL OR training_type NOT IN (?, ?)",
			args: []any{string(models.TrainingSpecialOperation), string(models.TrainingSpecialOperation), string(models.TrainingSpecialEquipment)},
		},
		{
			sql: "UPDATE students SET project_code = '' WHERE project_code IS NULL",
		},
		{
			sql:  "UPDATE students SET status = ? WHERE status IS NULL OR status = ''",
			args: []any{string(models.StatusUnreviewed)},
		},
	}

	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.sql, s.args...); err != nil {
			return apperrors.NewDatabaseError(fmt.Errorf("normalizing rows: %w", err))
		}
	}

	// Tables that already had the canonical column names skip the
	// rebuild but may still hold NULLs from nullable legacy schemas;
	// back-fill every column so plain-string scanning never fails.
	for _, col := range canonicalColumns {
		if col.defaultExpr == "" {
			continue
		}
		stmt := fmt.Sprintf("UPDATE students SET %s = %s WHERE %s IS NULL",
			col.name, col.defaultExpr, col.name)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return apperrors.NewDatabaseError(fmt.Errorf("back-filling %s: %w", col.name, err))
		}
	}
	return nil
}

// tableColumns snapshots the current column names, empty when the table
// does not exist yet.
func (m *Migrator) tableColumns(ctx context.Context) ([]string, error) {
	rows, err := m.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return nil, apperrors.NewDatabaseError(fmt.Errorf("reading table info: %w", err))
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid        int
			name       string
			ctype      string
			notnull    int
			dfltValue  sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &primaryKey); err != nil {
			return nil, apperrors.NewDatabaseError(fmt.Errorf("scanning table info: %w", err))
		}
		columns = append(columns, name)
	}
	return columns, rows.Err()
}

// tableStats computes the row statistics carried in the report.
func (m *Migrator) tableStats(ctx context.Context) (Stats, error) {
	stats := Stats{ByTrainingType: make(map[string]int)}

	rows, err := m.db.QueryContext(ctx,
		"SELECT COALESCE(training_type, ''), COUNT(*) FROM students GROUP BY training_type")
	if err != nil {
		return stats, apperrors.NewDatabaseError(fmt.Errorf("counting rows by training type: %w", err))
	}
	defer rows.Close()
	for rows.Next() {
		var tt string
		var n int
		if err := rows.Scan(&tt, &n); err != nil {
			return stats, apperrors.NewDatabaseError(fmt.Errorf("scanning training type counts: %w", err))
		}
		stats.ByTrainingType[tt] = n
		stats.Rows += n
	}
	if err := rows.Err(); err != nil {
		return stats, apperrors.NewDatabaseError(err)
	}

	err = m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM students
		 WHERE name = '' OR gender = '' OR id_card = '' OR phone = ''
		    OR company = '' OR company_address = '' OR job_category = ''`).
		Scan(&stats.MissingRequired)
	if err != nil {
		return stats, apperrors.NewDatabaseError(fmt.Errorf("counting incomplete rows: %w", err))
	}
	return stats, nil
}

// backupFile copies the database file next to itself with a timestamp
// suffix. A missing file is not an error, there is nothing to back up.
func (m *Migrator) backupFile() (string, error) {
	src, err := os.Open(m.dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("opening database for backup: %w", err)
	}
	defer src.Close()

	backupPath := fmt.Sprintf("%s.backup-%s", m.dbPath, time.Now().Format("20060102-150405"))
	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("creating backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copying database to backup: %w", err)
	}
	logger.Info().Str("backup", backupPath).Msg("Database backed up")
	return backupPath, nil
}

func canonicalDDL(table string) string {
	defs := make([]string, 0, len(canonicalColumns))
	for _, col := range canonicalColumns {
		defs = append(defs, col.name+" "+col.ddl)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", table, strings.Join(defs, ",\n    "))
}

func writeReport(path string, report *Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
