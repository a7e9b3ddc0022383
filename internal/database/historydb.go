package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/threedibatch/internal/model"
)

// FileName is the history database file name inside the database directory.
const FileName = "history.db"

var (
	// ErrRunNotFound is returned when no run matches the requested id.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRunID is returned when a run id prefix matches more than
	// one run.
	ErrAmbiguousRunID = errors.New("run id prefix matches more than one run")

	// ErrDatabaseNotFound is returned when the database does not exist and
	// creation was not requested.
	ErrDatabaseNotFound = errors.New("history database not found")
)

// HistoryDB stores runs, sub-area outcomes and submitted simulations.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// RunMetadata is a row of the run list.
type RunMetadata struct {
	RunID          string    `json:"run_id"`
	RepositorySlug string    `json:"repository_slug"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at,omitzero"`
	Succeeded      int       `json:"succeeded"`
	Failed         int       `json:"failed"`
	Cancelled      bool      `json:"cancelled,omitempty"`
}

// SubAreaHistoryEntry is the outcome of one sub-area in one run.
type SubAreaHistoryEntry struct {
	RunID       string        `json:"run_id"`
	StartedAt   time.Time     `json:"started_at"`
	Outcome     model.Outcome `json:"outcome"`
	FailedStep  string        `json:"failed_step,omitempty"`
	Error       string        `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
	Revision    int           `json:"revision"`
	ModelID     int           `json:"model_id"`
	Simulations int           `json:"simulations"`
}

// Open opens or creates the history database in dbDir and applies
// pending migrations.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	mode := "rw"
	if opts.CreateIfNotExists {
		mode = "rwc"
	}
	dsn := "file:" + filepath.ToSlash(dbPath) + "?mode=" + mode + "&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &HistoryDB{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// SchemaVersion returns the applied migration version.
func (h *HistoryDB) SchemaVersion(ctx context.Context) (uint, error) {
	var version uint
	var dirty bool
	err := h.db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// SaveRun stores a finished run with its sub-areas and simulations in one
// transaction.
func (h *HistoryDB) SaveRun(ctx context.Context, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to serialize run summary: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (run_id, repository_slug, started_at, finished_at, succeeded, failed, cancelled, summary_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		summary.RunID,
		summary.RepositorySlug,
		formatTimestamp(summary.StartedAt),
		formatTimestamp(summary.FinishedAt),
		summary.Succeeded,
		summary.Failed,
		summary.Cancelled,
		string(summaryJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	for i, r := range summary.SubAreas {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO subarea_results (run_id, position, name, outcome, failed_step, error, revision, model_id, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			summary.RunID, i, r.Name, r.Outcome.String(), r.FailedStep, r.ErrorMessage,
			r.Revision, r.ModelID, formatTimestamp(r.StartedAt), formatTimestamp(r.FinishedAt),
		)
		if err != nil {
			return fmt.Errorf("failed to save sub-area %s: %w", r.Name, err)
		}

		for _, sim := range r.Simulations {
			_, err := tx.ExecContext(ctx, `
			INSERT INTO simulations (run_id, subarea, name, simulation_id, model_id, status, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			`,
				summary.RunID, r.Name, sim.Name, sim.SimulationID, sim.ModelID, sim.Status, sim.ErrorMessage,
			)
			if err != nil {
				return fmt.Errorf("failed to save simulation %s: %w", sim.Name, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns all runs.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunMetadata, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := h.db.QueryContext(ctx, `
	SELECT run_id, repository_slug, started_at, finished_at, succeeded, failed, cancelled
	FROM runs
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var startedAt string
		var finishedAt sql.NullString

		if err := rows.Scan(&meta.RunID, &meta.RepositorySlug, &startedAt, &finishedAt,
			&meta.Succeeded, &meta.Failed, &meta.Cancelled); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		meta.StartedAt = parseTimestamp(startedAt)
		if finishedAt.Valid {
			meta.FinishedAt = parseTimestamp(finishedAt.String)
		}
		runs = append(runs, meta)
	}

	return runs, rows.Err()
}

// GetRun returns the stored summary of the run whose id is runID or starts
// with runID.
func (h *HistoryDB) GetRun(ctx context.Context, runID string) (*model.RunSummary, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT summary_json FROM runs
	WHERE substr(run_id, 1, length(?)) = ?
	ORDER BY run_id = ? DESC
	LIMIT 2
	`, runID, runID, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var summaryJSON string
		if err := rows.Scan(&summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		matches = append(matches, summaryJSON)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	case len(matches) > 1 && !h.exactRun(ctx, runID):
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRunID, runID)
	}

	var summary model.RunSummary
	if err := json.Unmarshal([]byte(matches[0]), &summary); err != nil {
		return nil, fmt.Errorf("failed to parse run summary: %w", err)
	}
	return &summary, nil
}

// exactRun reports whether a run with exactly runID exists.
func (h *HistoryDB) exactRun(ctx context.Context, runID string) bool {
	var n int
	err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE run_id = ?`, runID).Scan(&n)
	return err == nil && n > 0
}

// GetSubAreaHistory returns the outcomes of a sub-area over all runs,
// most recent first.
func (h *HistoryDB) GetSubAreaHistory(ctx context.Context, name string) ([]SubAreaHistoryEntry, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT s.run_id, r.started_at, s.outcome, COALESCE(s.failed_step, ''), COALESCE(s.error, ''),
		COALESCE(s.revision, 0), COALESCE(s.model_id, 0),
		(SELECT COUNT(*) FROM simulations sim WHERE sim.run_id = s.run_id AND sim.subarea = s.name)
	FROM subarea_results s
	JOIN runs r ON r.run_id = s.run_id
	WHERE s.name = ?
	ORDER BY r.started_at DESC, s.id DESC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get sub-area history: %w", err)
	}
	defer rows.Close()

	var entries []SubAreaHistoryEntry
	for rows.Next() {
		var e SubAreaHistoryEntry
		var startedAt, outcome string
		if err := rows.Scan(&e.RunID, &startedAt, &outcome, &e.FailedStep, &e.Error,
			&e.Revision, &e.ModelID, &e.Simulations); err != nil {
			return nil, fmt.Errorf("failed to scan sub-area history: %w", err)
		}
		e.StartedAt = parseTimestamp(startedAt)
		e.Outcome = model.ParseOutcome(outcome)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// timestampLayout is the fixed-width storage layout, so that text order
// matches time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// formatTimestamp formats t for storage. Zero times are stored as NULL.
func formatTimestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timestampLayout)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
