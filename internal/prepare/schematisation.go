package prepare

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/threedibatch/internal/model"
)

// settingsColumns maps raster kinds to the schematisation column that
// references them.
var settingsColumns = map[string]struct {
	table  string
	column string
}{
	KindDEM:          {"v2_global_settings", "dem_file"},
	KindFriction:     {"v2_global_settings", "frict_coef_file"},
	KindInfiltration: {"v2_simple_infiltration", "infiltration_rate_file"},
}

// updateSchematisation points the raster references of the schematisation
// at the staged files. Paths are stored relative to the SQLite file with
// forward slashes.
func (s *Stager) updateSchematisation(ctx context.Context, files []model.PreparedFile) error {
	dbPath := filepath.Join(s.repoDir, s.schematisation)
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("schematisation not found: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(dbPath)+"?mode=rw")
	if err != nil {
		return fmt.Errorf("failed to open schematisation: %w", err)
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, f := range files {
		col, ok := settingsColumns[f.Kind]
		if !ok {
			continue
		}

		rel, err := filepath.Rel(filepath.Dir(dbPath), filepath.Join(s.repoDir, filepath.FromSlash(f.Target)))
		if err != nil {
			return fmt.Errorf("failed to resolve %s path: %w", f.Kind, err)
		}
		rel = filepath.ToSlash(rel)

		// table and column names come from settingsColumns, not from input
		query := fmt.Sprintf("UPDATE %s SET %s = ?", col.table, col.column) //nolint:gosec // constant identifiers
		res, err := tx.ExecContext(ctx, query, rel)
		if err != nil {
			return fmt.Errorf("failed to update %s.%s: %w", col.table, col.column, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 && col.table == "v2_global_settings" {
			return fmt.Errorf("%w: %s", ErrNoSettingsRow, dbPath)
		}

		s.logger.Debug("schematisation updated", "table", col.table, "column", col.column, "value", rel)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schematisation update: %w", err)
	}
	return nil
}
