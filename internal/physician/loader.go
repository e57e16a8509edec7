package physician

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/linnemanlabs/go-core/log"
	_ "github.com/marcboeker/go-duckdb"
)

// Loader reads physician directories from CSV, Parquet or JSON files through
// an in-process DuckDB connection.
type Loader struct {
	db     *sql.DB
	logger log.Logger
}

// NewLoader opens an in-memory DuckDB database. Close releases it.
func NewLoader(logger log.Logger) (*Loader, error) {
	if logger == nil {
		logger = log.Nop()
	}
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return &Loader{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (l *Loader) Close() error {
	return l.db.Close()
}

// LoadFile reads the file at path into a Directory. The table function is
// chosen by extension (.csv, .parquet, .json/.jsonl/.ndjson). Columns are
// physician_id, name, specialty, availability_mask and workload_score; every
// value is read as text so malformed masks or scores coerce instead of failing.
func (l *Loader) LoadFile(ctx context.Context, path string) (*Directory, error) {
	source, err := tableFunc(path)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT
			COALESCE(CAST(physician_id AS VARCHAR), '') AS physician_id,
			COALESCE(CAST(name AS VARCHAR), '') AS name,
			COALESCE(CAST(specialty AS VARCHAR), '') AS specialty,
			COALESCE(CAST(availability_mask AS VARCHAR), '') AS availability_mask,
			COALESCE(CAST(workload_score AS VARCHAR), '') AS workload_score
		FROM %s
	`, source)

	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query physician directory %s: %w", path, err)
	}
	defer rows.Close()

	var ps []Physician
	for rows.Next() {
		var id, name, specialty, mask, workload string
		if err := rows.Scan(&id, &name, &specialty, &mask, &workload); err != nil {
			return nil, fmt.Errorf("scan physician row: %w", err)
		}
		ps = append(ps, Physician{
			ID:            id,
			Name:          name,
			Specialty:     specialty,
			Availability:  ParseMask(mask),
			WorkloadScore: l.parseWorkload(ctx, id, workload),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate physician rows: %w", err)
	}
	if len(ps) == 0 {
		return nil, fmt.Errorf("physician directory %s has no rows", path)
	}

	l.logger.Info(ctx, "physician directory loaded", "path", path, "physicians", len(ps))
	return NewDirectory(ps), nil
}

// parseWorkload maps unparseable scores to +Inf so the physician sorts last.
func (l *Loader) parseWorkload(ctx context.Context, id, s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) {
		l.logger.Warn(ctx, "invalid workload score, treating as unavailable capacity",
			"physician_id", id,
			"workload_score", s,
		)
		return math.Inf(1)
	}
	return f
}

func tableFunc(path string) (string, error) {
	lit := "'" + strings.ReplaceAll(path, "'", "''") + "'"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return "read_csv(" + lit + ", header = true, all_varchar = true)", nil
	case ".parquet":
		return "read_parquet(" + lit + ")", nil
	case ".json":
		return "read_json(" + lit + ", format = 'auto')", nil
	case ".jsonl", ".ndjson":
		return "read_json(" + lit + ", format = 'newline_delimited')", nil
	default:
		return "", fmt.Errorf("unsupported physician directory format %q", filepath.Ext(path))
	}
}
