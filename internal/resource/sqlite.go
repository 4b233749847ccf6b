package resource

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"loadseq/internal/loader"
)

// SQLiteTables opens a database read-only and counts the rows of every user
// table, reporting one step per table.
type SQLiteTables struct {
	Path string

	mu     sync.Mutex
	loaded bool
	counts map[string]int64
	tables []string
}

// NewSQLiteTables creates a loadable for the database at path.
func NewSQLiteTables(path string) *SQLiteTables {
	return &SQLiteTables{Path: strings.TrimSpace(path)}
}

// buildReadOnlyDSN creates a read-only DSN for the given path.
func buildReadOnlyDSN(dbPath string) string {
	u := url.URL{
		Scheme: "file",
		Path:   filepath.ToSlash(dbPath),
	}
	q := url.Values{}
	q.Set("mode", "ro")
	q.Set("_pragma", "busy_timeout(3000)")
	u.RawQuery = q.Encode()
	return u.String()
}

func (s *SQLiteTables) openDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", buildReadOnlyDSN(s.Path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

// IsLoaded reports whether the last LoadResources call succeeded.
func (s *SQLiteTables) IsLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// LoadResources implements loader.Loadable.
func (s *SQLiteTables) LoadResources(ctx context.Context, onProgress loader.ProgressFunc[string]) error {
	s.mu.Lock()
	s.loaded = false
	s.mu.Unlock()

	db, err := s.openDB(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = db.Close()
	}()

	tables, err := listTables(ctx, db)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		onProgress.Report(1, "no tables")
		s.store(tables, map[string]int64{})
		return nil
	}

	counts := make(map[string]int64, len(tables))
	for i, table := range tables {
		onProgress.Report(float64(i)/float64(len(tables)), table)
		var n int64
		query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, quoteIdent(table))
		if err := db.QueryRowContext(ctx, query).Scan(&n); err != nil {
			return fmt.Errorf("count %s: %w", table, err)
		}
		counts[table] = n
	}
	onProgress.Report(1, tables[len(tables)-1])

	s.store(tables, counts)
	return nil
}

func listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *SQLiteTables) store(tables []string, counts map[string]int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = tables
	s.counts = counts
	s.loaded = true
}

// Tables returns the table names in alphabetical order.
func (s *SQLiteTables) Tables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tables...)
}

// Counts returns row counts by table.
func (s *SQLiteTables) Counts() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
