package resource

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"loadseq/internal/loader"
)

type report struct {
	fraction float64
	status   string
}

func recordReports(out *[]report) loader.ProgressFunc[string] {
	return func(fraction float64, status string) {
		*out = append(*out, report{fraction: fraction, status: status})
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFileSetLoadsMatchingFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.yaml", "a")
	writeFile(t, root, "nested/b.yaml", "bb")
	writeFile(t, root, "nested/deeper/c.yaml", "ccc")
	writeFile(t, root, "skip.txt", "nope")

	fs := NewFileSet(root, "**/*.yaml")
	fs.Workers = 2
	require.False(t, fs.IsLoaded())

	var reports []report
	require.NoError(t, fs.LoadResources(context.Background(), recordReports(&reports)))

	require.True(t, fs.IsLoaded())
	require.Equal(t, []string{"a.yaml", "nested/b.yaml", "nested/deeper/c.yaml"}, fs.Files())
	require.Equal(t, int64(6), fs.Bytes())
	require.Len(t, fs.Digest(), 64)

	require.Len(t, reports, 4)
	require.Equal(t, 0.0, reports[0].fraction)
	for i := 1; i < len(reports); i++ {
		require.Greater(t, reports[i].fraction, reports[i-1].fraction)
	}
	require.Equal(t, 1.0, reports[len(reports)-1].fraction)
}

func TestFileSetDigestIsStable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "x.txt", "one")
	writeFile(t, root, "y.txt", "two")

	first := NewFileSet(root, "*.txt")
	require.NoError(t, first.LoadResources(context.Background(), nil))
	second := NewFileSet(root, "*.txt")
	require.NoError(t, second.LoadResources(context.Background(), nil))
	require.Equal(t, first.Digest(), second.Digest())

	writeFile(t, root, "y.txt", "changed")
	third := NewFileSet(root, "*.txt")
	require.NoError(t, third.LoadResources(context.Background(), nil))
	require.NotEqual(t, first.Digest(), third.Digest())
}

func TestFileSetNoMatches(t *testing.T) {
	fs := NewFileSet(t.TempDir(), "**/*.go")
	var reports []report
	require.NoError(t, fs.LoadResources(context.Background(), recordReports(&reports)))
	require.Equal(t, []report{{fraction: 1, status: "no files"}}, reports)
	require.True(t, fs.IsLoaded())
}

func TestFileSetMissingRoot(t *testing.T) {
	fs := NewFileSet(filepath.Join(t.TempDir(), "missing"), "*")
	require.Error(t, fs.LoadResources(context.Background(), nil))
	require.False(t, fs.IsLoaded())
	require.Empty(t, fs.Digest())
}

func TestFileSetCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fs := NewFileSet(root, "*.txt")
	require.ErrorIs(t, fs.LoadResources(ctx, nil), context.Canceled)
	require.False(t, fs.IsLoaded())
}

func testDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()
	stmts := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE "order items" (id INTEGER PRIMARY KEY)`,
		`INSERT INTO users (name) VALUES ('ada'), ('grace'), ('linus')`,
		`INSERT INTO "order items" DEFAULT VALUES`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	return path
}

func TestSQLiteTablesCountsRows(t *testing.T) {
	tables := NewSQLiteTables(testDB(t))

	var reports []report
	require.NoError(t, tables.LoadResources(context.Background(), recordReports(&reports)))

	require.True(t, tables.IsLoaded())
	require.Equal(t, []string{"order items", "users"}, tables.Tables())
	require.Equal(t, map[string]int64{"order items": 1, "users": 3}, tables.Counts())
	require.Equal(t, []report{
		{fraction: 0, status: "order items"},
		{fraction: 0.5, status: "users"},
		{fraction: 1, status: "users"},
	}, reports)
}

func TestSQLiteTablesEmptyDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`PRAGMA user_version = 1`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	tables := NewSQLiteTables(path)
	var reports []report
	require.NoError(t, tables.LoadResources(context.Background(), recordReports(&reports)))
	require.Equal(t, []report{{fraction: 1, status: "no tables"}}, reports)
	require.Empty(t, tables.Counts())
}

func TestSQLiteTablesMissingDatabase(t *testing.T) {
	tables := NewSQLiteTables(filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, tables.LoadResources(context.Background(), nil))
	require.False(t, tables.IsLoaded())
}

func TestBuildReadOnlyDSN(t *testing.T) {
	dsn := buildReadOnlyDSN("/tmp/data.db")
	require.Contains(t, dsn, "file://")
	require.Contains(t, dsn, "mode=ro")
}
