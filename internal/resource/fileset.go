// Package resource holds concrete loadables that plans can reference.
package resource

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"loadseq/internal/loader"
)

const defaultFileSetWorkers = 4

// FileSet reads and hashes every file under Root matching Pattern. Files are
// processed in parallel; progress reports are serialized and count finished
// files.
type FileSet struct {
	Root    string
	Pattern string
	Workers int

	mu     sync.Mutex
	loaded bool
	files  []string
	sums   map[string][]byte
	bytes  int64
}

// NewFileSet creates a FileSet for pattern relative to root.
func NewFileSet(root, pattern string) *FileSet {
	return &FileSet{Root: root, Pattern: pattern, Workers: defaultFileSetWorkers}
}

// IsLoaded reports whether the last LoadResources call succeeded.
func (f *FileSet) IsLoaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

// LoadResources implements loader.Loadable.
func (f *FileSet) LoadResources(ctx context.Context, onProgress loader.ProgressFunc[string]) error {
	f.mu.Lock()
	f.loaded = false
	f.mu.Unlock()

	files, err := f.match()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		onProgress.Report(1, "no files")
		f.store(files, map[string][]byte{}, 0)
		return nil
	}

	workers := f.Workers
	if workers <= 0 {
		workers = defaultFileSetWorkers
	}

	var (
		reportMu sync.Mutex
		done     int
		total    int64
		sums     = make(map[string][]byte, len(files))
	)
	onProgress.Report(0, files[0])

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, rel := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sum, n, err := hashFile(filepath.Join(f.Root, filepath.FromSlash(rel)))
			if err != nil {
				return fmt.Errorf("read %s: %w", rel, err)
			}

			reportMu.Lock()
			defer reportMu.Unlock()
			sums[rel] = sum
			total += n
			done++
			onProgress.Report(float64(done)/float64(len(files)), rel)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.store(files, sums, total)
	return nil
}

func (f *FileSet) match() ([]string, error) {
	info, err := os.Stat(f.Root)
	if err != nil {
		return nil, fmt.Errorf("file set root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("file set root %s is not a directory", f.Root)
	}

	fsys := os.DirFS(f.Root)
	matches, err := doublestar.Glob(fsys, f.Pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", f.Pattern, err)
	}

	files := make([]string, 0, len(matches))
	for _, match := range matches {
		st, statErr := fs.Stat(fsys, match)
		if statErr != nil || st.IsDir() {
			continue
		}
		files = append(files, match)
	}
	sort.Strings(files)
	return files, nil
}

func (f *FileSet) store(files []string, sums map[string][]byte, total int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = files
	f.sums = sums
	f.bytes = total
	f.loaded = true
}

// Files returns the matched paths, relative to Root, in sorted order.
func (f *FileSet) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.files...)
}

// Bytes returns the total size read.
func (f *FileSet) Bytes() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bytes
}

// Digest returns a sha256 over every path and content hash, in path order.
// It is empty until the set has loaded.
func (f *FileSet) Digest() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return ""
	}
	h := sha256.New()
	for _, rel := range f.files {
		_, _ = io.WriteString(h, rel)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(f.sums[rel])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func hashFile(path string) ([]byte, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = file.Close()
	}()

	h := sha256.New()
	n, err := io.Copy(h, file)
	if err != nil {
		return nil, 0, err
	}
	return h.Sum(nil), n, nil
}
