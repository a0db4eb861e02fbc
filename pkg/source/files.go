package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmylchreest/labpool/pkg/pool"
)

// htmlExtensions are picked up when a directory is given.
var htmlExtensions = map[string]bool{".html": true, ".htm": true, ".xhtml": true}

// Files pools local HTML files. Each file becomes one document; its header is the
// file name without extension.
type Files struct {
	paths []string
}

// NewFiles creates a file source. Each path may be a file, a directory (its HTML
// files are listed in name order) or a glob pattern.
func NewFiles(paths ...string) *Files {
	return &Files{paths: paths}
}

// List expands paths into documents, preserving argument order.
func (s *Files) List(_ context.Context) ([]pool.Document, error) {
	var docs []pool.Document
	seen := make(map[string]bool)

	add := func(path string) {
		if seen[path] {
			return
		}
		seen[path] = true
		base := filepath.Base(path)
		docs = append(docs, pool.Document{
			ID:     path,
			Header: strings.TrimSuffix(base, filepath.Ext(base)),
		})
	}

	for _, p := range s.paths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			files, err := htmlFilesIn(p)
			if err != nil {
				return nil, err
			}
			for _, f := range files {
				add(f)
			}
			continue
		}

		if strings.ContainsAny(p, "*?[") {
			matches, err := filepath.Glob(p)
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
			}
			sort.Strings(matches)
			for _, m := range matches {
				add(m)
			}
			continue
		}

		// Missing files surface later as retrieval failures.
		add(p)
	}

	return docs, nil
}

func htmlFilesIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !htmlExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	return files, nil
}

// Retrieve reads the file at id.
func (s *Files) Retrieve(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(id) //#nosec G304 -- CLI tool reads user-specified files
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Name returns the source type.
func (s *Files) Name() string {
	return "files"
}

// Close releases resources.
func (s *Files) Close() error {
	return nil
}
