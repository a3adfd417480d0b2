// Package filestore keeps downloaded document files on the local
// filesystem, grouped per source.
package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the document file store.
type Config struct {
	// BaseDir is the root directory where document files are stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store writes and resolves document files under a base directory.
type Store struct {
	baseDir string
}

// New creates a filesystem-backed document store rooted at cfg.BaseDir.
// The directory is created when missing and probed for writability.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("failed to remove probe file: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir}, nil
}

// BaseDir returns the root directory of the store.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Path returns the location a document file for the given source and
// filename lives at, without checking whether it exists.
func (s *Store) Path(sourceID, filename string) string {
	return filepath.Join(s.baseDir, sourceID, filename)
}

// Exists reports whether a regular file exists at the given path.
func (s *Store) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Save writes a document file for the given source and returns its path.
// The resolved path must stay inside the base directory.
func (s *Store) Save(sourceID, filename string, data []byte) (string, error) {
	if strings.TrimSpace(sourceID) == "" {
		return "", fmt.Errorf("source id is required")
	}
	if strings.TrimSpace(filename) == "" {
		return "", fmt.Errorf("filename is required")
	}

	fullPath := filepath.Clean(s.Path(sourceID, filename))
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(fullPath, cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes base directory")
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("failed to create source directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write document file: %w", err)
	}
	return fullPath, nil
}
