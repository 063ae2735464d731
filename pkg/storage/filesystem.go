package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage persists submission files on disk under a base directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// SaveStream copies from reader into the target file path and reports bytes written.
func (s *LocalStorage) SaveStream(filename string, r io.Reader) (int64, error) {
	path := s.resolve(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("prepare upload directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create upload file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	n, err := io.Copy(file, r)
	if err != nil {
		return 0, fmt.Errorf("write upload stream: %w", err)
	}
	return n, nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalStorage) Open(filename string) (*os.File, error) {
	path := s.resolve(filename)
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(filename string) error {
	path := s.resolve(filename)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload file: %w", err)
	}
	return nil
}

func (s *LocalStorage) resolve(filename string) string {
	cleaned := filepath.Clean("/" + filename)
	return filepath.Join(s.baseDir, cleaned)
}
