package storage

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// DiskStore saves uploaded certificate files under a single directory,
// giving each file a unique timestamp-prefixed name so originals with the
// same name never collide.
type DiskStore struct {
	dir    string
	logger *zap.Logger
	now    func() time.Time
}

// NewDiskStore creates the uploads directory if needed and returns a store
func NewDiskStore(dir string, logger *zap.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &DiskStore{
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Dir returns the directory files are stored under
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save writes the uploaded content to disk and returns the stored filename
func (s *DiskStore) Save(originalName string, content io.Reader) (string, error) {
	filename := s.uniqueName(originalName)
	path := filepath.Join(s.dir, filename)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	written, err := io.Copy(f, content)
	if err != nil {
		// Best effort cleanup of the partial file
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("file stored",
		zap.String("filename", filename),
		zap.Int64("bytes", written))

	return filename, nil
}

// Remove deletes a stored file by name. A missing file is not an error:
// delete must stay idempotent.
func (s *DiskStore) Remove(filename string) error {
	if filename == "" {
		return nil
	}
	// Reject anything that escapes the uploads directory
	base := filepath.Base(filename)
	if base != filename {
		return fmt.Errorf("invalid filename: %s", filename)
	}

	err := os.Remove(filepath.Join(s.dir, base))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// uniqueName builds a collision-resistant filename preserving the original
// base name and extension
func (s *DiskStore) uniqueName(originalName string) string {
	base := filepath.Base(originalName)
	return fmt.Sprintf("%d-%d-%s", s.now().UnixMilli(), rand.Int63n(1e9), base)
}
