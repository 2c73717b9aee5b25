// Package files lists and serves artifacts from the completed-downloads
// directory. Files are not modeled beyond filesystem metadata; listings are
// computed on demand.
package files

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrInvalidName  = errors.New("invalid file name")
	ErrFileNotFound = errors.New("file not found")
)

// File describes one completed download.
type File struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Service provides access to the completed-downloads directory.
type Service struct {
	dir       string
	maxListed int
	logger    zerolog.Logger
}

// NewService creates a completed-files service rooted at dir. maxListed
// caps List results; <= 0 means unlimited.
func NewService(dir string, maxListed int, logger zerolog.Logger) *Service {
	return &Service{
		dir:       dir,
		maxListed: maxListed,
		logger:    logger.With().Str("component", "files").Logger(),
	}
}

// Dir returns the completed-downloads directory.
func (s *Service) Dir() string {
	return s.dir
}

// EnsureDir creates the downloads directory if it does not exist.
func (s *Service) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create downloads directory: %w", err)
	}
	return nil
}

// List returns completed files sorted most-recent-first, capped at the
// configured maximum. Hidden files and subdirectories are skipped.
func (s *Service) List() ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []File{}, nil
		}
		return nil, fmt.Errorf("read downloads directory: %w", err)
	}

	files := make([]File, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, File{
			Filename: entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Modified.After(files[j].Modified)
	})

	if s.maxListed > 0 && len(files) > s.maxListed {
		files = files[:s.maxListed]
	}
	return files, nil
}

// Resolve maps a client-supplied name to a path inside the downloads
// directory. Anything that is not a bare file name in the directory is
// rejected, which closes path traversal.
func (s *Service) Resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." {
		return "", ErrInvalidName
	}
	if strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", ErrInvalidName
	}

	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrFileNotFound
		}
		return "", fmt.Errorf("stat %s: %w", name, err)
	}
	if info.IsDir() {
		return "", ErrInvalidName
	}
	return path, nil
}
