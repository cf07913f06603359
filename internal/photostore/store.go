// internal/photostore/store.go
package photostore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	subdir = "chewcheck"
	prefix = "chewcheck_"

	// DefaultRetention is how long scanned photos are kept.
	DefaultRetention = 7 * 24 * time.Hour
)

// Store keeps scanned images on local disk under dir/chewcheck.
type Store struct {
	dir string
	now func() time.Time
}

func New(dir string) (*Store, error) {
	root := filepath.Join(dir, subdir)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photo directory: %w", err)
	}
	return &Store{dir: root, now: time.Now}, nil
}

func (s *Store) Dir() string { return s.dir }

// Save writes the image and returns its path. Names carry the user and the
// save time so concurrent users never collide.
func (s *Store) Save(userID string, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}
	if userID == "" {
		userID = "anonymous"
	}
	name := fmt.Sprintf("%s%s_%d.jpg", prefix, sanitize(userID), s.now().UnixNano())
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return "", fmt.Errorf("failed to write photo: %w", err)
	}
	return path, nil
}

// Cleanup removes photos last modified more than olderThan ago and returns
// how many were deleted.
func (s *Store) Cleanup(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to list photos: %w", err)
	}

	cutoff := s.now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
				return removed, fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
			}
			removed++
		}
	}
	return removed, nil
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '-'
	}, id)
}
