// Package uploads manages the directory of uploaded images. Files are written
// once under a request-unique name and removed by age.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	FieldName = "xrayImage"
	tmpPrefix = ".tmp-"
)

var (
	allowedExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".dcm": true, ".dicom": true,
	}
	allowedTypes = regexp.MustCompile(`jpeg|jpg|png|dcm|dicom`)
)

// IsAllowedImage reports whether both the file extension and the declared
// content type name an accepted image format.
func IsAllowedImage(fileName, contentType string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedExtensions[ext] {
		return false
	}
	return allowedTypes.MatchString(contentType) || contentType == "application/dicom"
}

type Store struct {
	dir string
	log *logrus.Logger
}

func NewStore(dir string, log *logrus.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &Store{dir: dir, log: log}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Save writes data under a new unique name and returns that name. The file
// appears in the directory only once fully written.
func (s *Store) Save(originalName string, data []byte) (string, error) {
	name := FieldName + "-" + uuid.NewString() + strings.ToLower(filepath.Ext(originalName))

	tmp, err := os.CreateTemp(s.dir, tmpPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to write upload file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to close upload file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("failed to store upload file: %w", err)
	}
	return name, nil
}

// Remove deletes a stored file. Removing a missing file is not an error.
func (s *Store) Remove(name string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove upload %s: %w", name, err)
	}
	return nil
}

// Cleanup deletes every file modified before now-olderThan and returns how
// many were deleted.
func (s *Store) Cleanup(olderThan time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read uploads directory: %w", err)
	}

	cutoff := now.Add(-olderThan)
	deleted := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed concurrently
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.WithError(err).WithField("file", e.Name()).Warn("Failed to delete old upload")
			continue
		}
		deleted++
	}
	return deleted, nil
}

// CountImages counts stored files with an accepted image extension.
func (s *Store) CountImages() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read uploads directory: %w", err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), tmpPrefix) {
			continue
		}
		if allowedExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			n++
		}
	}
	return n, nil
}

// FileServer serves stored images by name. Directories and files that are
// still being written answer 404.
func (s *Store) FileServer() http.Handler {
	files := http.FileServer(http.Dir(s.dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean("/" + r.URL.Path)
		if name == "/" || strings.HasSuffix(r.URL.Path, "/") || strings.HasPrefix(path.Base(name), tmpPrefix) {
			http.NotFound(w, r)
			return
		}
		info, err := os.Stat(filepath.Join(s.dir, filepath.FromSlash(name)))
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// RunJanitor runs Cleanup every interval until ctx is done.
func (s *Store) RunJanitor(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := s.Cleanup(retention, now)
			if err != nil {
				s.log.WithError(err).Error("Upload cleanup failed")
				continue
			}
			if n > 0 {
				s.log.WithField("deleted", n).Info("Old uploads removed")
			}
		}
	}
}
