// Package uploads stores diagnosed images on disk and hands out the
// reference under which the API serves them.
package uploads

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agrilens/agrilens/control-plane/internal/gateway"
	"github.com/rs/zerolog/log"
)

// URLPrefix is the route the stored files are served from.
const URLPrefix = "/uploads/"

// ErrNotImage is returned when the payload does not sniff as an image.
var ErrNotImage = errors.New("payload is not an image")

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Store writes images under a single directory.
type Store struct {
	dir string
}

// New creates the upload directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory files are written to.
func (s *Store) Dir() string { return s.dir }

// Save writes img as {id}{ext} and returns "/uploads/{id}{ext}". The content
// type is sniffed from the bytes; the declared type is not trusted.
func (s *Store) Save(id string, img gateway.Image) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\.`) {
		return "", fmt.Errorf("invalid upload id %q", id)
	}
	ctype := http.DetectContentType(img.Data)
	ext, ok := extensions[ctype]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotImage, ctype)
	}

	name := id + ext
	path := filepath.Join(s.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, img.Data, 0644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("rename upload: %w", err)
	}

	log.Debug().Str("file", name).Int("bytes", len(img.Data)).Msg("Upload stored")
	return URLPrefix + name, nil
}

// Remove deletes the file behind ref. Unknown or foreign references are
// ignored.
func (s *Store) Remove(ref string) error {
	name, ok := strings.CutPrefix(ref, URLPrefix)
	if !ok || name == "" || strings.ContainsAny(name, `/\`) {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, name))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove upload: %w", err)
	}
	return nil
}

// Prune removes stored files whose reference is not in keep and whose
// modification time is before olderThan. It returns how many were removed.
func (s *Store) Prune(keep map[string]struct{}, olderThan time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read upload dir: %w", err)
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := keep[URLPrefix+e.Name()]; ok {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(olderThan) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}
