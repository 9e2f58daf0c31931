package media

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nafee3/nafee3/internal/apperr"
	"github.com/nafee3/nafee3/internal/logging"
)

// DiskStore writes photos below a directory served as static files.
type DiskStore struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

// NewDiskStore stores files in dir and builds URLs under baseURL.
func NewDiskStore(dir, baseURL string, logger *slog.Logger) *DiskStore {
	return &DiskStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), logger: logging.OrDiscard(logger)}
}

func (s *DiskStore) Put(_ context.Context, kind Kind, data []byte) (string, error) {
	ct, err := ValidatePhoto(data)
	if err != nil {
		return "", err
	}
	key := Key(kind, ct)
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apperr.Wrap(err, apperr.KindInternal, "prepare media directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", apperr.Wrap(err, apperr.KindInternal, "write media")
	}
	s.logger.Info("media stored", "key", key, "bytes", len(data))
	return s.baseURL + "/" + key, nil
}
