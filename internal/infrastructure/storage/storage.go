package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/config"
)

// New returns the Storage selected by cfg.Driver
func New(ctx context.Context, cfg config.StorageConfig) (domain.Storage, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStorage(cfg.LocalDir, cfg.PublicURL)
	case "minio":
		return NewMinioStorage(ctx, cfg.Minio, cfg.PublicURL)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// objectName builds <prefix>/<yyyy>/<mm>/<uuid><ext> so uploads never collide
func objectName(prefix, fileName string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return path.Join(
		strings.Trim(prefix, "/"),
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		uuid.New().String()+ext,
	)
}
