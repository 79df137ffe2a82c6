// internal/adapters/archive/open.go
package archive

import (
	"context"

	"baykus/internal/platform/config"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/logx"
)

// Open construye el archiver del backend configurado. Con backend "none"
// devuelve nil sin error.
func Open(ctx context.Context, cfg config.Archive, logger logx.Logger) (*Archiver, error) {
	switch cfg.Backend {
	case "", "none":
		return nil, nil
	case "local":
		return NewArchiver(NewLocalStore(cfg.Dir), cfg.Prefix, logger), nil
	case "s3":
		store, err := NewS3StoreFromEnv(ctx, cfg.Bucket, cfg.Region)
		if err != nil {
			return nil, err
		}
		return NewArchiver(store, cfg.Prefix, logger), nil
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown archive backend %q", cfg.Backend)
	}
}
