// internal/adapters/archive/blob.go
package archive

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"strings"

	"baykus/internal/core/domain"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/logx"
)

// BlobStore es el backend de almacenamiento de objetos del archivo.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// Archiver guarda cada ConnectorResult crudo como JSON para auditoría.
// Implementa ports.ResultArchive.
type Archiver struct {
	store  BlobStore
	prefix string
	logger logx.Logger
}

// NewArchiver crea un archiver sobre store. Las claves cuelgan de prefix.
func NewArchiver(store BlobStore, prefix string, logger logx.Logger) *Archiver {
	if logger == nil {
		logger = logx.Discard()
	}
	return &Archiver{store: store, prefix: strings.Trim(prefix, "/"), logger: logger.With("component", "archive")}
}

// Key devuelve la clave del resultado: <prefix>/<target>/<run>/<connector>-<id>.json.
func (a *Archiver) Key(res *domain.ConnectorResult) string {
	run := res.RunID
	if run == "" {
		run = "adhoc"
	}
	return path.Join(a.prefix, res.TargetID, run, res.Connector+"-"+res.ID+".json")
}

// Archive serializa y sube el resultado.
func (a *Archiver) Archive(ctx context.Context, res *domain.ConnectorResult) error {
	if res == nil {
		return errors.Wrap(errors.ErrInvalidInput, "nil result")
	}
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "encode result %s", res.ID)
	}
	key := a.Key(res)
	if err := a.store.Put(ctx, key, data); err != nil {
		return errors.Wrapf(err, "archive %s", key)
	}
	a.logger.Debug("result archived", "key", key, "bytes", len(data))
	return nil
}

// Load lee un resultado archivado.
func (a *Archiver) Load(ctx context.Context, key string) (*domain.ConnectorResult, error) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", key)
	}
	var res domain.ConnectorResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, errors.Wrapf(errors.Join(errors.ErrNormalization, err), "decode %s", key)
	}
	return &res, nil
}

// List devuelve las claves archivadas de un target, ordenadas.
func (a *Archiver) List(ctx context.Context, targetID string) ([]string, error) {
	keys, err := a.store.List(ctx, path.Join(a.prefix, targetID))
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", targetID)
	}
	sort.Strings(keys)
	return keys, nil
}
