// internal/adapters/archive/local.go
package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore implementa BlobStore sobre el sistema de ficheros.
type LocalStore struct {
	Root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root}
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte) error {
	p := filepath.Join(s.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	// escritura atómica: tmp + rename
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return os.Rename(tmp, p)
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(key)))
}

// List devuelve claves con separador "/" independientemente del SO.
func (s *LocalStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	root := filepath.Join(s.Root, filepath.FromSlash(prefix))

	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || filepath.Ext(p) == ".tmp" {
			return nil
		}
		rel, err := filepath.Rel(s.Root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	return keys, err
}
