package datasource

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// ObjectStore abstracts object storage operations.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Upload copies localPath from fs to key.
func Upload(ctx context.Context, store ObjectStore, fs afero.Fs, localPath, key string) error {
	b, err := afero.ReadFile(fs, localPath)
	if err != nil {
		return fmt.Errorf("upload %s: %w", localPath, err)
	}
	if err := store.Put(ctx, key, b); err != nil {
		return fmt.Errorf("upload %s: %w", localPath, err)
	}
	return nil
}

// Download fetches key into localPath on fs, creating parent directories.
func Download(ctx context.Context, store ObjectStore, fs afero.Fs, key, localPath string) error {
	b, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	if err := fs.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	if err := afero.WriteFile(fs, localPath, b, 0o644); err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	return nil
}
