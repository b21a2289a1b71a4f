package datasource

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// Cache stores table snapshots as df_<name>.json under a directory.
type Cache struct {
	fs  afero.Fs
	dir string
}

func NewCache(fs afero.Fs, dir string) *Cache {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Cache{fs: fs, dir: dir}
}

func (c *Cache) path(name string) string {
	return filepath.Join(c.dir, "df_"+name+".json")
}

// Save writes t under name. When a snapshot already exists and overwrite
// is false the stored snapshot is returned and t is discarded.
func (c *Cache) Save(name string, t Table, overwrite bool) (Table, error) {
	p := c.path(name)
	if !overwrite {
		if ok, _ := afero.Exists(c.fs, p); ok {
			return c.Load(name)
		}
	}
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return Table{}, fmt.Errorf("cache dir: %w", err)
	}
	b, err := json.Marshal(t)
	if err != nil {
		return Table{}, err
	}
	tmp := p + ".tmp"
	if err := afero.WriteFile(c.fs, tmp, b, 0o644); err != nil {
		return Table{}, fmt.Errorf("write snapshot: %w", err)
	}
	if err := c.fs.Rename(tmp, p); err != nil {
		return Table{}, fmt.Errorf("write snapshot: %w", err)
	}
	return t, nil
}

func (c *Cache) Load(name string) (Table, error) {
	b, err := afero.ReadFile(c.fs, c.path(name))
	if err != nil {
		return Table{}, fmt.Errorf("%w: snapshot %q", ErrNotFound, name)
	}
	var t Table
	if err := json.Unmarshal(b, &t); err != nil {
		return Table{}, fmt.Errorf("decode snapshot %q: %w", name, err)
	}
	return t, nil
}
