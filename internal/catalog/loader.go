package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/zeebo/xxh3"
)

// ErrNotFound is returned when no document exists for a dataset.
var ErrNotFound = errors.New("catalog: no document for dataset")

// suffixes are tried in order after the dataset name.
var suffixes = []string{"_config.json", "_config.yaml", "_config.yml"}

// parse is a test hook.
var parse = Parse

type entry struct {
	sum uint64
	cat Catalog
}

// Loader reads catalogs from a directory and caches them by dataset name.
// A cached catalog is reused until the document's content fingerprint
// changes. Loader is safe for concurrent use.
type Loader struct {
	dir string

	mu    sync.Mutex
	cache map[string]entry
}

// NewLoader returns a Loader reading from dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, cache: map[string]entry{}}
}

// Path returns the document path for name: <dir>/<name>_config.json, or the
// .yaml/.yml variant when only that exists.
func (l *Loader) Path(name string) (string, error) {
	for _, s := range suffixes {
		p := filepath.Join(l.dir, name+s)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s (looked in %s)", ErrNotFound, name, l.dir)
}

// Load returns the catalog for dataset name.
func (l *Loader) Load(name string) (Catalog, error) {
	p, err := l.Path(name)
	if err != nil {
		return Catalog{}, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return Catalog{}, fmt.Errorf("read catalog %s: %w", p, err)
	}
	sum := xxh3.Hash(b)

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok := l.cache[name]; ok && e.sum == sum {
		return e.cat, nil
	}
	cat, err := parse(b, filepath.Ext(p))
	if err != nil {
		return Catalog{}, fmt.Errorf("%s: %w", p, err)
	}
	l.cache[name] = entry{sum: sum, cat: cat}
	return cat, nil
}

// Cached reports whether name has a cached catalog.
func (l *Loader) Cached(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.cache[name]
	return ok
}
