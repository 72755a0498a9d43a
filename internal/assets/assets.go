// Package assets resolves model and texture files from GRF archives and
// plain directories.
package assets

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/Faultbox/surfsample/pkg/grf"
	"github.com/Faultbox/surfsample/pkg/texture"
)

// ErrNotFound is returned when no archive or directory holds a file.
var ErrNotFound = errors.New("asset not found")

// textureRoot is where RSM texture names are resolved inside archives.
const textureRoot = "data/texture"

// Manager handles asset lookup. Archives are searched in reverse order
// (last added = highest priority), then directories in insertion order.
type Manager struct {
	archives []*grf.Archive
	dirs     []string
	images   *Cache[*image.NRGBA]
	mu       sync.RWMutex
}

// NewManager creates an empty asset manager.
func NewManager() *Manager {
	return &Manager{
		images: NewCache[*image.NRGBA](),
	}
}

// AddArchive opens a GRF archive and adds it to the search list.
func (m *Manager) AddArchive(path string) error {
	archive, err := grf.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}

	m.mu.Lock()
	m.archives = append(m.archives, archive)
	m.mu.Unlock()
	return nil
}

// AddDir adds a directory searched after the archives.
func (m *Manager) AddDir(dir string) {
	if dir == "" {
		return
	}
	m.mu.Lock()
	m.dirs = append(m.dirs, dir)
	m.mu.Unlock()
}

// NumArchives returns how many archives are open.
func (m *Manager) NumArchives() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.archives)
}

// Load returns the bytes of name from the first archive or directory that
// has it.
func (m *Manager) Load(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.archives) - 1; i >= 0; i-- {
		data, err := m.archives[i].ReadFile(name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, grf.ErrNotFound) {
			return nil, err
		}
	}
	rel := filepath.FromSlash(strings.ReplaceAll(name, "\\", "/"))
	for _, dir := range m.dirs {
		data, err := os.ReadFile(filepath.Join(dir, rel))
		if err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Texture decodes an RSM texture by its model-relative name. Lookups try
// the archive texture root first, then the bare name. Decoded images are
// cached and magenta-keyed.
func (m *Manager) Texture(name string) (*image.NRGBA, error) {
	key := strings.ToLower(strings.ReplaceAll(name, "\\", "/"))
	if img, ok := m.images.Get(key); ok {
		return img, nil
	}

	data, err := m.Load(path.Join(textureRoot, key))
	if errors.Is(err, ErrNotFound) {
		data, err = m.Load(name)
	}
	if err != nil {
		return nil, err
	}
	img, err := texture.LoadImageBytes(data, key)
	if err != nil {
		return nil, err
	}
	texture.KeyMagenta(img)
	m.images.Set(key, img)
	return img, nil
}

// Stats returns texture cache statistics.
func (m *Manager) Stats() (hits, misses int) {
	return m.images.Stats()
}

// Close closes all archives.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	for _, archive := range m.archives {
		err = multierr.Append(err, archive.Close())
	}
	m.archives = nil
	m.images.Clear()
	return err
}

// Cache is a concurrency-safe in-memory cache.
type Cache[V any] struct {
	data map[string]V
	mu   sync.Mutex

	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache[V any]() *Cache[V] {
	return &Cache[V]{
		data: make(map[string]V),
	}
}

// Get retrieves an item from cache.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Set stores an item in cache.
func (c *Cache[V]) Set(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = v
}

// Clear clears the cache.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]V)
	c.hits = 0
	c.misses = 0
}

// Stats returns cache statistics.
func (c *Cache[V]) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
