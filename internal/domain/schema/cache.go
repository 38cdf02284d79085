package schema

import (
	"sort"
	"sync"
)

// Cache holds the schemas of one database handle. Lookups of cached schemas are
// lock-free; building, replacing and invalidating serialize on one mutex.
type Cache struct {
	mu      sync.Mutex
	schemas sync.Map // set name -> *Schema
}

// NewCache creates an empty schema cache.
func NewCache() *Cache {
	return &Cache{}
}

// Get returns a cached schema.
func (c *Cache) Get(name string) (*Schema, bool) {
	v, ok := c.schemas.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Schema), true //nolint:forcetypeassert // only *Schema is stored
}

// GetOrBuild returns the cached schema or builds and caches it once.
func (c *Cache) GetOrBuild(name string, build func() (*Schema, error)) (*Schema, error) {
	if s, ok := c.Get(name); ok {
		return s, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.Get(name); ok {
		return s, nil
	}
	s, err := build()
	if err != nil {
		return nil, err
	}
	c.schemas.Store(name, s)
	return s, nil
}

// Put stores or replaces a schema.
func (c *Cache) Put(s *Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemas.Store(s.Name(), s)
}

// Invalidate drops a cached schema so the next lookup rebuilds it.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemas.Delete(name)
}

// Clear drops every cached schema.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.schemas.Clear()
}

// Names returns the cached set names, sorted.
func (c *Cache) Names() []string {
	var names []string
	c.schemas.Range(func(k, _ any) bool {
		names = append(names, k.(string)) //nolint:forcetypeassert // keys are set names
		return true
	})
	sort.Strings(names)
	return names
}
