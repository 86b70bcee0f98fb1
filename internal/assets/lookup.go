// Package assets decides when HD texture overrides must be (re)applied and
// resolves skybox textures through their fallback chain. Decoding and
// uploading images is the host's job; this package only asks for textures
// by name.
package assets

import (
	"sync"

	"github.com/hlvr/vrcore/internal/render"
)

// TextureLookup loads a texture by its path below the textures folder. It
// returns 0 when the texture does not exist or failed to load.
type TextureLookup interface {
	Texture(name string) render.TextureID
}

// LookupFunc adapts a function to TextureLookup.
type LookupFunc func(name string) render.TextureID

func (f LookupFunc) Texture(name string) render.TextureID { return f(name) }

// Cache memoizes a TextureLookup, misses included, so per-frame lookups of
// absent assets do not hit the filesystem again.
type Cache struct {
	m       sync.Mutex
	next    TextureLookup
	entries map[string]render.TextureID
	misses  int
}

func NewCache(next TextureLookup) *Cache {
	return &Cache{
		next:    next,
		entries: make(map[string]render.TextureID),
	}
}

func (c *Cache) Texture(name string) render.TextureID {
	c.m.Lock()
	defer c.m.Unlock()

	if id, ok := c.entries[name]; ok {
		return id
	}
	id := c.next.Texture(name)
	if id == 0 {
		c.misses++
	}
	c.entries[name] = id
	return id
}

// Misses is the number of distinct names that resolved to nothing.
func (c *Cache) Misses() int {
	c.m.Lock()
	defer c.m.Unlock()
	return c.misses
}

func (c *Cache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.entries)
}

// Reset forgets every cached entry.
func (c *Cache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.entries = make(map[string]render.TextureID)
	c.misses = 0
}
