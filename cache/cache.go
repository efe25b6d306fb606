// Package cache holds objects that are expensive to build and never change
// once built, such as the per-grid-size adjacency tables. Each object is
// built at most once per key per process.
package cache

import (
	"sync"

	"github.com/rs/zerolog/log"
)

type loadFunc func(key string) (any, error)

type objectCache struct {
	mu      sync.Mutex
	objects map[string]any
}

// global is shared by every engine in the process.
var global = &objectCache{objects: make(map[string]any)}

func (c *objectCache) get(key string, build loadFunc) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if obj, ok := c.objects[key]; ok {
		return obj, nil
	}
	log.Debug().Str("key", key).Msg("loading-into-cache")
	obj, err := build(key)
	if err != nil {
		return nil, err
	}
	c.objects[key] = obj
	return obj, nil
}

func (c *objectCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.objects)
}

// Load returns the object cached under name, building it with build if it
// is not there yet. A failed build is not cached.
func Load(name string, build loadFunc) (any, error) {
	return global.get(name, build)
}
