// Package memo caches the result of a keyed computation until it is reset.
package memo

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Group memoizes one value per key. At most one computation per key runs at
// a time and concurrent callers share its result. A successful result is
// reused until Reset; errors are never cached.
type Group[V any] struct {
	sf     singleflight.Group
	mu     sync.Mutex
	values map[string]V
	gens   map[string]uint64
}

func NewGroup[V any]() *Group[V] {
	return &Group[V]{
		values: make(map[string]V),
		gens:   make(map[string]uint64),
	}
}

// Do returns the memoized value for key, computing it with fn if needed.
func (g *Group[V]) Do(key string, fn func() (V, error)) (V, error) {
	g.mu.Lock()
	if v, ok := g.values[key]; ok {
		g.mu.Unlock()
		return v, nil
	}
	gen := g.gens[key]
	g.mu.Unlock()

	sfKey := fmt.Sprintf("%s#%d", key, gen)
	res, err, _ := g.sf.Do(sfKey, func() (interface{}, error) {
		v, err := fn()
		if err != nil {
			return v, err
		}

		g.mu.Lock()
		// A Reset during the computation makes this result stale.
		if g.gens[key] == gen {
			g.values[key] = v
		}
		g.mu.Unlock()
		return v, nil
	})

	v, _ := res.(V)
	return v, err
}

// Reset forgets the value for key. Computations already running for key
// still return to their callers but are not remembered.
func (g *Group[V]) Reset(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.values, key)
	g.gens[key]++
}
