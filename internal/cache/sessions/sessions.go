// Package sessions keeps recently queried accessibility surfaces in memory so
// that rendering the same surface with another class count costs no oracle
// queries.
package sessions

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mohammed-shakir/osrm-access/internal/access"
	"github.com/mohammed-shakir/osrm-access/internal/cache/keys"
)

const (
	DefaultSize = 256
	DefaultTTL  = 15 * time.Minute
)

// Builder queries a new surface on a miss.
type Builder func(ctx context.Context, req access.Request) (*access.Surface, error)

type Cache struct {
	lru *expirable.LRU[string, *access.Surface]
}

func New(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{lru: expirable.NewLRU[string, *access.Surface](size, nil, ttl)}
}

func key(profile string, req access.Request) string {
	return keys.SurfaceKey(profile, req.Origin, req.Radius, req.Points, req.Precision, req.H3Res)
}

func (c *Cache) Get(profile string, req access.Request) (*access.Surface, bool) {
	return c.lru.Get(key(profile, req))
}

// GetOrBuild returns the cached surface for req, building and storing it on a
// miss. Failed builds are not cached. Concurrent misses for the same key may
// both build; the later one wins.
func (c *Cache) GetOrBuild(ctx context.Context, profile string, req access.Request, build Builder) (*access.Surface, bool, error) {
	k := key(profile, req)
	if s, ok := c.lru.Get(k); ok {
		return s, true, nil
	}
	s, err := build(ctx, req)
	if err != nil {
		return nil, false, err
	}
	c.lru.Add(k, s)
	return s, false, nil
}

// PurgeProfile drops every surface of profile and reports how many went.
func (c *Cache) PurgeProfile(profile string) int {
	prefix := keys.SurfacePrefix(profile)
	n := 0
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) && c.lru.Remove(k) {
			n++
		}
	}
	return n
}

func (c *Cache) Len() int { return c.lru.Len() }
