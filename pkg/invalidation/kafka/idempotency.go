package kafka

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// versionDedupe remembers the newest dataset version applied per profile.
// A version is only recorded once its purge succeeded, so a failed event is
// applied again on redelivery.
type versionDedupe struct {
	mu  sync.Mutex
	lru *lru.Cache[string, uint64]
}

func newVersionDedupe(size int) *versionDedupe {
	if size <= 0 {
		size = 1024
	}
	c, _ := lru.New[string, uint64](size)
	return &versionDedupe{lru: c}
}

// isNewer reports whether v is greater than the last applied version.
func (d *versionDedupe) isNewer(profile string, v uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lru.Get(profile)
	return !ok || v > last
}

// commit records v as applied unless a newer version already is.
func (d *versionDedupe) commit(profile string, v uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lru.Get(profile); ok && last >= v {
		return
	}
	d.lru.Add(profile, v)
}
