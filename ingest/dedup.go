package ingest

import (
	"time"

	ttlcache "github.com/jellydator/ttlcache/v3"
	"github.com/soclab/quell/domain/entity"
)

// Deduper suppresses re-reported indicators inside a sliding window.
type Deduper struct {
	cache *ttlcache.Cache[string, struct{}]
}

func NewDeduper(window time.Duration) *Deduper {
	d := &Deduper{
		cache: ttlcache.New(ttlcache.WithTTL[string, struct{}](window)),
	}
	go d.cache.Start()
	return d
}

// Seen records the indicator and reports whether it was already inside the
// window.
func (d *Deduper) Seen(indicator *entity.Indicator) bool {
	key := indicator.DedupKey()
	if d.cache.Get(key) != nil {
		return true
	}
	d.cache.Set(key, struct{}{}, ttlcache.DefaultTTL)
	return false
}
