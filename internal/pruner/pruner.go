// Package pruner removes store entries that have not been refreshed by
// a poll within a configurable window.
package pruner

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huesyncd/internal/store"
)

// Pruner periodically deletes stale store entries.
type Pruner struct {
	store    store.Store
	interval time.Duration
	maxAge   time.Duration

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates a pruner over the given store.
func New(st store.Store, interval, maxAge time.Duration) *Pruner {
	return &Pruner{
		store:    st,
		interval: interval,
		maxAge:   maxAge,
		closing:  make(chan struct{}),
	}
}

// Start runs the prune loop. The timer is re-armed after each run.
func (p *Pruner) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		timer := time.NewTimer(p.interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.closing:
				return
			case <-timer.C:
				p.Prune(time.Now())
				timer.Reset(p.interval)
			}
		}
	}()

	log.Debug().Dur("interval", p.interval).Dur("max_age", p.maxAge).Msg("Staleness pruner started")
}

// Stop terminates the prune loop.
func (p *Pruner) Stop() {
	p.closeOnce.Do(func() { close(p.closing) })
	p.wg.Wait()
}

// Prune removes entries whose last poll refresh is older than the
// threshold. Entries never observed in a poll are exempt, so freshly
// subscribed writable fields survive until their first sync.
func (p *Pruner) Prune(now time.Time) int {
	cutoff := now.Add(-p.maxAge)
	pruned := 0

	for _, key := range p.store.Keys() {
		entry, ok := p.store.GetEntry(key)
		if !ok {
			continue
		}
		if entry.LastSynced.IsZero() {
			continue
		}
		if entry.LastSynced.Before(cutoff) {
			if deleted, err := p.store.Delete(key); err != nil {
				log.Warn().Str("key", key).Err(err).Msg("Failed to prune store entry")
			} else if deleted {
				pruned++
			}
		}
	}

	if pruned > 0 {
		log.Info().Int("entries", pruned).Msg("Pruned stale store entries")
	}
	return pruned
}
