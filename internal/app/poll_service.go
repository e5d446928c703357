package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huesyncd/internal/bridge"
	"github.com/dokzlo13/huesyncd/internal/flatten"
)

const (
	// After a failed poll the bridge is probed again on a short fixed
	// interval before giving up entirely.
	pollRetryDelay  = 10 * time.Second
	pollMaxFailures = 10
)

// PollService periodically fetches the full bridge state and mirrors it
// into the store.
type PollService struct {
	client     *bridge.Client
	flattener  *flatten.Flattener
	interval   time.Duration
	retryDelay time.Duration

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewPollService creates the poll loop, not yet running.
func NewPollService(client *bridge.Client, fl *flatten.Flattener, interval time.Duration) *PollService {
	return &PollService{
		client:     client,
		flattener:  fl,
		interval:   interval,
		retryDelay: pollRetryDelay,
		closing:    make(chan struct{}),
	}
}

// SyncOnce performs a single full poll and store mirror.
func (p *PollService) SyncOnce(ctx context.Context) error {
	payload, err := p.client.FetchState(ctx)
	if err != nil {
		p.flattener.WriteSyncState(false)
		return err
	}

	// Group 0 is not part of the full state dump but aggregates all
	// lights, so it is fetched separately
	groupZero, err := p.client.FetchGroupZero(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to fetch group 0, skipping All Lights")
		groupZero = nil
	}

	p.flattener.SyncPayload(payload, groupZero)
	return nil
}

// SyncWithRetry polls until a full state mirror succeeds, retrying
// transport failures on the same budget the background loop uses. A
// rejection by the bridge, such as an unauthorized user, fails
// immediately.
func (p *PollService) SyncWithRetry(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= pollMaxFailures; attempt++ {
		if err = p.SyncOnce(ctx); err == nil {
			return nil
		}
		if !errors.Is(err, bridge.ErrTransport) {
			return err
		}
		if attempt == pollMaxFailures {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("Poll failed, retrying shortly")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.closing:
			return err
		case <-time.After(p.retryDelay):
		}
	}
	return fmt.Errorf("bridge unreachable after %d attempts: %w", pollMaxFailures, err)
}

// Start runs the poll loop. After each successful poll the timer is
// re-armed with the configured interval; after a failed one with a
// short retry delay. The bridge staying unreachable past the retry
// budget is fatal.
func (p *PollService) Start(ctx context.Context, onFatalError func(error)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		timer := time.NewTimer(p.interval)
		defer timer.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.closing:
				return
			case <-timer.C:
			}

			if err := p.SyncOnce(ctx); err != nil {
				failures++
				if failures >= pollMaxFailures {
					log.Error().Err(err).Int("attempts", failures).Msg("Bridge unreachable, giving up")
					if onFatalError != nil {
						onFatalError(fmt.Errorf("bridge unreachable after %d attempts: %w", failures, err))
					}
					return
				}
				log.Warn().Err(err).Int("attempt", failures).Msg("Poll failed, retrying shortly")
				timer.Reset(p.retryDelay)
				continue
			}

			if failures > 0 {
				log.Info().Msg("Bridge connection restored")
			}
			failures = 0
			timer.Reset(p.interval)
		}
	}()

	log.Debug().Dur("interval", p.interval).Msg("Poll service started")
}

// Stop terminates the poll loop.
func (p *PollService) Stop() {
	p.closeOnce.Do(func() { close(p.closing) })
	p.wg.Wait()
}
