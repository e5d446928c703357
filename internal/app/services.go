package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/huesyncd/internal/bridge"
	"github.com/dokzlo13/huesyncd/internal/command"
	"github.com/dokzlo13/huesyncd/internal/config"
	"github.com/dokzlo13/huesyncd/internal/db"
	"github.com/dokzlo13/huesyncd/internal/flatten"
	"github.com/dokzlo13/huesyncd/internal/pruner"
	"github.com/dokzlo13/huesyncd/internal/store"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB    *db.DB
	Store store.Store

	// Bridge access
	Bridge *bridge.Client

	// State mirroring
	Registry  *flatten.Registry
	Flattener *flatten.Flattener

	// Command path
	Builder    *command.Builder
	Queue      *command.Queue
	Dispatcher *command.Dispatcher

	// Background services
	Poller *PollService
	Pruner *pruner.Pruner
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize the store; an empty database path keeps the mirror
	// in memory only
	if cfg.Database.Path != "" {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		s.DB = database

		st, err := store.NewSQLite(database.DB)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Store = st
	} else {
		log.Warn().Msg("No database path configured, state tree will not survive restarts")
		s.Store = store.NewMemory()
	}

	// Initialize bridge client
	s.Bridge = bridge.NewClient(
		cfg.Bridge.IP,
		cfg.Bridge.Port,
		cfg.Bridge.User,
		cfg.Bridge.Secure,
		cfg.Bridge.Timeout.Duration(),
	)

	// Initialize flattener with the device registry
	s.Registry = flatten.NewRegistry()
	s.Flattener = flatten.New(s.Store, s.Registry, flatten.Config{
		Naming:       cfg.Naming,
		Sync:         cfg.Sync.Enabled,
		SyncRecycled: cfg.Sync.Recycled,
		BriWhenOff:   cfg.Policy.BriWhenOff,
	})

	// Initialize command path
	s.Builder = command.NewBuilder(s.Store, s.Registry, command.Policy{
		BriWhenOff: cfg.Policy.BriWhenOff,
		HueToXY:    cfg.Policy.HueToXY,
	})
	s.Queue = command.NewQueue()
	s.Dispatcher = command.NewDispatcher(s.Store, s.Queue, s.Bridge, s.Flattener, command.DispatcherConfig{
		FlushInterval: cfg.Queue.FlushInterval.Duration(),
		MaxAttempts:   cfg.Queue.MaxAttempts,
		RetryDelay:    cfg.Queue.RetryDelay.Duration(),
		RateLimitRPS:  cfg.Queue.RateLimitRPS,
	})

	// Route external store writes into the command queue
	s.Store.OnExternalWrite(s.handleExternalWrite)

	// Initialize poll service
	s.Poller = NewPollService(s.Bridge, s.Flattener, cfg.PollInterval.Duration())

	// Initialize staleness pruner
	if cfg.Pruner.Enabled {
		s.Pruner = pruner.New(s.Store, cfg.Pruner.Interval.Duration(), cfg.Pruner.MaxAge.Duration())
	}

	return s, nil
}

// handleExternalWrite turns a subscribed store write into queued bridge
// commands.
func (s *Services) handleExternalWrite(key string, value any) {
	cmds, err := s.Builder.Build(key, value)
	if err != nil {
		switch {
		case errors.Is(err, command.ErrUnknownDevice):
			log.Warn().Str("key", key).Msg("Write to a key with no owning device, ignored")
		case errors.Is(err, command.ErrInvalidCommands):
			log.Warn().Str("key", key).Err(err).Msg("Rejected malformed _commands payload")
		case errors.Is(err, command.ErrInvalidScenePayload):
			log.Warn().Str("key", key).Err(err).Msg("Rejected trigger with no replayable payload")
		default:
			log.Error().Str("key", key).Err(err).Msg("Failed to build command")
		}
		return
	}

	for _, cmd := range cmds {
		s.Queue.Enqueue(cmd)
		log.Debug().
			Str("trigger", cmd.Trigger).
			Str("device", cmd.Name).
			Msg("Command queued")
	}
}

// Start starts all services in the correct order.
// The onFatalError callback is called when a fatal error occurs (e.g., the bridge
// stays unreachable past the poll retry budget).
func (s *Services) Start(ctx context.Context, onFatalError func(error)) error {
	// First poll is synchronous so the store is populated before the
	// command path opens. Transient connection problems get the same
	// retry budget the background loop applies.
	log.Debug().Str("url", s.Bridge.StateURL()).Msg("Polling bridge state")
	if err := s.Poller.SyncWithRetry(ctx); err != nil {
		return err
	}
	log.Info().Str("bridge", s.cfg.Bridge.IP).Msg("Connected to Hue bridge")

	s.Poller.Start(ctx, onFatalError)
	s.Dispatcher.Start(ctx)
	if s.Pruner != nil {
		s.Pruner.Start(ctx)
	}

	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	if s.Poller != nil {
		s.Poller.Stop()
	}
	if s.Dispatcher != nil {
		s.Dispatcher.Stop()
	}
	if s.Pruner != nil {
		s.Pruner.Stop()
	}
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Bridge != nil {
		s.Bridge.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}
