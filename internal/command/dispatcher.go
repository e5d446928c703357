package command

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/huesyncd/internal/bridge"
	"github.com/dokzlo13/huesyncd/internal/flatten"
	"github.com/dokzlo13/huesyncd/internal/nodes"
	"github.com/dokzlo13/huesyncd/internal/store"
	"github.com/dokzlo13/huesyncd/internal/transform"
)

// Sender issues a command to the bridge. Implemented by bridge.Client.
type Sender interface {
	Send(ctx context.Context, method, trigger string, body map[string]any) ([]bridge.Result, error)
}

// Recorder writes result subtrees back into the store. Implemented by
// the flattener so lastAction snapshots get proper metadata.
type Recorder interface {
	Apply(baseKey string, data map[string]any, channel string)
}

// DispatcherConfig tunes the flush loop and retry policy.
type DispatcherConfig struct {
	FlushInterval time.Duration
	MaxAttempts   int
	RetryDelay    time.Duration
	RateLimitRPS  float64
}

// Dispatcher drains the queue on a fixed interval and sends each entry
// as one bridge request, with bounded retries on transport failures.
type Dispatcher struct {
	store   store.Store
	queue   *Queue
	sender  Sender
	rec     Recorder
	limiter *rate.Limiter
	cfg     DispatcherConfig

	closing   chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher draining the given queue.
func NewDispatcher(st store.Store, queue *Queue, sender Sender, rec Recorder, cfg DispatcherConfig) *Dispatcher {
	if cfg.FlushInterval < time.Second {
		cfg.FlushInterval = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 3 * time.Second
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 10
	}
	return &Dispatcher{
		store:   st,
		queue:   queue,
		sender:  sender,
		rec:     rec,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1),
		cfg:     cfg,
		closing: make(chan struct{}),
	}
}

// Start runs the flush loop. The timer is re-armed after each drain
// completes, so ticks never overlap.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		timer := time.NewTimer(d.cfg.FlushInterval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-d.closing:
				return
			case <-timer.C:
				d.Flush(ctx)
				timer.Reset(d.cfg.FlushInterval)
			}
		}
	}()

	log.Debug().Dur("interval", d.cfg.FlushInterval).Msg("Command dispatcher started")
}

// Stop signals shutdown and waits for in-flight work to settle.
func (d *Dispatcher) Stop() {
	d.closeOnce.Do(func() { close(d.closing) })
	d.wg.Wait()
}

// Flush drains the queue and dispatches every entry once.
func (d *Dispatcher) Flush(ctx context.Context) {
	for _, cmd := range d.queue.Drain() {
		d.dispatch(ctx, cmd, 1)
	}
}

// dispatch sends one command, retrying on transport failures.
func (d *Dispatcher) dispatch(ctx context.Context, cmd Command, attempt int) {
	select {
	case <-d.closing:
		return
	default:
	}

	if cmd.Kind == "lights" || cmd.Kind == "groups" {
		d.dropNoopFields(&cmd)
		if len(cmd.Body) == 0 {
			log.Debug().Int("attempt", attempt).Str("device", cmd.Name).Str("trigger", cmd.Trigger).
				Msg("No commands to send, all fields match current state")
			return
		}

		if cmd.Kind == "lights" && attempt == 1 {
			if reachable, ok := d.store.Get(cmd.Path + ".state.reachable"); ok {
				if r, isBool := reachable.(bool); isBool && !r {
					log.Warn().Str("device", cmd.Name).Msg("Device does not seem to be reachable, command is sent anyway")
				}
			}
		}
	}

	normalizeXY(cmd.Body)

	if err := d.limiter.Wait(ctx); err != nil {
		return
	}

	id := uuid.NewString()
	log.Debug().Str("dispatch_id", id).Int("attempt", attempt).Str("device", cmd.Name).
		Str("trigger", cmd.Trigger).Interface("commands", cmd.Body).Msg("Sending commands")

	results, err := d.sender.Send(ctx, cmd.Method, cmd.Trigger, cmd.Body)

	switch {
	case err == nil:
		d.handleResults(cmd, id, attempt, results)

	case errors.Is(err, bridge.ErrTransport):
		log.Warn().Str("dispatch_id", id).Int("attempt", attempt).Str("trigger", cmd.Trigger).
			Err(err).Msg("Failed sending request")
		d.recordLastAction(cmd, id, failureResult(cmd.Trigger, err), true)

		if attempt < d.cfg.MaxAttempts {
			d.scheduleRetry(ctx, cmd, attempt+1)
		} else {
			log.Error().Str("dispatch_id", id).Str("trigger", cmd.Trigger).
				Int("attempts", attempt).Msg("Giving up after max attempts")
		}

	default:
		log.Warn().Str("dispatch_id", id).Str("trigger", cmd.Trigger).Err(err).
			Interface("commands", cmd.Body).Msg("Bridge rejected command")
		d.recordLastAction(cmd, id, failureResult(cmd.Trigger, err), true)
	}
}

func (d *Dispatcher) scheduleRetry(ctx context.Context, cmd Command, attempt int) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		select {
		case <-ctx.Done():
		case <-d.closing:
		case <-time.After(d.cfg.RetryDelay):
			d.dispatch(ctx, cmd, attempt)
		}
	}()
}

// dropNoopFields removes fields whose target value already equals the
// bridge-confirmed state. The pending value an external write leaves
// under the same key must not count as current state, so the compare
// reads the synced value. Transition and trigger fields are always
// sent.
func (d *Dispatcher) dropNoopFields(cmd *Command) {
	for field, value := range cmd.Body {
		standard := nodes.ToStandard(field)
		if standard == "transitiontime" || standard == "trigger" || standard == "scene" {
			continue
		}
		entry, ok := d.store.GetEntry(cmd.Path + ".action." + standard)
		if !ok || entry.Synced == nil {
			continue
		}
		current := entry.Synced
		// the store carries degrees/Kelvin, the body wire units
		switch field {
		case "hue":
			current = transform.DegreesToHue(toFloat(current))
		case "ct":
			current = transform.KelvinToMired(toFloat(current))
		}
		if valuesEqual(current, value) {
			delete(cmd.Body, field)
		}
	}
}

// handleResults processes the structured per-field response array.
func (d *Dispatcher) handleResults(cmd Command, id string, attempt int, results []bridge.Result) {
	hadError := false
	for _, result := range results {
		if result.Error != nil {
			hadError = true
			log.Warn().Str("dispatch_id", id).Int("attempt", attempt).
				Str("address", result.Error.Address).Msg("Error setting field: " + result.Error.Description)
			continue
		}

		// acknowledge each succeeded field back into the store
		for address, value := range result.Success {
			field := address[strings.LastIndex(address, "/")+1:]
			standard := nodes.ToStandard(field)
			d.store.Ack(cmd.Path+".action."+standard, value)
			log.Debug().Str("dispatch_id", id).Str("address", address).
				Interface("value", value).Msg("Successfully set field")
		}
	}

	d.recordLastAction(cmd, id, results, hadError)

	if !hadError {
		log.Info().Int("attempt", attempt).Str("device", cmd.Name).Msg("Successfully set device")
	}
}

// recordLastAction snapshots the dispatch outcome on the device and on
// the global info record.
func (d *Dispatcher) recordLastAction(cmd Command, id string, results []bridge.Result, hadError bool) {
	now := time.Now()
	commandJSON, _ := json.Marshal(cmd.Body)
	resultJSON, _ := json.Marshal(results)

	snapshot := map[string]any{
		"lastAction": map[string]any{
			"timestamp":   now.Unix(),
			"datetime":    flatten.DateTime(now),
			"lastCommand": string(commandJSON),
			"lastResult":  string(resultJSON),
			"error":       hadError,
			"dispatchId":  id,
		},
	}

	d.rec.Apply(cmd.Path+".action", snapshot, "")
	d.rec.Apply("info", snapshot, "")
}

// failureResult synthesizes a result array for a failed transport so
// lastAction carries the literal error.
func failureResult(trigger string, err error) []bridge.Result {
	return []bridge.Result{{
		Error: &bridge.APIError{Type: 0, Address: trigger, Description: err.Error()},
	}}
}

// normalizeXY converts a stored "x,y" string into the numeric pair the
// bridge expects.
func normalizeXY(body map[string]any) {
	if s, ok := body["xy"].(string); ok {
		pair, err := transform.ParseXYPair(s)
		if err != nil {
			log.Warn().Str("xy", s).Msg("Invalid xy pair, field dropped")
			delete(body, "xy")
			return
		}
		body["xy"] = []float64{pair[0], pair[1]}
	}
}

func valuesEqual(a, b any) bool {
	if af, ok := toNumber(a); ok {
		bf, ok := toNumber(b)
		return ok && af == bf
	}
	switch bv := b.(type) {
	case string:
		av, ok := a.(string)
		return ok && av == bv
	case bool:
		av, ok := a.(bool)
		return ok && av == bv
	default:
		return false
	}
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}
