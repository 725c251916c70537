package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/victorjacobs/go-remotethermo/remotethermo"
)

const (
	DefaultInterval = 300 * time.Second
	MinInterval     = 5 * time.Second
)

type Fetcher interface {
	Fetch(ctx context.Context, paramIDs []string) (any, error)
}

type UpdateFailedError struct {
	Reason string
	Err    error
}

func (e *UpdateFailedError) Error() string {
	return e.Reason
}

func (e *UpdateFailedError) Unwrap() error {
	return e.Err
}

type Coordinator struct {
	fetcher Fetcher
	logger  zerolog.Logger

	// refreshMutex orders polls so a slow poll cannot overwrite a newer snapshot.
	refreshMutex sync.Mutex

	mutex         sync.RWMutex
	paramIDs      []string
	interval      time.Duration
	snapshot      Snapshot
	lastErr       error
	lastRefreshed time.Time
	listeners     map[int]func()
	nextListener  int

	reset chan struct{}
}

func New(fetcher Fetcher, paramIDs []string, interval time.Duration, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		fetcher:   fetcher,
		logger:    logger,
		paramIDs:  copyIDs(paramIDs),
		interval:  ClampInterval(interval),
		listeners: make(map[int]func()),
		reset:     make(chan struct{}, 1),
	}
}

// ClampInterval maps zero to the default interval and anything below the
// floor to MinInterval.
func ClampInterval(interval time.Duration) time.Duration {
	if interval == 0 {
		return DefaultInterval
	}

	if interval < MinInterval {
		return MinInterval
	}

	return interval
}

// FirstRefresh performs the startup poll. Unlike scheduled polls its failure
// is returned so setup can be aborted.
func (c *Coordinator) FirstRefresh(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("first refresh: %w", err)
	}

	return nil
}

// Refresh polls once. On failure the previous snapshot is kept.
func (c *Coordinator) Refresh(ctx context.Context) error {
	c.refreshMutex.Lock()
	defer c.refreshMutex.Unlock()

	paramIDs := c.ParamIDs()

	snapshot, err := c.update(ctx, paramIDs)

	c.mutex.Lock()
	if err != nil {
		c.lastErr = err
	} else {
		c.snapshot = snapshot
		c.lastErr = nil
		c.lastRefreshed = time.Now()
	}
	c.mutex.Unlock()

	if err != nil {
		c.logger.Warn().Err(err).Msg("NTI update failed")
	} else {
		c.logger.Debug().Int("items", len(snapshot)).Msg("NTI update OK")
	}

	c.notify()

	return err
}

func (c *Coordinator) update(ctx context.Context, paramIDs []string) (Snapshot, error) {
	payload, err := c.fetcher.Fetch(ctx, paramIDs)
	if err != nil {
		return nil, failed(err)
	}

	return normalize(payload)
}

func failed(err error) error {
	var reason string
	switch {
	case errors.Is(err, remotethermo.ErrAuth):
		reason = "authentication failed"
	case errors.Is(err, remotethermo.ErrRateLimit):
		reason = "rate limited by server"
	case errors.Is(err, remotethermo.ErrServer):
		reason = "server error"
	case errors.Is(err, remotethermo.ErrAPI):
		reason = "NTI API error"
	default:
		reason = "update error"
	}

	return &UpdateFailedError{Reason: fmt.Sprintf("%s: %v", reason, err), Err: err}
}

// Run polls on the configured interval until ctx is done. The first tick
// happens one interval after Run starts; callers are expected to have run
// FirstRefresh already.
func (c *Coordinator) Run(ctx context.Context) {
	timer := time.NewTimer(c.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.reset:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
			c.Refresh(ctx)
		}

		timer.Reset(c.Interval())
	}
}

// SetParams replaces the tracked param IDs and the polling interval. A
// running timer is restarted with the new interval.
func (c *Coordinator) SetParams(paramIDs []string, interval time.Duration) {
	c.mutex.Lock()
	c.paramIDs = copyIDs(paramIDs)
	c.interval = ClampInterval(interval)
	c.mutex.Unlock()

	select {
	case c.reset <- struct{}{}:
	default:
	}
}

// Reconfigure applies new params and forces an out-of-cycle poll.
func (c *Coordinator) Reconfigure(ctx context.Context, paramIDs []string, interval time.Duration) error {
	c.SetParams(paramIDs, interval)

	return c.Refresh(ctx)
}

// Subscribe registers fn to be called after every poll, successful or not.
func (c *Coordinator) Subscribe(fn func()) func() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn

	return func() {
		c.mutex.Lock()
		defer c.mutex.Unlock()

		delete(c.listeners, id)
	}
}

func (c *Coordinator) notify() {
	c.mutex.RLock()
	listeners := make([]func(), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mutex.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

// Data returns the last successful snapshot. It is never modified after
// being published, so callers must treat it as read-only.
func (c *Coordinator) Data() Snapshot {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.snapshot
}

func (c *Coordinator) Get(paramID string) (Param, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	param, ok := c.snapshot[paramID]

	return param, ok
}

func (c *Coordinator) LastUpdateSuccess() bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.lastErr == nil && !c.lastRefreshed.IsZero()
}

func (c *Coordinator) LastError() error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.lastErr
}

func (c *Coordinator) LastRefreshed() time.Time {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.lastRefreshed
}

func (c *Coordinator) Interval() time.Duration {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.interval
}

func (c *Coordinator) ParamIDs() []string {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return copyIDs(c.paramIDs)
}

func copyIDs(ids []string) []string {
	return append([]string(nil), ids...)
}
