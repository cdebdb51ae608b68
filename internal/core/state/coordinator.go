package state

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrStopped is returned by Dispatch once the coordinator has stopped.
var ErrStopped = errors.New("state: coordinator stopped")

type request struct {
	action Action
	reply  chan error
}

// Coordinator owns the authoritative State of one session. Actions are
// applied in order by the Run goroutine; readers take snapshots.
type Coordinator struct {
	requests chan request
	done     chan struct{}

	mu     sync.RWMutex
	state  State
	subs   map[int]chan State
	nextID int

	logger *slog.Logger
}

// NewCoordinator creates a coordinator holding initial.
func NewCoordinator(initial State, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		requests: make(chan request),
		done:     make(chan struct{}),
		state:    initial,
		subs:     make(map[int]chan State),
		logger:   logger,
	}
}

// Run applies dispatched actions until ctx is cancelled. Subscriber channels
// are closed on return.
func (c *Coordinator) Run(ctx context.Context) {
	defer func() {
		close(c.done)
		c.mu.Lock()
		for id, ch := range c.subs {
			close(ch)
			delete(c.subs, id)
		}
		c.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-c.requests:
			req.reply <- c.apply(req.action)
		}
	}
}

func (c *Coordinator) apply(a Action) error {
	c.mu.RLock()
	cur := c.state
	c.mu.RUnlock()

	next, err := Reduce(cur, a)
	if err != nil {
		c.logger.Debug("action rejected", "action", actionName(a), "error", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = next
	for _, ch := range c.subs {
		offer(ch, next)
	}
	return nil
}

// offer delivers s without blocking. A slow subscriber loses the oldest
// pending state, so it always ends up with the latest one.
func offer(ch chan State, s State) {
	for {
		select {
		case ch <- s:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Dispatch submits a and waits until it has been applied.
func (c *Coordinator) Dispatch(ctx context.Context, a Action) error {
	reply := make(chan error, 1)
	select {
	case c.requests <- request{action: a, reply: reply}:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current state.
func (c *Coordinator) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Subscribe returns a channel receiving every new state and a function that
// cancels the subscription.
func (c *Coordinator) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	select {
	case <-c.done:
		close(ch)
		c.mu.Unlock()
		return ch, func() {}
	default:
	}
	c.subs[id] = ch
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[id]; ok {
				delete(c.subs, id)
				close(ch)
			}
		})
	}
}

func actionName(a Action) string {
	switch a.(type) {
	case PositionChanged:
		return "position_changed"
	case PositionCleared:
		return "position_cleared"
	case RecordsLoaded:
		return "records_loaded"
	case Select:
		return "select"
	case ClearSelection:
		return "clear_selection"
	}
	return "unknown"
}
