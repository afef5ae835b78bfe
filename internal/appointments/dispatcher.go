package appointments

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"sacs-telemedicina-hub/internal/models"
)

// Event describes one committed change. Previous is nil for creations.
type Event struct {
	Transition Transition
	Actor      Actor
	Previous   *models.Appointment
	Current    models.Appointment
	OccurredAt time.Time
}

// Hook reacts to committed changes. A failing hook never affects the change
// that triggered it.
type Hook interface {
	Handle(ctx context.Context, ev Event) error
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, ev Event) error

func (f HookFunc) Handle(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

const (
	defaultDispatchBuffer = 256
	defaultHookTimeout    = 5 * time.Second
)

// Dispatcher delivers events to hooks on a background goroutine, in commit order.
type Dispatcher struct {
	hooks       []Hook
	events      chan Event
	done        chan struct{}
	logger      *zap.Logger
	hookTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewDispatcher starts the delivery goroutine. Call Close to drain it.
func NewDispatcher(logger *zap.Logger, buffer int, hooks ...Hook) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if buffer <= 0 {
		buffer = defaultDispatchBuffer
	}
	d := &Dispatcher{
		hooks:       hooks,
		events:      make(chan Event, buffer),
		done:        make(chan struct{}),
		logger:      logger,
		hookTimeout: defaultHookTimeout,
	}
	go d.run()
	return d
}

// Publish queues ev without blocking. Events are dropped when the queue is
// full or the dispatcher is closed.
func (d *Dispatcher) Publish(ev Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}
	select {
	case d.events <- ev:
	default:
		d.dropped.Add(1)
		d.logger.Warn("appointment event dropped, dispatch queue full",
			zap.String("appointment_id", ev.Current.ID),
			zap.String("transition", string(ev.Transition)))
	}
}

// Dropped returns how many events were never delivered.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting events and waits until queued ones are delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for ev := range d.events {
		for _, h := range d.hooks {
			if err := d.deliver(h, ev); err != nil {
				d.logger.Error("appointment hook failed",
					zap.String("appointment_id", ev.Current.ID),
					zap.String("transition", string(ev.Transition)),
					zap.Error(err))
			}
		}
	}
}

func (d *Dispatcher) deliver(h Hook, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), d.hookTimeout)
	defer cancel()
	return h.Handle(ctx, ev)
}
