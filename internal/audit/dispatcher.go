package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior. With DropIfFull unset, Emit
// blocks until the buffer has room or the caller's context ends.
//
// OnDrop, when set, is called for every event that is not delivered: a full
// buffer, a cancelled blocking Emit, an Emit after Close, or an event still
// queued when a Close deadline expires. It runs on the goroutine that dropped
// the event and must not block.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	OnDrop     func(Event)
}

// Dispatcher relays session audit events to a sink from a single goroutine,
// so the sink sees events in Emit order.
type Dispatcher struct {
	sink   Sink
	block  bool
	onDrop func(Event)

	// mu guards closing of queue; Emit holds it shared while sending.
	// stopping is closed first so blocked senders give up their share.
	mu       sync.RWMutex
	closed   bool
	queue    chan Event
	stopping chan struct{}
	stopOnce sync.Once

	relayed   chan struct{}
	abandoned atomic.Bool
	dropped   atomic.Uint64
}

// NewDispatcher starts the relay goroutine. It returns nil when cfg is disabled;
// every method is safe on a nil *Dispatcher.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:     sink,
		block:    !cfg.DropIfFull,
		onDrop:   cfg.OnDrop,
		queue:    make(chan Event, cfg.BufferSize),
		stopping: make(chan struct{}),
		relayed:  make(chan struct{}),
	}
	go d.relay()
	return d
}

func (d *Dispatcher) relay() {
	defer close(d.relayed)
	for event := range d.queue {
		if d.abandoned.Load() {
			d.drop(event)
			continue
		}
		d.sink.Emit(context.Background(), event)
	}
}

// Emit queues event for the sink.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(event)
		return
	}

	if !d.block {
		select {
		case d.queue <- event:
		default:
			d.drop(event)
		}
		return
	}
	select {
	case d.queue <- event:
	case <-ctx.Done():
		d.drop(event)
	case <-d.stopping:
		d.drop(event)
	}
}

// Close stops accepting events and waits for the queue to reach the sink.
// When ctx ends first, Close returns ctx.Err() and whatever is still queued
// is dropped instead of delivered.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.stopOnce.Do(func() { close(d.stopping) })
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	select {
	case <-d.relayed:
		return nil
	case <-ctx.Done():
		d.abandoned.Store(true)
		return ctx.Err()
	}
}

// Dropped returns the number of events that never reached the sink.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) drop(event Event) {
	d.dropped.Add(1)
	if d.onDrop != nil {
		d.onDrop(event)
	}
}
