package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config selects whether events are dispatched and how a full queue behaves.
type Config struct {
	Enabled bool
	// BufferSize is the queue depth. Values below one become one.
	BufferSize int
	// DropIfFull discards an event when the queue is full. Otherwise Emit
	// waits for room, the caller's context, or Close.
	DropIfFull bool
}

// Dispatcher relays events to a Sink from a single goroutine, so sink
// latency never lands on the request path. Events reach the sink in the
// order Emit accepted them.
//
// A nil *Dispatcher is valid: Emit discards, Close returns, Dropped is zero.
type Dispatcher struct {
	sink    Sink
	queue   chan Event
	lossy   bool
	dropped atomic.Uint64

	stopping atomic.Bool
	stop     chan struct{}
	stopped  chan struct{}
	once     sync.Once
}

// NewDispatcher starts the relay goroutine, or returns nil when cfg
// disables auditing.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &Dispatcher{
		sink:    sink,
		queue:   make(chan Event, max(cfg.BufferSize, 1)),
		lossy:   cfg.DropIfFull,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go d.relay()
	return d
}

func (d *Dispatcher) relay() {
	defer close(d.stopped)
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

// drain hands whatever is still queued to the sink.
func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		default:
			return
		}
	}
}

// Emit queues ev. It never blocks in lossy mode; a full queue counts a drop.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.stopping.Load() {
		return
	}

	if d.lossy {
		select {
		case d.queue <- ev:
		default:
			d.dropped.Add(1)
		}
		return
	}

	var cancelled <-chan struct{}
	if ctx != nil {
		cancelled = ctx.Done()
	}
	select {
	case d.queue <- ev:
	case <-cancelled:
	case <-d.stop:
	}
}

// Close stops intake, flushes the queue to the sink, and waits for the
// relay to exit. Later calls return immediately.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.once.Do(func() {
		d.stopping.Store(true)
		close(d.stop)
	})
	<-d.stopped
}

// Dropped counts events discarded by a full lossy queue.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
