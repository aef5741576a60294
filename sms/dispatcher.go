package sms

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Result labels reported to the Observer.
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

// Message is one queued delivery.
type Message struct {
	PhoneNumber string
	Body        string
	// Purpose is a log label such as "login" or "phone_change".
	Purpose string
}

// Config controls dispatcher concurrency and buffering.
type Config struct {
	Workers     int
	BufferSize  int
	SendTimeout time.Duration
}

// DefaultConfig returns two workers over a 256-message queue.
func DefaultConfig() Config {
	return Config{Workers: 2, BufferSize: 256, SendTimeout: 10 * time.Second}
}

// Observer is notified of each delivery result.
type Observer func(result string)

// Dispatcher delivers queued messages on background workers.
type Dispatcher struct {
	cfg       Config
	gateway   Gateway
	logger    *zap.Logger
	observe   Observer
	ch        chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts cfg.Workers goroutines delivering through gateway.
func NewDispatcher(cfg Config, gateway Gateway, logger *zap.Logger, observe Observer) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if observe == nil {
		observe = func(string) {}
	}

	d := &Dispatcher{
		cfg:     cfg,
		gateway: gateway,
		logger:  logger,
		observe: observe,
		ch:      make(chan Message, cfg.BufferSize),
		done:    make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.run()
	}
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()

	if err := d.gateway.Send(ctx, msg.PhoneNumber, msg.Body); err != nil {
		d.observe(ResultFailed)
		d.logger.Warn("sms delivery failed",
			zap.String("purpose", msg.Purpose),
			zap.String("to", MaskNumber(msg.PhoneNumber)),
			zap.Error(err),
		)
		return
	}
	d.observe(ResultSent)
}

// Enqueue queues msg without blocking. It returns false when the queue is
// full or the dispatcher is closed; the message is then dropped.
func (d *Dispatcher) Enqueue(msg Message) bool {
	if d == nil || d.closed.Load() {
		return false
	}
	select {
	case d.ch <- msg:
		return true
	case <-d.done:
		return false
	default:
		d.dropped.Add(1)
		d.observe(ResultDropped)
		d.logger.Warn("sms queue full, message dropped",
			zap.String("purpose", msg.Purpose),
			zap.String("to", MaskNumber(msg.PhoneNumber)),
		)
		return false
	}
}

// Close stops accepting messages, drains the queue, and waits for workers.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports messages discarded because the queue was full.
func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }
