package mail

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrQueueFull is returned by Notify when the dispatcher cannot accept more mail.
var ErrQueueFull = errors.New("mail queue full")

// ErrClosed is returned by Notify after the dispatcher stopped.
var ErrClosed = errors.New("mail dispatcher stopped")

// Dispatcher queues notifications and delivers them on a background worker so
// that callers never wait for the relay.
type Dispatcher struct {
	sender  Sender
	from    string
	to      []string
	timeout time.Duration
	queue   chan Message
	logger  zerolog.Logger

	// mu orders enqueues against shutdown: once closed is set under the write
	// lock, no Notify can add to the queue that Run is draining.
	mu     sync.RWMutex
	closed bool
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	From      string
	To        []string
	QueueSize int
	// Timeout bounds a single delivery.
	Timeout time.Duration
}

// NewDispatcher constructs a Dispatcher. Run must be called to start delivery.
func NewDispatcher(sender Sender, cfg DispatcherConfig, logger zerolog.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Dispatcher{
		sender:  sender,
		from:    cfg.From,
		to:      append([]string(nil), cfg.To...),
		timeout: cfg.Timeout,
		queue:   make(chan Message, cfg.QueueSize),
		logger:  logger.With().Str("component", "mail").Logger(),
	}
}

// Notify enqueues a mail to the configured recipients without blocking.
func (d *Dispatcher) Notify(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := Message{From: d.from, To: d.to, Subject: subject, Body: body}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run delivers queued mail until ctx is cancelled. Mail still queued at that
// point is delivered before Run returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case msg := <-d.queue:
			d.deliver(ctx, msg)
		case <-ctx.Done():
			d.mu.Lock()
			d.closed = true
			d.mu.Unlock()
			d.drain()
			return nil
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case msg := <-d.queue:
			d.deliver(context.Background(), msg)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("mail delivery failed")
		return
	}
	d.logger.Debug().Str("subject", msg.Subject).Msg("mail delivered")
}
