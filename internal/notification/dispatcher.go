package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultWorkers     = 4
	defaultQueueSize   = 1024
	defaultMaxAttempts = 3
	defaultRetryDelay  = 500 * time.Millisecond
	defaultSendTimeout = 5 * time.Second
)

// Options tunes the dispatcher worker pool
type Options struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	RetryDelay  time.Duration
	SendTimeout time.Duration
}

func (o *Options) normalize() {
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = defaultRetryDelay
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = defaultSendTimeout
	}
}

// delivery is one event bound for one channel. Retries stay on that channel.
type delivery struct {
	sender Sender
	event  Event
	target int64
}

// Dispatcher hands events to its channels on background workers. Notify never
// blocks; delivery errors are retried per channel, logged and dropped.
type Dispatcher struct {
	senders []Sender
	log     *logrus.Logger
	opts   Options

	queue chan delivery
	stop  chan struct{}
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the worker pool. A Senders value is split into its
// channels so each one is delivered and retried on its own.
func NewDispatcher(sender Sender, log *logrus.Logger, opts Options) *Dispatcher {
	opts.normalize()
	d := &Dispatcher{
		senders: channels(sender),
		log:     log,
		opts:    opts,
		queue:   make(chan delivery, opts.QueueSize),
		stop:    make(chan struct{}),
	}
	d.wg.Add(opts.Workers)
	for i := 0; i < opts.Workers; i++ {
		go d.worker()
	}
	return d
}

// Notify enqueues event for targetUserID. A full queue or a closed
// dispatcher drops the event.
func (d *Dispatcher) Notify(event Event, targetUserID int64) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	fields := logrus.Fields{"event_id": event.ID, "event_type": event.Type, "target_user_id": targetUserID}
	if d.closed {
		d.log.WithFields(fields).Warn("Dispatcher closed, notification dropped")
		return
	}
	for _, sender := range d.senders {
		select {
		case d.queue <- delivery{sender: sender, event: event, target: targetUserID}:
		default:
			d.log.WithFields(fields).WithField("channel", channelName(sender)).
				Error("Notification queue full, notification dropped")
		}
	}
}

func channels(sender Sender) []Sender {
	group, ok := sender.(Senders)
	if !ok {
		return []Sender{sender}
	}
	var out []Sender
	for _, inner := range group {
		out = append(out, channels(inner)...)
	}
	return out
}

func channelName(sender Sender) string {
	return fmt.Sprintf("%T", sender)
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for del := range d.queue {
		d.deliver(del)
	}
}

func (d *Dispatcher) deliver(del delivery) {
	entry := d.log.WithFields(logrus.Fields{
		"event_id":       del.event.ID,
		"event_type":     del.event.Type,
		"target_user_id": del.target,
		"channel":        channelName(del.sender),
	})

	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.SendTimeout)
		err := del.sender.Send(ctx, del.event, del.target)
		cancel()
		if err == nil {
			entry.WithField("attempt", attempt).Debug("Notification delivered")
			return
		}
		if attempt >= d.opts.MaxAttempts {
			entry.WithError(err).Errorf("Notification not delivered after %d attempts", attempt)
			return
		}
		entry.WithError(err).Warnf("Notification attempt %d failed, retrying", attempt)

		select {
		case <-time.After(d.opts.RetryDelay):
		case <-d.stop:
			entry.WithError(err).Error("Notification abandoned on shutdown")
			return
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
// When ctx expires first, pending retries are abandoned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		close(d.stop)
		return ctx.Err()
	}
}
