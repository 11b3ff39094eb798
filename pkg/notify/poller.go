// Package notify runs the background check for overdue reviews and sends
// reminders through a Sink.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval is used when the configured interval is not positive.
const DefaultInterval = 30 * time.Minute

// PendingCounter reports how many reviews are overdue.
type PendingCounter interface {
	GetPendingReviewCount(ctx context.Context) int
}

// Sink delivers a reminder. Implementations may fail; the poller logs the
// failure and carries on with the next tick.
type Sink interface {
	SendReviewReminder(ctx context.Context, pendingCount int) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, pendingCount int) error

// SendReviewReminder implements Sink.
func (f SinkFunc) SendReviewReminder(ctx context.Context, pendingCount int) error {
	return f(ctx, pendingCount)
}

// Poller checks the pending-review count every interval and sends one
// reminder per tick while the count is positive. There is no deduplication:
// a backlog that persists is reminded about on every tick.
type Poller struct {
	counter  PendingCounter
	sink     Sink
	interval time.Duration
	log      *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller. It does nothing until Run or Start is called.
func NewPoller(counter PendingCounter, sink Sink, interval time.Duration, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		counter:  counter,
		sink:     sink,
		interval: interval,
		log:      logger.Named("notifier"),
	}
}

// Run checks immediately and then once per interval until ctx is cancelled.
// Cancellation interrupts the wait between ticks but never a tick in
// progress; Run returns once the current tick has finished.
func (p *Poller) Run(ctx context.Context) {
	p.log.Info("review notifier started", zap.Duration("interval", p.interval))
	defer p.log.Info("review notifier stopped")

	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	for {
		if ctx.Err() != nil {
			return
		}

		p.tick(context.WithoutCancel(ctx))

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(p.interval)

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}

// Start runs the poller in a goroutine. Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel, p.done = cancel, done

	go func() {
		defer close(done)
		p.Run(ctx)
	}()
}

// Stop signals the goroutine started by Start and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (p *Poller) tick(ctx context.Context) {
	ticksTotal.Inc()

	count := p.counter.GetPendingReviewCount(ctx)
	pendingReviews.Set(float64(count))
	if count <= 0 {
		p.log.Debug("no reviews pending")
		return
	}

	p.log.Info("reviews pending, sending reminder", zap.Int("pending", count))
	if err := p.send(ctx, count); err != nil {
		remindersTotal.WithLabelValues("error").Inc()
		p.log.Error("failed to send review reminder", zap.Int("pending", count), zap.Error(err))
		return
	}
	remindersTotal.WithLabelValues("sent").Inc()
}

// send shields the loop from a panicking sink.
func (p *Poller) send(ctx context.Context, count int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return p.sink.SendReviewReminder(ctx, count)
}
