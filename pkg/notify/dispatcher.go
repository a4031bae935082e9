package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rental_marketplace/pkg/circuitbreaker"
	"rental_marketplace/pkg/queue"
)

var ErrQueueFull = errors.New("notification queue is full")

type DispatcherConfig struct {
	QueueSize    int
	MaxRetries   int
	Backoff      time.Duration
	PollInterval time.Duration
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:    1000,
		MaxRetries:   5,
		Backoff:      30 * time.Second,
		PollInterval: time.Second,
	}
}

// Dispatcher sends messages in the background. Dispatch never blocks on the
// mail API; delivery failures are retried and finally dropped with a log line.
type Dispatcher struct {
	sender  Sender
	queue   *queue.Queue[Message]
	breaker *circuitbreaker.CircuitBreaker
	cfg     DispatcherConfig
	logger  *slog.Logger
	now     func() time.Time
}

func NewDispatcher(sender Sender, cfg DispatcherConfig, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		queue:   queue.NewQueue[Message](cfg.QueueSize),
		breaker: circuitbreaker.NewCircuitBreaker(5, 30*time.Second),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Dispatch queues msg for delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	item := &queue.Item[Message]{
		ID:         uuid.NewString(),
		Payload:    msg,
		RetryAt:    d.now(),
		MaxRetries: d.cfg.MaxRetries,
	}
	if !d.queue.Enqueue(item) {
		return ErrQueueFull
	}
	d.logger.DebugContext(ctx, "Notification queued", slog.String("id", item.ID), slog.String("to", msg.To))
	return nil
}

// Pending returns the number of messages waiting for delivery.
func (d *Dispatcher) Pending() int {
	return d.queue.Size()
}

// ProcessDue attempts every message that is due and returns how many were delivered.
func (d *Dispatcher) ProcessDue(ctx context.Context) int {
	now := d.now()
	delivered := 0
	var retry []*queue.Item[Message]

	for {
		item := d.queue.Dequeue(now)
		if item == nil {
			break
		}

		err := d.breaker.Execute(func() error {
			return d.sender.Send(ctx, item.Payload)
		})
		if err == nil {
			delivered++
			continue
		}

		if !errors.Is(err, circuitbreaker.ErrOpen) {
			item.RetryCount++
		}
		if item.Exhausted() {
			d.logger.ErrorContext(ctx, "Notification dropped after retries",
				slog.String("id", item.ID), slog.String("to", item.Payload.To),
				slog.Int("attempts", item.RetryCount), slog.String("error", err.Error()))
			continue
		}
		d.logger.WarnContext(ctx, "Notification delivery failed, will retry",
			slog.String("id", item.ID), slog.Int("attempt", item.RetryCount), slog.String("error", err.Error()))
		item.RetryAt = now.Add(time.Duration(item.RetryCount+1) * d.cfg.Backoff)
		retry = append(retry, item)
	}

	for _, item := range retry {
		if !d.queue.Enqueue(item) {
			d.logger.ErrorContext(ctx, "Notification dropped, queue full", slog.String("id", item.ID))
		}
	}
	return delivered
}

// Run delivers queued messages until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, item := range d.queue.GetAll() {
				d.logger.Warn("Notification not delivered before shutdown",
					slog.String("id", item.ID), slog.String("to", item.Payload.To))
			}
			return
		case <-ticker.C:
		case <-d.queue.Signal():
		}
		d.ProcessDue(ctx)
	}
}
