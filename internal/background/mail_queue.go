package background

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/services"
	pkglogger "github.com/lalithsaicharan00/cloud-storage-api/pkg/logger"
)

var (
	mailDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudstorage_mail_deliveries_total",
			Help: "Code emails by kind and final outcome",
		},
		[]string{"kind", "outcome"},
	)

	mailQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cloudstorage_mail_queue_depth",
			Help: "Messages waiting for a mail worker",
		},
	)
)

// ErrQueueClosed is returned by Shutdown when called twice.
var ErrQueueClosed = errors.New("mail queue closed")

// MailQueueConfig sizes the queue and its retry policy.
type MailQueueConfig struct {
	Size         int
	Workers      int
	MaxAttempts  int
	RetryBackoff time.Duration
	SendTimeout  time.Duration
}

// MailQueue delivers code emails off the request path. Notify never
// blocks: when the buffer is full the message is dropped and logged, and
// the user can ask for a resend once the code expires.
type MailQueue struct {
	sender services.EmailService
	config MailQueueConfig
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	jobs   chan services.EmailMessage
	wg     sync.WaitGroup
	sleep  func(ctx context.Context, d time.Duration) bool
}

func NewMailQueue(sender services.EmailService, config MailQueueConfig, logger *slog.Logger) *MailQueue {
	if config.Size <= 0 {
		config.Size = 256
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 30 * time.Second
	}
	return &MailQueue{
		sender: sender,
		config: config,
		logger: logger,
		jobs:   make(chan services.EmailMessage, config.Size),
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Start launches the worker pool. Workers exit once the queue is shut down
// and drained, or when ctx is cancelled.
func (q *MailQueue) Start(ctx context.Context) {
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.work(ctx)
	}
}

// Notify implements services.Notifier.
func (q *MailQueue) Notify(_ context.Context, msg services.EmailMessage) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.drop(msg, "closed")
		return
	}
	select {
	case q.jobs <- msg:
		mailQueueDepth.Inc()
	default:
		q.drop(msg, "queue_full")
	}
}

func (q *MailQueue) drop(msg services.EmailMessage, reason string) {
	mailDeliveriesTotal.WithLabelValues(string(msg.Kind), "dropped").Inc()
	q.logger.Error("email dropped",
		slog.String("kind", string(msg.Kind)),
		slog.String("to", pkglogger.SanitizedEmail(msg.To)),
		slog.String("reason", reason))
}

func (q *MailQueue) work(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case msg, ok := <-q.jobs:
			if !ok {
				return
			}
			mailQueueDepth.Dec()
			q.deliver(ctx, msg)
		case <-ctx.Done():
			return
		}
	}
}

func (q *MailQueue) deliver(ctx context.Context, msg services.EmailMessage) {
	var err error
	for attempt := 1; attempt <= q.config.MaxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, q.config.SendTimeout)
		err = q.sender.Send(sendCtx, msg)
		cancel()
		if err == nil {
			mailDeliveriesTotal.WithLabelValues(string(msg.Kind), "sent").Inc()
			return
		}

		q.logger.Warn("email delivery attempt failed",
			slog.String("kind", string(msg.Kind)),
			slog.Int("attempt", attempt),
			slog.Any("error", err))

		if attempt < q.config.MaxAttempts && !q.sleep(ctx, q.config.RetryBackoff*time.Duration(attempt)) {
			break
		}
	}

	mailDeliveriesTotal.WithLabelValues(string(msg.Kind), "failed").Inc()
	q.logger.Error("email delivery failed",
		slog.String("kind", string(msg.Kind)),
		slog.String("to", pkglogger.SanitizedEmail(msg.To)),
		slog.Any("error", err))
}

// Shutdown stops accepting messages and waits for queued ones to be
// delivered, or for ctx to expire.
func (q *MailQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
