package payments

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Job is one payment queued for settlement.
type Job struct {
	PaymentID uuid.UUID
	OrderID   uuid.UUID
	Number    string
}

// DecideFunc produces the settlement outcome for a payment number.
type DecideFunc func(number string, rng *rand.Rand) (enums.PaymentStatus, *string)

// SleepFunc waits for the simulated settlement latency, honoring ctx.
type SleepFunc func(ctx context.Context, d time.Duration)

// Pool settles queued payments on a fixed set of workers. The queue is
// bounded; Submit never blocks the request path.
type Pool struct {
	repo    Repository
	tx      txRunner
	metrics *metrics.SettlementMetrics
	logg    *logger.Logger

	queue   chan Job
	workers int
	latency time.Duration

	decide DecideFunc
	sleep  SleepFunc
	now    func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand

	wg      sync.WaitGroup
	started bool
	mu      sync.Mutex
}

// NewPool builds a settlement pool sized by cfg.
func NewPool(cfg config.SettlementConfig, repo Repository, tx txRunner, m *metrics.SettlementMetrics, logg *logger.Logger) (*Pool, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}
	return &Pool{
		repo:    repo,
		tx:      tx,
		metrics: m,
		logg:    logg,
		queue:   make(chan Job, queueSize),
		workers: workers,
		latency: cfg.SimulatedLatency,
		decide:  Decide,
		sleep:   sleepWithContext,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Start launches the workers. The pool stops accepting work when Shutdown is
// called; ctx cancellation only shortens the simulated latency of in-flight
// settlements.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.logg.Info(p.logg.WithField(ctx, "workers", p.workers), "settlement pool started")
}

// Submit enqueues a payment for settlement. It reports false when the queue
// is full; the caller then records the failure synchronously.
func (p *Pool) Submit(job Job) bool {
	select {
	case p.queue <- job:
		p.metrics.SetQueueDepth(len(p.queue))
		return true
	default:
		p.metrics.IncRejected()
		return false
	}
}

// Shutdown stops intake and waits for in-flight settlements up to the ctx
// deadline.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return multierr.Append(
			fmt.Errorf("settlement pool shutdown incomplete"),
			ctx.Err(),
		)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for job := range p.queue {
		p.metrics.SetQueueDepth(len(p.queue))
		p.settle(ctx, job)
	}
}

func (p *Pool) settle(ctx context.Context, job Job) {
	ctx = p.logg.WithPaymentID(ctx, job.PaymentID.String())
	ctx = p.logg.WithOrderID(ctx, job.OrderID.String())
	started := p.now()

	// A panic anywhere below must not take the worker down or strand the
	// payment in pending.
	defer func() {
		if r := recover(); r != nil {
			p.logg.Error(ctx, "settlement panicked", fmt.Errorf("panic: %v", r))
			p.failSafe(ctx, job)
		}
	}()

	p.sleep(ctx, p.latency)

	p.rngMu.Lock()
	status, reason := p.decide(job.Number, p.rng)
	p.rngMu.Unlock()

	// The terminal payment write and the order promotion commit together;
	// a successful payment can never be observed against an unpromoted order.
	var won bool
	err := p.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := p.repo.WithTx(tx)
		var err error
		won, err = repo.MarkSettled(ctx, job.PaymentID, status, reason, p.now().UTC())
		if err != nil || !won {
			return err
		}
		if status != enums.PaymentStatusSuccess {
			return nil
		}
		promoted, err := repo.PromoteOrder(ctx, job.OrderID, enums.OrderStatusProcessing,
			enums.OrderStatusAccepted, enums.OrderStatusPending)
		if err != nil {
			return err
		}
		if !promoted {
			p.logg.Warn(ctx, "order not promotable after successful settlement")
		}
		return nil
	})
	if err != nil {
		p.logg.Error(ctx, "persisting settlement outcome", err)
		p.failSafe(ctx, job)
		return
	}
	if !won {
		// Already settled elsewhere, e.g. by the stale-pending sweep.
		p.logg.Warn(ctx, "payment already settled, skipping")
		return
	}

	p.metrics.ObserveDuration(p.now().Sub(started))
	if status == enums.PaymentStatusSuccess {
		p.metrics.IncSuccess()
		p.logg.Info(ctx, "payment settled successfully")
		return
	}
	p.metrics.IncFailure()
	p.logg.Info(ctx, "payment settled as failed")
}

// failSafe records a generic failure for the payment, ignoring losses of the
// settle race.
func (p *Pool) failSafe(ctx context.Context, job Job) {
	msg := TechnicalErrorMessage
	if _, err := p.repo.MarkSettled(ctx, job.PaymentID, enums.PaymentStatusFailed, &msg, p.now().UTC()); err != nil {
		p.logg.Error(ctx, "recording settlement failure", err)
		return
	}
	p.metrics.IncFailure()
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
