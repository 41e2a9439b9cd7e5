// Package processor drives the Queue -> Normalizer -> LogStore -> RuleEngine
// pipeline for a (account, host) context.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/borelli28/siembackend/internal/alerts"
	"github.com/borelli28/siembackend/internal/containment"
	"github.com/borelli28/siembackend/internal/logstore"
	"github.com/borelli28/siembackend/internal/monitoring"
	"github.com/borelli28/siembackend/internal/normalize"
	"github.com/borelli28/siembackend/internal/queue"
	"github.com/borelli28/siembackend/internal/rules"
	"github.com/borelli28/siembackend/internal/worker"
)

// Inserter is the subset of logstore.Store the Processor needs.
type Inserter interface {
	Insert(ctx context.Context, n normalize.NormalizedLog) (logstore.StoredLog, logstore.InsertOutcome, error)
}

// Evaluator is the subset of rules.Engine the Processor needs.
type Evaluator interface {
	Evaluate(ctx context.Context, event normalize.NormalizedLog, accountID string) ([]alerts.Alert, error)
}

// Containment tracks repeated normalize failures per (account, host) so a
// single misconfigured source can be paused. Optional: a nil Containment
// disables this behavior.
type Containment interface {
	RecordInvalidFormat(accountID, hostID string)
	RecordValid(accountID, hostID string)
	IsContained(accountID, hostID string) bool
}

// RateLimiter throttles how fast an account's batches are drained. Optional:
// a nil RateLimiter disables this behavior.
type RateLimiter interface {
	Allow(accountID string) bool
}

// Processor dequeues batches and drives them through the pipeline.
type Processor struct {
	queue       *queue.Queue
	store       Inserter
	engine      Evaluator
	containment Containment
	limiter     RateLimiter
	logger      *slog.Logger
	metrics     *monitoring.Metrics
}

// Config bundles the Processor's collaborators.
type Config struct {
	Queue       *queue.Queue
	Store       Inserter
	Engine      Evaluator
	Containment Containment // may be nil
	RateLimiter RateLimiter // may be nil
	Logger      *slog.Logger
	Metrics     *monitoring.Metrics // may be nil
}

// New builds a Processor from cfg.
func New(cfg Config) *Processor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		queue:       cfg.Queue,
		store:       cfg.Store,
		engine:      cfg.Engine,
		containment: cfg.Containment,
		limiter:     cfg.RateLimiter,
		logger:      logger,
		metrics:     cfg.Metrics,
	}
}

// Process dequeues one Batch for (accountID, hostID) and drains it:
// normalize -> insert -> on Inserted, evaluate rules. While the queue is
// empty Process waits for a Batch and returns ctx's error if ctx is
// cancelled first; it does not return early on an empty, open queue. It
// returns nil without doing any work only once the queue has been closed
// and drained. Errors from normalize abort the remaining batch; errors from
// insert or rule evaluation propagate as typed errors.
//
// Cancelling ctx drops the remaining Batch; already-inserted logs and
// already-emitted alerts are final — there is no rollback.
func (p *Processor) Process(ctx context.Context, accountID, hostID string) error {
	b, ok, err := p.queue.Dequeue(ctx)
	if err != nil {
		return fmt.Errorf("processor: dequeue: %w", err)
	}
	if !ok {
		return nil
	}

	if p.containment != nil && p.containment.IsContained(accountID, hostID) {
		p.logger.Warn("skipping contained source", "account_id", accountID, "host_id", hostID)
		return nil
	}

	if p.limiter != nil && !p.limiter.Allow(accountID) {
		p.logger.Warn("account over ingest rate limit, re-queueing batch",
			"account_id", accountID, "host_id", hostID, "lines", b.Len())
		if err := p.queue.EnqueueContext(ctx, b); err != nil {
			return fmt.Errorf("processor: re-queueing rate-limited batch: %w", err)
		}
		return nil
	}

	for _, raw := range b.Lines {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("processor: cancelled mid-batch: %w", err)
		}

		if err := p.processLine(ctx, raw, accountID, hostID); err != nil {
			if errors.Is(err, normalize.ErrInvalidFormat) {
				if p.metrics != nil {
					p.metrics.RecordParseError(accountID, "invalid_format")
				}
				if p.containment != nil {
					p.containment.RecordInvalidFormat(accountID, hostID)
				}
				return fmt.Errorf("processor: %w", err)
			}
			return err
		}

		if p.containment != nil {
			p.containment.RecordValid(accountID, hostID)
		}
	}

	return nil
}

func (p *Processor) processLine(ctx context.Context, raw, accountID, hostID string) error {
	nl, err := normalize.Normalize(raw, accountID, hostID)
	if err != nil {
		return err
	}

	stored, outcome, err := p.store.Insert(ctx, nl)
	if err != nil {
		return fmt.Errorf("processor: insert: %w", err)
	}

	if p.metrics != nil {
		p.metrics.RecordIngest(accountID, 1)
	}

	if outcome == logstore.Duplicate {
		if p.metrics != nil {
			p.metrics.RecordDuplicate(accountID)
		}
		return nil
	}

	_ = stored // reserved for future use (e.g. returning inserted ids)

	if _, err := p.engine.Evaluate(ctx, nl, accountID); err != nil {
		return fmt.Errorf("processor: rule evaluation: %w", err)
	}

	return nil
}

var _ Containment = (*containment.Tracker)(nil)

// Target identifies the (account, host) context a worker drains the shared
// queue against.
type Target struct {
	AccountID string
	HostID    string
}

// drainJob repeatedly calls Process for one Target until ctx is cancelled,
// satisfying internal/worker.Job so RunWorkers can use the generic pool.
type drainJob struct {
	proc   *Processor
	target Target
}

// drainResult satisfies worker.Result.
type drainResult struct{ err error }

func (r drainResult) Error() error { return r.err }

func (j drainJob) Execute(ctx context.Context) worker.Result {
	for {
		if ctx.Err() != nil {
			return drainResult{}
		}
		err := j.proc.Process(ctx, j.target.AccountID, j.target.HostID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return drainResult{}
			}
			j.proc.logger.Error("processor: drain loop error",
				"account_id", j.target.AccountID,
				"host_id", j.target.HostID,
				"error", err,
			)
		}
	}
}

// RunWorkers spawns one worker.Job per target on a worker.SpawnWorkerPool of
// numWorkers goroutines, each looping Process for its target until ctx is
// cancelled. It returns the pool's WaitGroup; callers cancel ctx and Wait
// for a clean shutdown. len(targets) jobs are queued regardless of
// numWorkers; since each job runs until ctx is cancelled, targets beyond
// the first numWorkers are not drained.
func (p *Processor) RunWorkers(ctx context.Context, targets []Target, numWorkers int) *sync.WaitGroup {
	jobs := make(chan worker.Job, len(targets))
	for _, t := range targets {
		jobs <- drainJob{proc: p, target: t}
	}
	close(jobs)
	return worker.SpawnWorkerPool(ctx, numWorkers, jobs, p.logger)
}
