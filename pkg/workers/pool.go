// Package workers runs the summary worker pool: a fixed set of goroutines
// draining the summary queue and applying a handler to each job, with
// ack/nack/dead-letter bookkeeping.
package workers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
	"github.com/ismaeeldev/nexa-server/pkg/queues"
)

// JobHandler processes one summary job.
type JobHandler func(ctx context.Context, job *queues.SummaryJob) error

// Config configures the worker pool.
type Config struct {
	Count           int           `yaml:"count"`
	BatchSize       int           `yaml:"batch_size"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultConfig returns pool defaults sized for transcript summarization.
func DefaultConfig() Config {
	return Config{
		Count:           2,
		BatchSize:       1,
		PollInterval:    time.Second,
		JobTimeout:      290 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// staleRecoverer is implemented by queues that can reclaim jobs whose
// visibility timeout expired.
type staleRecoverer interface {
	RecoverStaleJobs(ctx context.Context) error
}

// worker is one goroutine draining the queue.
type worker struct {
	id      string
	config  Config
	queue   queues.Queue
	handler JobHandler
	logger  logging.Logger

	processed atomic.Int64
	failed    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newWorker(config Config, queue queues.Queue, handler JobHandler, logger logging.Logger) *worker {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	return &worker{
		id:      id,
		config:  config,
		queue:   queue,
		handler: handler,
		logger:  logger.With(logging.F("worker_id", id)),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (w *worker) start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.processLoop()
	}()
}

func (w *worker) stop() {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker did not drain before shutdown timeout")
	}
}

func (w *worker) processLoop() {
	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			jobs, err := w.queue.Dequeue(w.ctx, w.config.BatchSize, w.config.PollInterval)
			if err != nil {
				if w.ctx.Err() != nil || err == queues.ErrQueueClosed {
					return
				}
				w.logger.Error("Failed to dequeue jobs", logging.Err(err))
				time.Sleep(w.config.PollInterval)
				continue
			}

			for _, qj := range jobs {
				if w.ctx.Err() != nil {
					return
				}
				w.processJob(qj)
			}
		}
	}
}

func (w *worker) processJob(qj *queues.QueuedJob) {
	job, err := qj.ParseJob()
	if err != nil {
		// Unparseable jobs never succeed; straight to the DLQ.
		w.queue.MoveToDeadLetter(w.ctx, qj.ID, fmt.Sprintf("parse error: %v", err))
		w.failed.Add(1)
		return
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.config.JobTimeout)
	defer cancel()

	if err := w.handler(ctx, job); err != nil {
		outcome := nxerrors.OutcomeForError(err)
		if nxerrors.IsRetryable(outcome) {
			w.queue.Nack(w.ctx, qj.ID)
		} else {
			w.queue.MoveToDeadLetter(w.ctx, qj.ID, err.Error())
		}
		w.failed.Add(1)
		w.logger.Warn("Summary job failed",
			logging.F("meeting_id", job.MeetingID),
			logging.F("outcome", string(outcome)),
			logging.Err(err))
		return
	}

	w.queue.Ack(w.ctx, qj.ID)
	w.processed.Add(1)
}

// Pool manages the summary workers.
type Pool struct {
	config  Config
	queue   queues.Queue
	handler JobHandler
	logger  logging.Logger

	mu      sync.Mutex
	workers []*worker
	cancel  context.CancelFunc
}

// NewPool creates a worker pool over the given queue.
func NewPool(config Config, queue queues.Queue, handler JobHandler, logger logging.Logger) *Pool {
	if config.Count <= 0 {
		config.Count = DefaultConfig().Count
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultConfig().JobTimeout
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultConfig().ShutdownTimeout
	}

	return &Pool{
		config:  config,
		queue:   queue,
		handler: handler,
		logger:  logger.With(logging.F("component", "summary_pool")),
	}
}

// Start launches the workers and, when the queue supports it, a background
// loop reclaiming jobs whose visibility timeout expired.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < p.config.Count; i++ {
		w := newWorker(p.config, p.queue, p.handler, p.logger)
		w.start()
		p.workers = append(p.workers, w)
	}

	if recoverer, ok := p.queue.(staleRecoverer); ok {
		ctx, cancel := context.WithCancel(context.Background())
		p.cancel = cancel
		go p.recoverLoop(ctx, recoverer)
	}

	p.logger.Info("Summary workers started", logging.F("count", p.config.Count))
}

func (p *Pool) recoverLoop(ctx context.Context, recoverer staleRecoverer) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := recoverer.RecoverStaleJobs(ctx); err != nil {
				p.logger.Error("Failed to recover stale jobs", logging.Err(err))
			}
		}
	}
}

// Stop gracefully stops all workers.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		p.cancel()
	}

	var wg sync.WaitGroup
	for _, w := range p.workers {
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			w.stop()
		}(w)
	}
	wg.Wait()
	p.workers = nil

	p.logger.Info("Summary workers stopped")
}

// Stats contains pool counters.
type Stats struct {
	WorkerCount int
	Processed   int64
	Failed      int64
}

// Stats returns aggregate pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := Stats{WorkerCount: len(p.workers)}
	for _, w := range p.workers {
		stats.Processed += w.processed.Load()
		stats.Failed += w.failed.Load()
	}
	return stats
}
