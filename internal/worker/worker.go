package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/compliq/internal/metrics"
	"github.com/robfig/cron/v3"
)

// ErrJobRunning is returned by RunNow while a scheduled run is in progress.
var ErrJobRunning = errors.New("job is already running")

// parser accepts five-field specs and descriptors such as "@every 1h".
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Worker runs registered jobs on cron schedules.
type Worker struct {
	cron    *cron.Cron
	config  Config
	logger  *slog.Logger
	entries map[string]*entry

	// Base context for scheduled runs; canceled on Stop.
	ctx    context.Context
	cancel context.CancelFunc
}

type entry struct {
	handler  JobHandler
	schedule string
	id       cron.EntryID
	mu       sync.Mutex
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cronLogger := slogCronLogger{logger: logger}
	return &Worker{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		config:  config,
		logger:  logger,
		entries: make(map[string]*entry),
		ctx:     context.Background(),
		cancel:  func() {},
	}, nil
}

// ValidateSchedule reports whether spec is a schedule Register accepts.
func ValidateSchedule(spec string) error {
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}
	return nil
}

// Register schedules a job handler. The handler's Type() must be unique.
// Call this before Start().
func (w *Worker) Register(schedule string, handler JobHandler) error {
	jobType := handler.Type()
	if _, exists := w.entries[jobType]; exists {
		return fmt.Errorf("job %q is already registered", jobType)
	}
	if err := ValidateSchedule(schedule); err != nil {
		return err
	}

	e := &entry{handler: handler, schedule: schedule}
	id, err := w.cron.AddFunc(schedule, func() {
		_ = w.run(w.ctx, e)
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", jobType, err)
	}
	e.id = id
	w.entries[jobType] = e

	w.logger.Debug("Registered job", "job_type", jobType, "schedule", schedule)
	return nil
}

// Start begins running jobs on their schedules until ctx is canceled or Stop
// is called.
func (w *Worker) Start(ctx context.Context) {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.cron.Start()

	for jobType, e := range w.entries {
		w.logger.Info("Job scheduled",
			"job_type", jobType,
			"schedule", e.schedule,
			"next_run", w.cron.Entry(e.id).Next,
		)
	}
	w.logger.Info("Worker started", "jobs", len(w.entries))
}

// Stop halts scheduling and waits for running jobs to finish.
// It respects the configured ShutdownTimeout.
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	done := w.cron.Stop().Done()

	select {
	case <-done:
		w.logger.Info("Worker stopped gracefully")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("Worker shutdown timeout exceeded, canceling running jobs")
	}
	w.cancel()
}

// RunNow runs a registered job immediately and returns its error.
func (w *Worker) RunNow(ctx context.Context, jobType string) error {
	e, ok := w.entries[jobType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, jobType)
	}
	return w.run(ctx, e)
}

// run executes one job with a timeout. Runs of the same job never overlap.
func (w *Worker) run(ctx context.Context, e *entry) error {
	jobType := e.handler.Type()
	logger := w.logger.With("job_type", jobType)

	if !e.mu.TryLock() {
		logger.Warn("Skipping run, previous run still in progress")
		metrics.JobsTotal.WithLabelValues(jobType, "skipped").Inc()
		return ErrJobRunning
	}
	defer e.mu.Unlock()

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	start := time.Now()
	logger.Debug("Running job")
	err := e.handler.Handle(jobCtx)
	duration := time.Since(start)

	metrics.JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
	if err != nil {
		metrics.JobsTotal.WithLabelValues(jobType, "failed").Inc()
		logger.Error("Job failed", "error", err, "duration_ms", duration.Milliseconds())
		return err
	}

	metrics.JobsTotal.WithLabelValues(jobType, "completed").Inc()
	logger.Info("Job completed", "duration_ms", duration.Milliseconds())
	return nil
}

// slogCronLogger adapts slog to cron.Logger.
type slogCronLogger struct {
	logger *slog.Logger
}

func (l slogCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l slogCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
