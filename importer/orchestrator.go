package importer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nonsonwune/censo_db/errors"
	"github.com/nonsonwune/censo_db/metrics"
	"golang.org/x/sync/errgroup"
)

// Status is the outcome of one job.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Result records what happened to one job. Rows is the committed count,
// which a failed job may also report.
type Result struct {
	Job      string
	Status   Status
	Rows     int
	Reason   string
	Err      error
	Duration time.Duration
}

// Summary is the outcome of a run, one Result per job in submission order.
type Summary struct {
	RunID   string
	Started time.Time
	Results []Result
}

// Rows returns the total committed rows.
func (s Summary) Rows() int {
	n := 0
	for _, r := range s.Results {
		n += r.Rows
	}
	return n
}

// Count returns the number of jobs that ended with status.
func (s Summary) Count(status Status) int {
	n := 0
	for _, r := range s.Results {
		if r.Status == status {
			n++
		}
	}
	return n
}

// Orchestrator runs independent jobs and contains their failures: a failing
// job never stops the others.
type Orchestrator struct {
	parallelism int
	logger      *slog.Logger
}

// NewOrchestrator returns an orchestrator running up to parallelism jobs at
// once. Values below 1 run jobs one after the other.
func NewOrchestrator(parallelism int, logger *slog.Logger) *Orchestrator {
	if parallelism < 1 {
		parallelism = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{parallelism: parallelism, logger: logger}
}

// Run executes jobs and returns their summary.
func (o *Orchestrator) Run(ctx context.Context, jobs []Job) Summary {
	s := Summary{
		RunID:   uuid.NewString(),
		Started: time.Now(),
		Results: make([]Result, len(jobs)),
	}
	logger := o.logger.With("run", s.RunID)
	logger.Info("ingestion started", "jobs", len(jobs), "parallelism", o.parallelism)

	var g errgroup.Group
	g.SetLimit(o.parallelism)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			s.Results[i] = o.runJob(ctx, logger, job)
			return nil
		})
	}
	g.Wait()

	logger.Info("ingestion finished",
		"success", s.Count(StatusSuccess),
		"skipped", s.Count(StatusSkipped),
		"failed", s.Count(StatusFailed),
		"rows", s.Rows(),
		"duration", time.Since(s.Started))
	return s
}

func (o *Orchestrator) runJob(ctx context.Context, logger *slog.Logger, job Job) (res Result) {
	res.Job = job.Name()
	start := time.Now()
	logger = logger.With("job", res.Job)

	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusFailed
			res.Err = errors.Errorf("panic: %v", r)
			res.Reason = res.Err.Error()
		}
		res.Duration = time.Since(start)
		metrics.CounterIngestRows.WithLabelValues(res.Job).Add(float64(res.Rows))
		metrics.CounterIngestJobs.WithLabelValues(res.Job, string(res.Status)).Inc()

		switch res.Status {
		case StatusSuccess:
			logger.Info("job succeeded", "rows", res.Rows, "duration", res.Duration)
		case StatusSkipped:
			logger.Warn("job skipped", "reason", res.Reason)
		default:
			logger.Error("job failed", "rows", res.Rows, "err", res.Err)
		}
	}()

	rows, err := job.Run(ctx)
	res.Rows = rows
	switch {
	case err == nil:
		res.Status = StatusSuccess
	case skippable(err):
		res.Status = StatusSkipped
		res.Reason = fmt.Sprintf("%s: %s", errors.CodeOf(err), err)
		res.Err = err
	default:
		res.Status = StatusFailed
		res.Reason = fmt.Sprintf("%s: %s", errors.CodeOf(err), err)
		res.Err = err
	}
	return res
}

// skippable errors mean the source is absent or already loaded, not broken.
func skippable(err error) bool {
	return errors.Is(err, errors.ErrSourceNotFound) ||
		errors.Is(err, errors.ErrUnresolvedPartition) ||
		errors.Is(err, errors.ErrConflict)
}
