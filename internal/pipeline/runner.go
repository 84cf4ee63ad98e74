package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner fans features out to a bounded worker pool. Features are
// independent: workers share only the read-only clients inside the pipeline,
// and one feature's outcome never affects another's.
type Runner struct {
	pipe    *Pipeline
	workers int
	timeout time.Duration
	logger  *slog.Logger
}

// NewRunner creates a runner with the given worker count and per-feature
// timeout (0 disables the timeout).
func NewRunner(pipe *Pipeline, workers int, perFeatureTimeout time.Duration) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{pipe: pipe, workers: workers, timeout: perFeatureTimeout, logger: slog.Default()}
}

// WithLogger sets a custom logger for the runner.
func (r *Runner) WithLogger(logger *slog.Logger) *Runner {
	r.logger = logger
	return r
}

// Run processes every feature and returns outcomes in input order plus the
// aggregate summary. The run always completes: per-feature errors (including
// an expired per-feature deadline) land in the outcome slice, they never
// abort the loop.
func (r *Runner) Run(ctx context.Context, features []Feature) ([]Outcome, Summary) {
	outcomes := make([]Outcome, len(features))
	if len(features) == 0 {
		return outcomes, Summary{}
	}

	workers := r.workers
	if workers > len(features) {
		workers = len(features)
	}

	jobs := make(chan int, len(features))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				outcomes[index] = r.processOne(ctx, features[index])
			}
		}()
	}

	for i := range features {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var summary Summary
	for _, out := range outcomes {
		summary.Add(out)
		attrs := []any{
			slog.String("feature_id", out.FeatureID),
			slog.String("status", out.Status.String()),
		}
		if out.Err != nil {
			attrs = append(attrs, slog.String("reason", out.Err.Error()))
		}
		if out.Path != "" {
			attrs = append(attrs, slog.String("path", out.Path))
		}
		r.logger.Info("feature processed", attrs...)
	}
	return outcomes, summary
}

func (r *Runner) processOne(ctx context.Context, f Feature) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{FeatureID: f.ID, Status: StatusFailed, Err: err}
	}

	fctx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.pipe.Process(fctx, f)
}
