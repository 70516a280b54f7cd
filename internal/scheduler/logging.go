package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/tapcoin/internal/observability/context"
	obslogger "github.com/smallbiznis/tapcoin/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tapcoin/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun is the per-run tally. The run id doubles as the request id so log
// lines from Check calls made by the sweep can be grouped.
type jobRun struct {
	job       string
	runID     string
	batchSize int
	startedAt time.Time
	outcomes  map[string]int
	failures  int
}

type jobRunKey struct{}

// record tallies one swept invoice and feeds the outcome counter.
func (r *jobRun) record(outcome string) {
	obsmetrics.Scheduler().IncInvoiceSwept(outcome)
	if r == nil {
		return
	}
	r.outcomes[outcome]++
	if outcome == obsmetrics.SweepOutcomeFailed {
		r.failures++
	}
}

func (r *jobRun) fail() {
	if r != nil {
		r.failures++
	}
}

func (s *Scheduler) newJobRun(job string, batchSize int) *jobRun {
	return &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		batchSize: batchSize,
		startedAt: s.clock.Now(),
		outcomes:  make(map[string]int, 3),
	}
}

func withJobRun(ctx context.Context, run *jobRun) context.Context {
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	return obscontext.WithRequestID(ctx, run.runID)
}

// ensureJobRun reuses the run already on ctx; otherwise the caller owns a new one.
func (s *Scheduler) ensureJobRun(ctx context.Context, job string, batchSize int) (context.Context, *jobRun, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing, ok := ctx.Value(jobRunKey{}).(*jobRun); ok {
		return ctx, existing, false
	}
	run := s.newJobRun(job, batchSize)
	return withJobRun(ctx, run), run, true
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.job),
		zap.Int("batch_size", run.batchSize),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("paid", run.outcomes[obsmetrics.SweepOutcomePaid]),
		zap.Int("pending", run.outcomes[obsmetrics.SweepOutcomePending]),
		zap.Int("failed", run.outcomes[obsmetrics.SweepOutcomeFailed]),
	}
	if run.failures > 0 {
		s.logger(ctx).Warn("scheduler.job.finish", fields...)
		return
	}
	s.logger(ctx).Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logCheckError(ctx context.Context, invoiceID string, err error) {
	s.logger(ctx).Error("scheduler.invoice.check.failed",
		zap.String("invoice_id", invoiceID),
		zap.String("error_type", obsmetrics.ClassifySchedulerJobReason(err)),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
		zap.Error(err),
	)
}
