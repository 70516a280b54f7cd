package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v5"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tapcoin/internal/clock"
	invoicedomain "github.com/smallbiznis/tapcoin/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/tapcoin/internal/observability/metrics"
	reconciledomain "github.com/smallbiznis/tapcoin/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	jobReconcileSweep = "reconcile_sweep"
	sweepSource       = "sweep"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log        *zap.Logger
	Invoices   invoicedomain.Service
	Reconciler reconciledomain.Service
	Redis      *redis.Client `optional:"true"`
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     Config `optional:"true"`
}

type Scheduler struct {
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	invoices   invoicedomain.Service
	reconciler reconciledomain.Service
	lease      SweepLease
	backoff    *backoff.ExponentialBackOff
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Invoices == nil || p.Reconciler == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	return &Scheduler{
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        cfg,
		genID:      p.GenID,
		clock:      p.Clock,
		invoices:   p.Invoices,
		reconciler: p.Reconciler,
		lease:      NewRedisLease(p.Redis),
		backoff:    newBackoff(cfg),
	}, nil
}

func newBackoff(cfg Config) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.RunInterval
	b.MaxInterval = cfg.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	b.Reset()
	return b
}

func (s *Scheduler) runJob(
	parent context.Context,
	run *jobRun,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	name := run.job
	ctx, cancel := context.WithTimeout(withJobRun(parent, run), timeout)
	defer cancel()

	s.logJobStart(ctx, run)
	log := s.logger(ctx).With(zap.String("job", name))
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(run.startedAt))
	if err != nil && run.failures == 0 {
		run.fail()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next run picks up where this one stopped
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce performs one sweep. With Redis configured the run holds the sweep
// lease for its whole duration; a replica that cannot take it skips the run.
func (s *Scheduler) RunOnce(parent context.Context) error {
	schedMetrics := obsmetrics.Scheduler()
	run := s.newJobRun(jobReconcileSweep, s.cfg.BatchSize)

	if s.lease != nil {
		ok, err := s.lease.Acquire(parent, run.job, run.runID, s.cfg.LeaseTTL())
		if err != nil {
			schedMetrics.IncJobSkipped(run.job, obsmetrics.SchedulerSkipReasonLockFailed)
			s.log.Warn("sweep lease failed", zap.Error(err))
			return nil
		}
		if !ok {
			schedMetrics.IncJobSkipped(run.job, obsmetrics.SchedulerSkipReasonLockHeld)
			s.log.Debug("sweep lease held by another replica")
			return nil
		}
		defer func() {
			if err := s.lease.Release(context.WithoutCancel(parent), run.job, run.runID); err != nil {
				s.log.Warn("sweep lease release failed", zap.String("run_id", run.runID), zap.Error(err))
			}
		}()
	}

	return s.runJob(parent, run, s.cfg.JobTimeout, s.SweepPendingJob)
}

// SweepPendingJob checks every pending invoice inside MaxAge once, newest
// first, a page of BatchSize at a time. It never credits anything itself;
// settlement goes through the same Check the client uses.
func (s *Scheduler) SweepPendingJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, jobReconcileSweep, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	cutoff := s.clock.Now().Add(-s.cfg.MaxAge)
	ctx = reconciledomain.WithSource(ctx, sweepSource)

	var (
		jobErr error
		cursor invoicedomain.PendingCursor
	)
	for {
		page, err := s.invoices.ListPending(ctx, cutoff, cursor, s.cfg.BatchSize)
		if err != nil {
			return errors.Join(jobErr, err)
		}

		for _, inv := range page {
			if ctx.Err() != nil {
				return errors.Join(jobErr, ctx.Err())
			}

			result, err := s.reconciler.Check(ctx, int64(inv.ID), inv.UserID)
			switch {
			case err != nil:
				jobErr = errors.Join(jobErr, err)
				run.record(obsmetrics.SweepOutcomeFailed)
				s.logCheckError(ctx, inv.ID.String(), err)
			case result.Paid:
				run.record(obsmetrics.SweepOutcomePaid)
			default:
				run.record(obsmetrics.SweepOutcomePending)
			}
		}

		if len(page) < s.cfg.BatchSize {
			return jobErr
		}
		cursor = invoicedomain.CursorAfter(page[len(page)-1])
	}
}

// RunForever sweeps every interval plus jitter. Failed runs back off
// exponentially up to MaxBackoff; a clean run resets the delay.
func (s *Scheduler) RunForever(ctx context.Context) {
	schedMetrics := obsmetrics.Scheduler()
	nextRun := s.clock.Now()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}

		wait := s.nextDelay(s.RunOnce(ctx))
		nextRun = s.clock.Now().Add(wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Scheduler) nextDelay(runErr error) time.Duration {
	if runErr == nil {
		s.backoff.Reset()
		return s.cfg.RunInterval + jitter(s.cfg.RunInterval)
	}

	wait := s.backoff.NextBackOff()
	if wait == backoff.Stop || wait <= 0 {
		wait = s.cfg.MaxBackoff
	}
	s.log.Warn("scheduler run failed",
		zap.Duration("retry_in", wait),
		zap.Error(runErr),
	)
	return wait
}

// jitter returns up to a tenth of interval.
func jitter(interval time.Duration) time.Duration {
	span := int64(interval / 10)
	if span <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(span))
}
