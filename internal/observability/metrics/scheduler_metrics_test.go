package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: SchedulerJobReasonDeadlineExceeded,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SchedulerJobReasonDBLockTimeout,
		},
		{
			name: "serialization_failure",
			err:  &pgconn.PgError{Code: "40001"},
			want: SchedulerJobReasonSerializationFailure,
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: SchedulerJobReasonUniqueViolation,
		},
		{
			name: "other_pg_error",
			err:  &pgconn.PgError{Code: "08006"},
			want: SchedulerJobReasonDB,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: SchedulerJobReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsSchedulerErrorRetryable(t *testing.T) {
	if !IsSchedulerErrorRetryable(context.DeadlineExceeded) {
		t.Fatalf("deadline should be retryable")
	}
	if IsSchedulerErrorRetryable(gorm.ErrRecordNotFound) {
		t.Fatalf("not found should not be retryable")
	}
	if IsSchedulerErrorRetryable(nil) {
		t.Fatalf("nil should not be retryable")
	}
}

func TestSweepCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "tapcoin",
		Environment: "test",
	})

	metrics.IncInvoiceSwept(SweepOutcomePaid)
	metrics.IncInvoiceSwept(SweepOutcomePending)
	metrics.IncInvoiceSwept(SweepOutcomePending)
	metrics.IncJobSkipped("reconcile_pending", SchedulerSkipReasonLockHeld)
	metrics.ObserveRunLoopLag(-time.Second)

	if got := testutil.ToFloat64(metrics.invoicesSwept.WithLabelValues(SweepOutcomePending)); got != 2 {
		t.Fatalf("expected pending count 2, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.invoicesSwept.WithLabelValues(SweepOutcomePaid)); got != 1 {
		t.Fatalf("expected paid count 1, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.jobSkipped.WithLabelValues("reconcile_pending", SchedulerSkipReasonLockHeld)); got != 1 {
		t.Fatalf("expected skipped count 1, got %v", got)
	}
}
