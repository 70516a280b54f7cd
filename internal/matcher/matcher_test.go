package matcher_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tapcoin/internal/chainfeed"
	claimdomain "github.com/smallbiznis/tapcoin/internal/claim/domain"
	claimrepo "github.com/smallbiznis/tapcoin/internal/claim/repository"
	"github.com/smallbiznis/tapcoin/internal/config"
	"github.com/smallbiznis/tapcoin/internal/matcher"
	"github.com/smallbiznis/tapcoin/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockFeed struct {
	mock.Mock
}

func (m *mockFeed) Recent(ctx context.Context) ([]chainfeed.Transfer, error) {
	args := m.Called(ctx)
	transfers, _ := args.Get(0).([]chainfeed.Transfer)
	return transfers, args.Error(1)
}

var created = time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

func newMatcher(t *testing.T, feed chainfeed.Feed, slop time.Duration) (*matcher.Matcher, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	m := matcher.New(matcher.Params{
		DB:  db,
		Log: zap.NewNop(),
		Cfg: config.Config{Tron: config.TronConfig{
			TimeSlop:   slop,
			MaxOverpay: decimal.NewFromInt(1000),
		}},
		Feed:   feed,
		Claims: claimrepo.Provide(),
	})
	return m, db
}

func transfer(id, amount string, ts time.Time) chainfeed.Transfer {
	return chainfeed.Transfer{TxID: id, Amount: decimal.RequireFromString(amount), BlockTimestamp: ts.Unix()}
}

func TestFindAmountWindow(t *testing.T) {
	cases := []struct {
		amount string
		match  bool
	}{
		{"9.999999", false},
		{"10.0", true},
		{"1010.0", true},
		{"1010.000001", false},
	}

	for _, tc := range cases {
		t.Run(tc.amount, func(t *testing.T) {
			feed := &mockFeed{}
			feed.On("Recent", mock.Anything).Return([]chainfeed.Transfer{transfer("tx-"+tc.amount, tc.amount, created.Add(time.Minute))}, nil)
			m, _ := newMatcher(t, feed, 300*time.Second)

			got, ok, err := m.Find(context.Background(), decimal.NewFromInt(10), created)
			require.NoError(t, err)
			assert.Equal(t, tc.match, ok)
			if tc.match {
				assert.Equal(t, "tx-"+tc.amount, got.Transfer.TxID)
			}
			feed.AssertExpectations(t)
		})
	}
}

func TestFindTimeWindow(t *testing.T) {
	cases := []struct {
		name   string
		offset time.Duration
		match  bool
	}{
		{"before_slop", -121 * time.Second, false},
		{"inside_slop", -119 * time.Second, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			feed := &mockFeed{}
			feed.On("Recent", mock.Anything).Return([]chainfeed.Transfer{transfer("tx", "10", created.Add(tc.offset))}, nil)
			m, _ := newMatcher(t, feed, 120*time.Second)

			_, ok, err := m.Find(context.Background(), decimal.NewFromInt(10), created)
			require.NoError(t, err)
			assert.Equal(t, tc.match, ok)
		})
	}
}

func TestFindSkipsClaimedAndPrefersNewest(t *testing.T) {
	feed := &mockFeed{}
	feed.On("Recent", mock.Anything).Return([]chainfeed.Transfer{
		transfer("tx-old", "10.5", created.Add(1*time.Minute)),
		transfer("tx-newest", "10.2", created.Add(3*time.Minute)),
		transfer("tx-mid", "10.1", created.Add(2*time.Minute)),
	}, nil)
	m, db := newMatcher(t, feed, 300*time.Second)

	won, err := claimrepo.Provide().Claim(context.Background(), db, &claimdomain.ClaimedTransaction{
		TxID:      "tx-newest",
		InvoiceID: 99,
		Amount:    decimal.RequireFromString("10.2"),
		ClaimedAt: created,
	})
	require.NoError(t, err)
	require.True(t, won)

	got, ok, err := m.Find(context.Background(), decimal.NewFromInt(10), created)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tx-mid", got.Transfer.TxID)
}

func TestFindFeedFailureIsNoMatch(t *testing.T) {
	feed := &mockFeed{}
	feed.On("Recent", mock.Anything).Return(nil, errors.Join(chainfeed.ErrFeedRequestTimeout, context.DeadlineExceeded))
	m, _ := newMatcher(t, feed, 300*time.Second)

	_, ok, err := m.Find(context.Background(), decimal.NewFromInt(10), created)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestNewestFirstIsStable(t *testing.T) {
	in := []chainfeed.Transfer{
		transfer("a", "1", created),
		transfer("b", "1", created.Add(time.Second)),
		transfer("c", "1", created),
	}
	out := matcher.NewestFirst{}.Order(in)
	assert.Equal(t, []string{"b", "a", "c"}, []string{out[0].TxID, out[1].TxID, out[2].TxID})
	assert.Equal(t, "a", in[0].TxID)
	assert.Equal(t, "newest_first", matcher.NewestFirst{}.Name())
}
