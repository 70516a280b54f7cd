package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tapcoin/internal/invoice/domain"
	"github.com/smallbiznis/tapcoin/internal/invoice/repository"
	"github.com/smallbiznis/tapcoin/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var base = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func insertPending(t *testing.T, db *gorm.DB, id int64, createdAt time.Time) domain.Invoice {
	t.Helper()
	inv := domain.Invoice{
		ID:           snowflake.ID(id),
		UserID:       9,
		PackageID:    1,
		BasePrice:    decimal.NewFromInt(10),
		UniqueAmount: decimal.RequireFromString("10.0001"),
		Status:       domain.InvoiceStatusPending,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	require.NoError(t, repository.Provide().Insert(context.Background(), db, &inv))
	return inv
}

func TestMarkPaidOnlyOncePerTransfer(t *testing.T) {
	db := dbtest.Open(t)
	repo := repository.Provide()
	ctx := context.Background()
	a := insertPending(t, db, 1, base)
	b := insertPending(t, db, 2, base)
	amount := decimal.RequireFromString("10.0001")

	marked, err := repo.MarkPaid(ctx, db, int64(a.ID), "tx-1", amount, base.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = repo.MarkPaid(ctx, db, int64(b.ID), "tx-1", amount, base.Add(time.Minute))
	require.NoError(t, err, "a transfer already on another invoice is a lost race, not a failure")
	assert.False(t, marked)

	marked, err = repo.MarkPaid(ctx, db, int64(a.ID), "tx-2", amount, base.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, marked, "paid invoices stay paid")

	stored, err := repo.FindByID(ctx, db, int64(b.ID))
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusPending, stored.Status)
	assert.Nil(t, stored.TxID)
}

func TestListPendingPagesNewestFirst(t *testing.T) {
	db := dbtest.Open(t)
	repo := repository.Provide()
	ctx := context.Background()
	for i := int64(1); i <= 5; i++ {
		insertPending(t, db, i, base.Add(time.Duration(i)*time.Second))
	}
	// same timestamp as id 5; id breaks the tie
	insertPending(t, db, 6, base.Add(5*time.Second))

	first, err := repo.ListPending(ctx, db, base, domain.PendingCursor{}, 4)
	require.NoError(t, err)
	require.Len(t, first, 4)
	assert.Equal(t, []snowflake.ID{6, 5, 4, 3}, ids(first))

	rest, err := repo.ListPending(ctx, db, base, domain.CursorAfter(first[len(first)-1]), 4)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{2, 1}, ids(rest))

	tie, err := repo.ListPending(ctx, db, base, domain.CursorAfter(first[0]), 1)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{5}, ids(tie))
}

func ids(invoices []domain.Invoice) []snowflake.ID {
	out := make([]snowflake.ID, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, inv.ID)
	}
	return out
}
