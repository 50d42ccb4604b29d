package database

import (
	"context"
	"testing"

	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBalance(t *testing.T) {
	svc := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, svc, "alice")

	balance, err := svc.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Points)
	assert.Equal(t, int64(0), balance.ForgeStaked)

	_, err = svc.GetBalance(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}

func TestGetBalanceHistory(t *testing.T) {
	svc := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, svc, "alice")

	fundPoints(t, svc, "alice", 100)
	fundPoints(t, svc, "alice", 50)

	history, err := svc.GetBalanceHistory(ctx, "alice", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)

	total := int64(0)
	for _, e := range history {
		assert.Equal(t, models.AssetPoints, e.Asset)
		assert.Equal(t, models.EntryDeposit, e.Kind)
		assert.Equal(t, e.BalanceBefore+e.Change, e.BalanceAfter)
		total += e.Change
	}
	assert.Equal(t, int64(150), total)

	page, err := svc.GetBalanceHistory(ctx, "alice", 1, 1)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestReconcileBalance(t *testing.T) {
	svc := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, svc, "alice")
	fundPoints(t, svc, "alice", 300)

	require.NoError(t, svc.ReconcileBalance(ctx, "alice"))

	_, err := svc.db.ExecContext(ctx, `UPDATE balances SET points = points + 1 WHERE user_id = ?`, "alice")
	require.NoError(t, err)

	err = svc.ReconcileBalance(ctx, "alice")
	assert.ErrorIs(t, err, store.ErrReconciliationMismatch)
}

func TestListBalanceReports_HonorsUserPolicy(t *testing.T) {
	svc := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, svc, "alice")
	seedUser(t, svc, "treasury")
	fundPoints(t, svc, "alice", 10)
	fundPoints(t, svc, "treasury", 1000)

	reports, err := svc.ListBalanceReports(ctx, false)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "treasury", reports[0].UserId)

	require.NoError(t, svc.SetUserPolicy(ctx, "treasury", true, "house wallet"))

	policy, err := svc.GetUserPolicy(ctx, "treasury")
	require.NoError(t, err)
	assert.True(t, policy.ExcludeFromReports)
	assert.Equal(t, "house wallet", policy.Note)

	reports, err = svc.ListBalanceReports(ctx, false)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "alice", reports[0].UserId)
	assert.Equal(t, "wallet-alice", reports[0].WalletAddress)

	reports, err = svc.ListBalanceReports(ctx, true)
	require.NoError(t, err)
	assert.Len(t, reports, 2)

	assert.ErrorIs(t, svc.SetUserPolicy(ctx, "ghost", true, ""), store.ErrUserNotFound)
}

func TestCreateUser(t *testing.T) {
	svc := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, svc, "alice")

	_, err := svc.CreateUser(ctx, "alice", "other")
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = svc.CreateUser(ctx, "", "wallet")
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	policy, err := svc.GetUserPolicy(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, policy.ExcludeFromReports)

	users, err := svc.GetUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
