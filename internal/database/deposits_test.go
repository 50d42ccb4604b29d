package database

import (
	"context"
	"sync"
	"testing"

	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reserveParams(signature, userId string, credited int64) store.ReserveDepositParams {
	return store.ReserveDepositParams{
		Signature:    signature,
		Sender:       "sender-wallet",
		TokenAddress: "mint-points",
		Amount:       decimal.NewFromInt(credited),
		UserId:       userId,
		Asset:        models.AssetPoints,
		Credited:     credited,
	}
}

func TestReserveAndApplyDeposit(t *testing.T) {
	svc := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, svc, "alice")

	t.Run("first reservation creates a pending record", func(t *testing.T) {
		record, created, err := svc.ReserveDeposit(ctx, reserveParams("sigX", "alice", 500))
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, models.StatusPending, record.Status)

		entry, err := svc.GetLedgerEntry(ctx, "sigX")
		require.NoError(t, err)
		assert.Equal(t, models.LedgerKindDeposit, entry.Kind)
		assert.Equal(t, models.StatusPending, entry.Status)
	})

	t.Run("second reservation returns the existing record", func(t *testing.T) {
		record, created, err := svc.ReserveDeposit(ctx, reserveParams("sigX", "alice", 500))
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, "sigX", record.Signature)
	})

	t.Run("apply credits once", func(t *testing.T) {
		record, applied, err := svc.ApplyDeposit(ctx, "sigX")
		require.NoError(t, err)
		assert.True(t, applied)
		assert.Equal(t, models.StatusSucceeded, record.Status)
		assert.Equal(t, int64(500), points(t, svc, "alice"))

		record, applied, err = svc.ApplyDeposit(ctx, "sigX")
		require.NoError(t, err)
		assert.False(t, applied)
		assert.Equal(t, models.StatusSucceeded, record.Status)
		assert.Equal(t, int64(500), points(t, svc, "alice"))

		entry, err := svc.GetLedgerEntry(ctx, "sigX")
		require.NoError(t, err)
		assert.Equal(t, models.StatusSucceeded, entry.Status)
	})

	t.Run("terminal deposits cannot be failed", func(t *testing.T) {
		record, err := svc.FailDeposit(ctx, "sigX", "late failure")
		require.NoError(t, err)
		assert.Equal(t, models.StatusSucceeded, record.Status)
		assert.Empty(t, record.Reason)
	})

	require.NoError(t, svc.ReconcileBalance(ctx, "alice"))
}

func TestApplyDeposit_ConcurrentCallersCreditOnce(t *testing.T) {
	svc := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, svc, "alice")

	_, _, err := svc.ReserveDeposit(ctx, reserveParams("sig-race", "alice", 250))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	appliedCount := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, applied, err := svc.ApplyDeposit(ctx, "sig-race")
			assert.NoError(t, err)
			if applied {
				mu.Lock()
				appliedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, appliedCount)
	assert.Equal(t, int64(250), points(t, svc, "alice"))
}

func TestApplyDeposit_UnknownUserFails(t *testing.T) {
	svc := setupTestDb(t)
	ctx := context.Background()

	_, _, err := svc.ReserveDeposit(ctx, reserveParams("sig-ghost", "ghost", 100))
	require.NoError(t, err)

	record, applied, err := svc.ApplyDeposit(ctx, "sig-ghost")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, models.StatusFailed, record.Status)
	assert.Equal(t, "user not found", record.Reason)

	entry, err := svc.GetLedgerEntry(ctx, "sig-ghost")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, entry.Status)
}

func TestApplyDeposit_ForgeStakeAndPresaleRoutes(t *testing.T) {
	svc := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, svc, "alice")

	stake := reserveParams("sig-stake", "alice", 40)
	stake.Asset = models.AssetForgeStake
	_, _, err := svc.ReserveDeposit(ctx, stake)
	require.NoError(t, err)
	_, _, err = svc.ApplyDeposit(ctx, "sig-stake")
	require.NoError(t, err)

	presale := reserveParams("sig-presale", "alice", 0)
	presale.Asset = models.AssetPresale
	_, _, err = svc.ReserveDeposit(ctx, presale)
	require.NoError(t, err)
	record, applied, err := svc.ApplyDeposit(ctx, "sig-presale")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, models.StatusSucceeded, record.Status)

	balance, err := svc.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Points)
	assert.Equal(t, int64(40), balance.ForgeStaked)
	require.NoError(t, svc.ReconcileBalance(ctx, "alice"))
}

func TestReserveDeposit_RejectsWithdrawalSignature(t *testing.T) {
	svc := setupTestDb(t)
	ctx := context.Background()
	seedUser(t, svc, "alice")
	fundPoints(t, svc, "alice", 300)

	request, err := svc.CreateWithdrawal(ctx, "alice", "dest-wallet")
	require.NoError(t, err)
	_, err = svc.MarkWithdrawalProcessing(ctx, request.Id)
	require.NoError(t, err)
	_, _, err = svc.CompleteWithdrawal(ctx, request.Id, "sig-payout")
	require.NoError(t, err)

	_, _, err = svc.ReserveDeposit(ctx, reserveParams("sig-payout", "alice", 300))
	assert.ErrorIs(t, err, store.ErrSignatureConflict)
}
