package api

import (
	"context"
	"testing"

	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestDeposit_RedeliveryCreditsOnce(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedUser(t, db, "alice")

	sigX := sig("sigX")
	first, err := svc.IngestDeposit(ctx, deposit(sigX, "alice", pointsMint, 500))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, first.Status)
	assert.False(t, first.Replayed)
	assert.Equal(t, int64(500), first.Credited)
	assert.Equal(t, int64(500), first.NewBalance)

	second, err := svc.IngestDeposit(ctx, deposit(sigX, "alice", pointsMint, 500))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSucceeded, second.Status)
	assert.True(t, second.Replayed)
	assert.Equal(t, int64(500), second.Credited)

	balance, err := svc.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance.Points)
	require.NoError(t, svc.ReconcileBalance(ctx, "alice"))
}

func TestIngestDeposit_Routing(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedUser(t, db, "alice")

	t.Run("forge stake is scaled", func(t *testing.T) {
		event := deposit(sig("stake"), "alice", stakeMint, 0)
		event.Amount = decimal.RequireFromString("1.29")

		outcome, err := svc.IngestDeposit(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, models.StatusSucceeded, outcome.Status)
		assert.Equal(t, int64(12), outcome.Credited)
		assert.Equal(t, int64(12), outcome.NewBalance)
	})

	t.Run("presale payments do not credit a balance", func(t *testing.T) {
		outcome, err := svc.IngestDeposit(ctx, deposit(sig("usdc"), "alice", usdcMint, 40))
		require.NoError(t, err)
		assert.Equal(t, models.StatusSucceeded, outcome.Status)
		assert.Equal(t, int64(0), outcome.Credited)

		balance, err := svc.GetBalance(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(0), balance.Points)
	})

	t.Run("unsupported token fails and replays as failed", func(t *testing.T) {
		signature := sig("unknown-mint")
		outcome, err := svc.IngestDeposit(ctx, deposit(signature, "alice", "OtherMint", 10))
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, outcome.Status)
		assert.Equal(t, reasonUnsupportedToken, outcome.Reason)
		assert.False(t, outcome.Replayed)

		again, err := svc.IngestDeposit(ctx, deposit(signature, "alice", "OtherMint", 10))
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, again.Status)
		assert.True(t, again.Replayed)
	})

	t.Run("fractions below one unit fail", func(t *testing.T) {
		event := deposit(sig("dust"), "alice", pointsMint, 0)
		event.Amount = decimal.RequireFromString("0.5")

		outcome, err := svc.IngestDeposit(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, outcome.Status)
		assert.Equal(t, reasonBelowMinimum, outcome.Reason)
	})
}

func TestIngestDeposit_UnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	outcome, err := svc.IngestDeposit(context.Background(), deposit(sig("ghost"), "ghost", pointsMint, 10))
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, outcome.Status)
	assert.Equal(t, "user not found", outcome.Reason)
}

func TestIngestDeposit_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		event func() models.DepositEvent
	}{
		{"empty signature", func() models.DepositEvent { return deposit("", "alice", pointsMint, 10) }},
		{"malformed signature", func() models.DepositEvent { return deposit("not-a-signature", "alice", pointsMint, 10) }},
		{"zero amount", func() models.DepositEvent { return deposit(sig("zero"), "alice", pointsMint, 0) }},
		{"negative amount", func() models.DepositEvent { return deposit(sig("neg"), "alice", pointsMint, -5) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.IngestDeposit(ctx, tt.event())
			assert.ErrorIs(t, err, store.ErrInvalidInput)
		})
	}
}
