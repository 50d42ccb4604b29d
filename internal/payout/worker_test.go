package payout

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"forge-market-go/internal/api"
	"forge-market-go/internal/config"
	"forge-market-go/internal/database"
	"forge-market-go/internal/models"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pointsMint = "PointsMint"

type fakeSender struct {
	mu       sync.Mutex
	requests []models.PayoutRequest
	err      error
	sign     bool
}

func (f *fakeSender) Send(_ context.Context, payout models.PayoutRequest) (*models.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, payout)
	if f.err != nil {
		return nil, f.err
	}
	if f.sign {
		return &models.Payout{Reference: "act-" + payout.WithdrawalId, Signature: sig(payout.WithdrawalId)}, nil
	}
	return &models.Payout{Reference: "act-" + payout.WithdrawalId}, nil
}

func (f *fakeSender) sent() []models.PayoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PayoutRequest(nil), f.requests...)
}

func sig(label string) string {
	sum := sha512.Sum512([]byte(label))
	return base58.Encode(sum[:])
}

func addr(label string) string {
	sum := sha256.Sum256([]byte(label))
	return base58.Encode(sum[:])
}

func newLedger(t *testing.T) *api.LedgerService {
	t.Helper()
	cfg := &models.Config{
		Database: models.DatabaseConfig{
			Path:         filepath.Join(t.TempDir(), "ledger.db"),
			MaxOpenConns: 8,
			MaxIdleConns: 4,
			PingTimeout:  5 * time.Second,
			BusyTimeout:  10 * time.Second,
		},
		Withdrawal: models.WithdrawalConfig{BalanceCeiling: 1000, ClaimTimeout: time.Minute},
	}

	db, err := database.NewService(context.Background(), cfg.Database)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	routes := config.TokenRoutes{
		pointsMint: {Mint: pointsMint, Symbol: "PTS", Asset: models.AssetPoints, Scale: decimal.NewFromInt(1)},
	}
	return api.NewLedgerService(db, routes, cfg)
}

func requestWithdrawal(t *testing.T, ledger *api.LedgerService, userId string, points int64) *models.WithdrawalRequest {
	t.Helper()
	ctx := context.Background()

	_, err := ledger.Store().CreateUser(ctx, userId, addr(userId))
	require.NoError(t, err)
	_, err = ledger.IngestDeposit(ctx, models.DepositEvent{
		Signature:    sig("deposit-" + userId),
		Sender:       addr("sender"),
		TokenAddress: pointsMint,
		Amount:       decimal.NewFromInt(points),
		UserId:       userId,
		ObservedAt:   time.Now(),
	})
	require.NoError(t, err)

	request, err := ledger.RequestWithdrawal(ctx, userId, addr(userId+"-payout"))
	require.NoError(t, err)
	return request
}

func newTestWorker(ledger Ledger, sender Sender) *Worker {
	return NewWorker(WorkerConfig{
		Ledger:              ledger,
		Sender:              sender,
		PollingInterval:     time.Hour,
		ReaperInterval:      time.Hour,
		BatchSize:           10,
		Asset:               "FORGE",
		PointsPerPayoutUnit: 100,
	})
}

func TestProcessBatch_SubmitsAndRecordsReference(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()
	request := requestWithdrawal(t, ledger, "alice", 250)

	sender := &fakeSender{}
	worker := newTestWorker(ledger, sender)

	assert.Equal(t, 1, worker.ProcessBatch(ctx))

	sent := sender.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, request.Id, sent[0].WithdrawalId)
	assert.Equal(t, int64(250), sent[0].Points)
	assert.True(t, decimal.RequireFromString("2.5").Equal(sent[0].Amount))
	assert.Equal(t, "FORGE", sent[0].Asset)
	assert.Equal(t, addr("alice-payout"), sent[0].Destination)

	stored, err := ledger.GetWithdrawal(ctx, request.Id)
	require.NoError(t, err)
	assert.True(t, stored.Processing)
	assert.False(t, stored.Processed)
	require.NotNil(t, stored.PayoutRef)
	assert.Equal(t, "act-"+request.Id, *stored.PayoutRef)

	// a claimed request is not picked up again
	assert.Equal(t, 0, worker.ProcessBatch(ctx))
	assert.Len(t, sender.sent(), 1)

	// confirmation arrives later from the chain listener
	_, _, err = ledger.CompleteWithdrawal(ctx, request.Id, sig("alice-onchain"))
	require.NoError(t, err)
	balance, err := ledger.GetBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Points)
}

func TestProcessBatch_SynchronousSignatureCompletes(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()
	request := requestWithdrawal(t, ledger, "bob", 120)

	worker := newTestWorker(ledger, &fakeSender{sign: true})
	assert.Equal(t, 1, worker.ProcessBatch(ctx))

	stored, err := ledger.GetWithdrawal(ctx, request.Id)
	require.NoError(t, err)
	assert.True(t, stored.Processed)
	require.NotNil(t, stored.TxSignature)
	assert.Equal(t, sig(request.Id), *stored.TxSignature)

	balance, err := ledger.GetBalance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Points)
}

func TestProcessBatch_SenderErrorReleasesClaim(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()
	request := requestWithdrawal(t, ledger, "carol", 90)

	sender := &fakeSender{err: errors.New("prime unavailable")}
	worker := newTestWorker(ledger, sender)
	assert.Equal(t, 0, worker.ProcessBatch(ctx))

	stored, err := ledger.GetWithdrawal(ctx, request.Id)
	require.NoError(t, err)
	assert.False(t, stored.Processing)
	assert.False(t, stored.Processed)
	require.NotNil(t, stored.Error)
	assert.Contains(t, *stored.Error, "prime unavailable")

	// the next poll retries with the same idempotency key
	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()
	assert.Equal(t, 1, worker.ProcessBatch(ctx))

	sent := sender.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, sent[0].WithdrawalId, sent[1].WithdrawalId)
}

func TestProcessBatch_UnsafePayoutIsNotSent(t *testing.T) {
	ledger := newLedger(t)
	ctx := context.Background()
	request := requestWithdrawal(t, ledger, "dave", 300)

	_, err := ledger.IngestDeposit(ctx, models.DepositEvent{
		Signature:    sig("dave-late-deposit"),
		Sender:       addr("sender"),
		TokenAddress: pointsMint,
		Amount:       decimal.NewFromInt(5000),
		UserId:       "dave",
		ObservedAt:   time.Now(),
	})
	require.NoError(t, err)

	sender := &fakeSender{}
	worker := newTestWorker(ledger, sender)
	assert.Equal(t, 0, worker.ProcessBatch(ctx))
	assert.Empty(t, sender.sent())

	flagged, err := ledger.ListFlaggedWithdrawals(ctx)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, request.Id, flagged[0].Id)

	balance, err := ledger.GetBalance(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, int64(5300), balance.Points)
}

func TestWorker_StartStop(t *testing.T) {
	ledger := newLedger(t)
	requestWithdrawal(t, ledger, "erin", 40)

	sender := &fakeSender{}
	worker := newTestWorker(ledger, sender)
	worker.Start(context.Background())

	assert.Eventually(t, func() bool { return len(sender.sent()) == 1 }, 2*time.Second, 10*time.Millisecond)
	worker.Stop()
}

func TestNewWorker_Defaults(t *testing.T) {
	worker := NewWorker(WorkerConfig{})
	assert.Equal(t, 25, worker.batchSize)
	assert.Equal(t, 30*time.Second, worker.pollingInterval)
	assert.True(t, decimal.NewFromInt(7).Equal(worker.payoutAmount(7)))
}
