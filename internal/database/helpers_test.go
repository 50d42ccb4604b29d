package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func setupTestDb(t *testing.T) *Service {
	t.Helper()

	cfg := models.DatabaseConfig{
		Path:            filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns:    8,
		MaxIdleConns:    4,
		ConnMaxLifetime: time.Minute,
		ConnMaxIdleTime: time.Minute,
		PingTimeout:     5 * time.Second,
		BusyTimeout:     10 * time.Second,
	}

	svc, err := NewService(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func seedUser(t *testing.T, svc *Service, userId string) {
	t.Helper()
	_, err := svc.CreateUser(context.Background(), userId, "wallet-"+userId)
	require.NoError(t, err)
}

// fundPoints credits points through the deposit path so balance entries stay consistent.
func fundPoints(t *testing.T, svc *Service, userId string, points int64) string {
	t.Helper()
	ctx := context.Background()
	signature := "sig-" + uuid.New().String()

	_, created, err := svc.ReserveDeposit(ctx, store.ReserveDepositParams{
		Signature:    signature,
		Sender:       "sender",
		TokenAddress: "mint-points",
		Amount:       decimal.NewFromInt(points),
		UserId:       userId,
		Asset:        models.AssetPoints,
		Credited:     points,
	})
	require.NoError(t, err)
	require.True(t, created)

	_, applied, err := svc.ApplyDeposit(ctx, signature)
	require.NoError(t, err)
	require.True(t, applied)
	return signature
}

func points(t *testing.T, svc *Service, userId string) int64 {
	t.Helper()
	balance, err := svc.GetBalance(context.Background(), userId)
	require.NoError(t, err)
	return balance.Points
}
