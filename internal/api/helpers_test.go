package api

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"path/filepath"
	"testing"
	"time"

	"forge-market-go/internal/config"
	"forge-market-go/internal/database"
	"forge-market-go/internal/models"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	pointsMint = "PointsMint"
	stakeMint  = "StakeMint"
	usdcMint   = "UsdcMint"
)

var testRoutes = config.TokenRoutes{
	pointsMint: {Mint: pointsMint, Symbol: "PTS", Asset: models.AssetPoints, Scale: decimal.NewFromInt(1)},
	stakeMint:  {Mint: stakeMint, Symbol: "FORGE", Asset: models.AssetForgeStake, Scale: decimal.NewFromInt(10)},
	usdcMint:   {Mint: usdcMint, Symbol: "USDC", Asset: models.AssetPresale, Scale: decimal.NewFromInt(1)},
}

func testConfig(t *testing.T) *models.Config {
	return &models.Config{
		Database: models.DatabaseConfig{
			Path:         filepath.Join(t.TempDir(), "ledger.db"),
			MaxOpenConns: 8,
			MaxIdleConns: 4,
			PingTimeout:  5 * time.Second,
			BusyTimeout:  10 * time.Second,
		},
		Withdrawal: models.WithdrawalConfig{
			BalanceCeiling: 1000,
			ClaimTimeout:   time.Minute,
		},
		Presale: models.PresaleConfig{IntentTTL: time.Minute},
	}
}

func newTestService(t *testing.T) (*LedgerService, *database.Service) {
	t.Helper()
	cfg := testConfig(t)

	db, err := database.NewService(context.Background(), cfg.Database)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return NewLedgerService(db, testRoutes, cfg), db
}

// sig returns a well-formed transaction signature derived from label
func sig(label string) string {
	sum := sha512.Sum512([]byte(label))
	return base58.Encode(sum[:])
}

// addr returns a well-formed wallet address derived from label
func addr(label string) string {
	sum := sha256.Sum256([]byte(label))
	return base58.Encode(sum[:])
}

func seedUser(t *testing.T, db *database.Service, userId string) {
	t.Helper()
	_, err := db.CreateUser(context.Background(), userId, addr(userId))
	require.NoError(t, err)
}

func deposit(signature, userId, mint string, amount int64) models.DepositEvent {
	return models.DepositEvent{
		Signature:    signature,
		Sender:       addr("sender"),
		TokenAddress: mint,
		Amount:       decimal.NewFromInt(amount),
		UserId:       userId,
		ObservedAt:   time.Now(),
	}
}

func fund(t *testing.T, svc *LedgerService, userId string, points int64) {
	t.Helper()
	outcome, err := svc.IngestDeposit(context.Background(), deposit(sig(userId+time.Now().String()), userId, pointsMint, points))
	require.NoError(t, err)
	require.Equal(t, models.StatusSucceeded, outcome.Status)
}
