package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"forge-market-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "forge.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.Equal(t, "CHAIN", cfg.Listener.Stream)
	assert.True(t, cfg.Listener.EnsureStream)
	assert.Equal(t, int64(1000), cfg.Withdrawal.BalanceCeiling)
	assert.Equal(t, int64(0), cfg.Withdrawal.MaxPayout)
	assert.Equal(t, int64(1), cfg.Payout.PointsPerPayoutUnit)
	assert.Equal(t, 30*time.Minute, cfg.Presale.IntentTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/other.db")
	t.Setenv("WITHDRAWAL_BALANCE_CEILING", "250")
	t.Setenv("PAYOUT_POLLING_INTERVAL", "5s")
	t.Setenv("NATS_ENSURE_STREAM", "false")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/other.db", cfg.Database.Path)
	assert.Equal(t, int64(250), cfg.Withdrawal.BalanceCeiling)
	assert.Equal(t, 5*time.Second, cfg.Payout.PollingInterval)
	assert.False(t, cfg.Listener.EnsureStream)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("PRESALE_INTENT_TTL", "soon")

	_, err := Load()
	assert.ErrorContains(t, err, "PRESALE_INTENT_TTL")
}

const tokensYAML = `
tokens:
  - mint: PointsMint111
    symbol: PTS
    asset: points
    scale: "100"
  - mint: StakeMint111
    symbol: FORGE
    asset: forge_stake
  - mint: UsdcMint111
    symbol: USDC
    asset: presale
`

func TestParseTokenRoutes(t *testing.T) {
	routes, err := ParseTokenRoutes([]byte(tokensYAML))
	require.NoError(t, err)
	require.Len(t, routes, 3)

	points, ok := routes.Lookup("PointsMint111")
	require.True(t, ok)
	assert.Equal(t, models.AssetPoints, points.Asset)
	assert.True(t, points.Scale.Equal(decimal.NewFromInt(100)))

	stake, ok := routes.Lookup("StakeMint111")
	require.True(t, ok)
	assert.True(t, stake.Scale.Equal(decimal.NewFromInt(1)))

	_, ok = routes.Lookup("Unknown")
	assert.False(t, ok)
}

func TestParseTokenRoutes_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing mint", "tokens:\n  - asset: points\n"},
		{"unknown asset", "tokens:\n  - mint: A\n    asset: gold\n"},
		{"duplicate mint", "tokens:\n  - mint: A\n    asset: points\n  - mint: A\n    asset: presale\n"},
		{"negative scale", "tokens:\n  - mint: A\n    asset: points\n    scale: \"-1\"\n"},
		{"bad scale", "tokens:\n  - mint: A\n    asset: points\n    scale: lots\n"},
		{"empty", "tokens: []\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTokenRoutes([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadTokenRoutes_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.yaml")
	require.NoError(t, os.WriteFile(path, []byte(tokensYAML), 0o600))

	routes, err := LoadTokenRoutes(path)
	require.NoError(t, err)
	assert.Len(t, routes, 3)

	_, err = LoadTokenRoutes(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
