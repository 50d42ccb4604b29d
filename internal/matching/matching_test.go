package matching

import (
	"testing"
	"time"

	"forge-market-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id, side, user string, cost int64, createdAt time.Time) models.MarketplaceRecord {
	role := "og"
	return models.MarketplaceRecord{
		Id:              id,
		ProjectId:       "project-1",
		RoleId:          &role,
		TradeType:       side,
		PointsCost:      cost,
		CreatedByUserId: user,
		Listed:          true,
		CreatedAt:       createdAt,
	}
}

func TestPair(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	sell := record("sell", models.TradeSell, "bob", 100, t0)
	buy := record("buy", models.TradeBuy, "carol", 120, t0.Add(time.Minute))

	t.Run("executes at the resting ask when matching the bid", func(t *testing.T) {
		trade, err := Pair(buy, sell)
		require.NoError(t, err)
		assert.Equal(t, int64(100), trade.Price)
		assert.Equal(t, "buy", trade.Buy.Id)
		assert.Equal(t, "sell", trade.Sell.Id)
		assert.Equal(t, "sell", trade.Resting.Id)
	})

	t.Run("executes at the resting ask when matching the ask", func(t *testing.T) {
		trade, err := Pair(sell, buy)
		require.NoError(t, err)
		assert.Equal(t, int64(100), trade.Price)
	})

	t.Run("executes at the resting bid when the bid is older", func(t *testing.T) {
		olderBuy := record("buy", models.TradeBuy, "carol", 120, t0.Add(-time.Minute))
		trade, err := Pair(sell, olderBuy)
		require.NoError(t, err)
		assert.Equal(t, int64(120), trade.Price)
	})

	t.Run("equal timestamps favour the counterpart", func(t *testing.T) {
		sameTimeBuy := record("buy", models.TradeBuy, "carol", 120, t0)
		trade, err := Pair(sell, sameTimeBuy)
		require.NoError(t, err)
		assert.Equal(t, int64(120), trade.Price)
	})

	t.Run("rejects", func(t *testing.T) {
		otherRole := record("other", models.TradeBuy, "carol", 120, t0)
		otherRole.RoleId = nil

		cases := []struct {
			name        string
			counterpart models.MarketplaceRecord
			want        error
		}{
			{"same side", record("s2", models.TradeSell, "dave", 90, t0), ErrSameSide},
			{"self trade", record("b2", models.TradeBuy, "bob", 150, t0), ErrSelfTrade},
			{"no cross", record("b3", models.TradeBuy, "carol", 99, t0), ErrNoCross},
			{"different book", otherRole, ErrDifferentBook},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := Pair(sell, tc.counterpart)
				assert.ErrorIs(t, err, tc.want)
			})
		}
	})
}

func TestRoleKey(t *testing.T) {
	role := "whitelist"
	assert.Equal(t, "", RoleKey(nil))
	assert.Equal(t, "whitelist", RoleKey(&role))
}
