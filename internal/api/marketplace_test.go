package api

import (
	"context"
	"testing"

	"forge-market-go/internal/database"
	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBook(t *testing.T, db *database.Service, holder, role string) string {
	t.Helper()
	ctx := context.Background()

	project, err := db.CreateProject(ctx, "Forge Genesis")
	require.NoError(t, err)
	allowlist, err := db.CreateAllowlist(ctx, project.Id, "phase one")
	require.NoError(t, err)
	_, err = db.CreateAllowlistEntry(ctx, allowlist.Id, &holder, role, nil)
	require.NoError(t, err)
	return project.Id
}

func TestPlaceOrder_SettlesAtRestingPrice(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedUser(t, db, "bob")
	seedUser(t, db, "carol")
	fund(t, svc, "carol", 150)
	projectId := seedBook(t, db, "bob", "og")
	role := "og"

	sell, settlement, err := svc.PlaceOrder(ctx, store.CreateOrderParams{
		UserId: "bob", TradeType: models.TradeSell, ProjectId: projectId, PointsCost: 100, RoleId: &role,
	})
	require.NoError(t, err)
	assert.False(t, settlement.Matched)
	assert.True(t, sell.Listed)

	floor, bid, err := svc.BookTop(ctx, projectId, &role)
	require.NoError(t, err)
	require.NotNil(t, floor)
	assert.Equal(t, int64(100), floor.PointsCost)
	assert.Nil(t, bid)

	buy, settlement, err := svc.PlaceOrder(ctx, store.CreateOrderParams{
		UserId: "carol", TradeType: models.TradeBuy, ProjectId: projectId, PointsCost: 120, RoleId: &role,
	})
	require.NoError(t, err)
	require.True(t, settlement.Matched)
	assert.Equal(t, int64(100), settlement.Price)
	assert.True(t, buy.Processed)

	bobBalance, err := svc.GetBalance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(100), bobBalance.Points)

	carolBalance, err := svc.GetBalance(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(50), carolBalance.Points)

	entries, err := svc.ListEntries(ctx, "carol")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	activity, err := svc.ListActivity(ctx, projectId, 0)
	require.NoError(t, err)
	sales := 0
	for _, a := range activity {
		if a.Action == models.ActionSale {
			sales++
		}
	}
	assert.Equal(t, 1, sales)

	floor, bid, err = svc.BookTop(ctx, projectId, &role)
	require.NoError(t, err)
	assert.Nil(t, floor)
	assert.Nil(t, bid)
}

func TestPlaceOrder_RejectedWhileWithdrawalOutstanding(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedUser(t, db, "bob")
	seedUser(t, db, "carol")
	fund(t, svc, "carol", 150)
	projectId := seedBook(t, db, "bob", "og")
	role := "og"

	sell, _, err := svc.PlaceOrder(ctx, store.CreateOrderParams{
		UserId: "bob", TradeType: models.TradeSell, ProjectId: projectId, PointsCost: 100, RoleId: &role,
	})
	require.NoError(t, err)

	request, err := svc.RequestWithdrawal(ctx, "carol", addr("carol-payout"))
	require.NoError(t, err)
	_, err = svc.MarkProcessing(ctx, request.Id)
	require.NoError(t, err)

	_, _, err = svc.PlaceOrder(ctx, store.CreateOrderParams{
		UserId: "carol", TradeType: models.TradeBuy, ProjectId: projectId, PointsCost: 100, RoleId: &role,
	})
	assert.ErrorIs(t, err, store.ErrWithdrawalOutstanding)

	_, _, err = svc.CompleteWithdrawal(ctx, request.Id, sig("carol-payout"))
	require.NoError(t, err)

	balance, err := svc.GetBalance(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance.Points)

	current, err := svc.GetOrder(ctx, sell.Id)
	require.NoError(t, err)
	assert.True(t, current.Listed)
}

func TestCreateOrder_Validation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedUser(t, db, "bob")
	projectId := seedBook(t, db, "bob", "og")

	_, err := svc.CreateOrder(ctx, store.CreateOrderParams{UserId: "bob", TradeType: models.TradeSell, PointsCost: 10})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	_, err = svc.CreateOrder(ctx, store.CreateOrderParams{UserId: "bob", TradeType: "HOLD", ProjectId: projectId, PointsCost: 10})
	assert.ErrorIs(t, err, store.ErrInvalidInput)

	empty := ""
	record, err := svc.CreateOrder(ctx, store.CreateOrderParams{
		UserId: "bob", TradeType: models.TradeSell, ProjectId: projectId, PointsCost: 10, RoleId: &empty,
	})
	require.NoError(t, err)
	assert.Nil(t, record.RoleId)

	_, _, err = svc.BookTop(ctx, "missing", nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDelist(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedUser(t, db, "bob")
	projectId := seedBook(t, db, "bob", "og")

	record, err := svc.CreateOrder(ctx, store.CreateOrderParams{UserId: "bob", TradeType: models.TradeSell, ProjectId: projectId, PointsCost: 10})
	require.NoError(t, err)

	_, _, err = svc.Delist(ctx, record.Id, "mallory")
	assert.ErrorIs(t, err, store.ErrForbidden)

	delisted, changed, err := svc.Delist(ctx, record.Id, "bob")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, delisted.Listed)

	open, err := svc.ListOrders(ctx, store.OrderFilter{ProjectId: projectId, OnlyOpen: true})
	require.NoError(t, err)
	assert.Empty(t, open)
}
