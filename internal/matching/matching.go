/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package matching holds the order book rules shared by the settlement
// transaction: which side is the bid, whether two orders cross, and the
// price a trade executes at.
package matching

import (
	"errors"

	"forge-market-go/internal/models"
)

var (
	ErrSameSide      = errors.New("orders are on the same side of the book")
	ErrDifferentBook = errors.New("orders belong to different project/role books")
	ErrSelfTrade     = errors.New("orders belong to the same user")
	ErrNoCross       = errors.New("bid is below ask")
)

// Trade is a priced pairing of one BUY and one SELL record.
type Trade struct {
	Buy     models.MarketplaceRecord
	Sell    models.MarketplaceRecord
	Resting models.MarketplaceRecord
	Price   int64
}

// RoleKey normalizes an optional role so that "no role" forms its own book.
func RoleKey(roleId *string) string {
	if roleId == nil {
		return ""
	}
	return *roleId
}

// SameBook reports whether two records trade in the same project/role book.
func SameBook(a, b models.MarketplaceRecord) bool {
	return a.ProjectId == b.ProjectId && RoleKey(a.RoleId) == RoleKey(b.RoleId)
}

// Crosses reports whether a bid meets an ask.
func Crosses(buy, sell models.MarketplaceRecord) bool {
	return buy.PointsCost >= sell.PointsCost
}

// Resting returns whichever record entered the book first. On equal
// timestamps the counterpart, which was already in the book when the match
// was requested, is the resting order.
func Resting(incoming, counterpart models.MarketplaceRecord) models.MarketplaceRecord {
	if incoming.CreatedAt.Before(counterpart.CreatedAt) {
		return incoming
	}
	return counterpart
}

// Pair validates that incoming and counterpart can trade and prices the
// trade at the resting order's cost.
func Pair(incoming, counterpart models.MarketplaceRecord) (*Trade, error) {
	if incoming.TradeType == counterpart.TradeType {
		return nil, ErrSameSide
	}
	if !SameBook(incoming, counterpart) {
		return nil, ErrDifferentBook
	}
	if incoming.CreatedByUserId == counterpart.CreatedByUserId {
		return nil, ErrSelfTrade
	}

	buy, sell := incoming, counterpart
	if incoming.TradeType == models.TradeSell {
		buy, sell = counterpart, incoming
	}
	if !Crosses(buy, sell) {
		return nil, ErrNoCross
	}

	resting := Resting(incoming, counterpart)
	return &Trade{
		Buy:     buy,
		Sell:    sell,
		Resting: resting,
		Price:   resting.PointsCost,
	}, nil
}
