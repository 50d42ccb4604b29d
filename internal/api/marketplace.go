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
package api

import (
	"context"
	"errors"
	"fmt"

	"forge-market-go/internal/metrics"
	"forge-market-go/internal/models"
	"forge-market-go/internal/store"
)

// CreateOrder lists a BUY or SELL order on a project/role book
func (s *LedgerService) CreateOrder(ctx context.Context, params store.CreateOrderParams) (*models.MarketplaceRecord, error) {
	if params.UserId == "" || params.ProjectId == "" {
		return nil, fmt.Errorf("%w: user_id and project_id are required", store.ErrInvalidInput)
	}
	if params.RoleId != nil && *params.RoleId == "" {
		params.RoleId = nil
	}
	return s.store.CreateMarketplaceRecord(ctx, params)
}

// Match settles recordId against the best crossing order able to trade. A failed
// re-validation is not an error: it comes back as an unmatched Settlement.
func (s *LedgerService) Match(ctx context.Context, recordId string) (*models.Settlement, error) {
	settlement, err := s.store.SettleMatch(ctx, recordId)
	if err != nil {
		return nil, err
	}

	if settlement.Matched {
		metrics.SettlementsTotal.WithLabelValues("matched").Inc()
		metrics.SettledPointsTotal.Add(float64(settlement.Price))
	} else {
		metrics.SettlementsTotal.WithLabelValues("no_match").Inc()
	}
	return settlement, nil
}

// PlaceOrder lists an order and immediately tries to match it
func (s *LedgerService) PlaceOrder(ctx context.Context, params store.CreateOrderParams) (*models.MarketplaceRecord, *models.Settlement, error) {
	record, err := s.CreateOrder(ctx, params)
	if err != nil {
		return nil, nil, err
	}

	settlement, err := s.Match(ctx, record.Id)
	if err != nil {
		return record, nil, err
	}
	if settlement.Matched {
		record, err = s.store.GetMarketplaceRecord(ctx, record.Id)
		if err != nil {
			return nil, nil, err
		}
	}
	return record, settlement, nil
}

// Delist withdraws an open order. changed is false when it was already delisted.
func (s *LedgerService) Delist(ctx context.Context, recordId, userId string) (*models.MarketplaceRecord, bool, error) {
	return s.store.DelistMarketplaceRecord(ctx, recordId, userId)
}

func (s *LedgerService) GetOrder(ctx context.Context, recordId string) (*models.MarketplaceRecord, error) {
	return s.store.GetMarketplaceRecord(ctx, recordId)
}

func (s *LedgerService) ListOrders(ctx context.Context, filter store.OrderFilter) ([]models.MarketplaceRecord, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.store.ListMarketplaceRecords(ctx, filter)
}

// BookTop returns the floor price and best bid for a book; either side may be nil
func (s *LedgerService) BookTop(ctx context.Context, projectId string, roleId *string) (floor, bid *models.OrderBookSide, err error) {
	if _, err := s.store.GetProject(ctx, projectId); err != nil {
		return nil, nil, err
	}

	floor, err = bookSide(s.store.FloorPrice(ctx, projectId, roleId))
	if err != nil {
		return nil, nil, err
	}
	bid, err = bookSide(s.store.BestBid(ctx, projectId, roleId))
	if err != nil {
		return nil, nil, err
	}
	return floor, bid, nil
}

func bookSide(record *models.MarketplaceRecord, err error) (*models.OrderBookSide, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.OrderBookSide{RecordId: record.Id, PointsCost: record.PointsCost}, nil
}

func (s *LedgerService) ListActivity(ctx context.Context, projectId string, limit int) ([]models.MarketplaceActivity, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListMarketplaceActivity(ctx, projectId, limit)
}
