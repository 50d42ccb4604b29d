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
	"fmt"

	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"go.uber.org/zap"
)

func (s *LedgerService) GetBalance(ctx context.Context, userId string) (*models.Balance, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user_id is required", store.ErrInvalidInput)
	}
	return s.store.GetBalance(ctx, userId)
}

// GetBalanceHistory returns paginated balance entries for a user
func (s *LedgerService) GetBalanceHistory(ctx context.Context, userId string, limit, offset int) ([]models.BalanceEntry, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user_id is required", store.ErrInvalidInput)
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.store.GetBalanceHistory(ctx, userId, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get balance history", zap.String("user_id", userId), zap.Error(err))
		return nil, err
	}
	return entries, nil
}

func (s *LedgerService) ReconcileBalance(ctx context.Context, userId string) error {
	return s.store.ReconcileBalance(ctx, userId)
}

// ListReportableBalances lists balances for reporting, skipping users whose
// policy excludes them
func (s *LedgerService) ListReportableBalances(ctx context.Context) ([]models.BalanceReport, error) {
	return s.store.ListBalanceReports(ctx, false)
}

func (s *LedgerService) ListEntries(ctx context.Context, userId string) ([]models.AllowlistEntry, error) {
	return s.store.ListEntriesByOwner(ctx, userId)
}
