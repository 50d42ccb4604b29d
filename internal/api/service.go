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
	"time"

	"forge-market-go/internal/models"
	"forge-market-go/internal/store"
)

// TokenRouter resolves the balance a deposited token mint funds
type TokenRouter interface {
	Lookup(mint string) (models.TokenRoute, bool)
}

// LedgerService applies the ledger's business rules on top of a LedgerStore
type LedgerService struct {
	store      store.LedgerStore
	tokens     TokenRouter
	withdrawal models.WithdrawalConfig
	presale    models.PresaleConfig
	now        func() time.Time
}

func NewLedgerService(ledger store.LedgerStore, tokens TokenRouter, cfg *models.Config) *LedgerService {
	return &LedgerService{
		store:      ledger,
		tokens:     tokens,
		withdrawal: cfg.Withdrawal,
		presale:    cfg.Presale,
		now:        time.Now,
	}
}

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// Store exposes the underlying store for operator tooling
func (s *LedgerService) Store() store.LedgerStore {
	return s.store
}
