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

	"forge-market-go/internal/chain"
	"forge-market-go/internal/metrics"
	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"go.uber.org/zap"
)

func (s *LedgerService) CreateIntent(ctx context.Context, params store.CreateIntentParams) (*models.PresaleEntryIntent, error) {
	if err := chain.ValidateAddress(params.WalletAddress); err != nil {
		return nil, fmt.Errorf("%w: wallet address: %v", store.ErrInvalidInput, err)
	}

	intent, err := s.store.CreatePresaleIntent(ctx, params)
	if err != nil {
		return nil, err
	}
	metrics.PresaleIntentsTotal.WithLabelValues(models.IntentPending).Inc()
	return intent, nil
}

// ConfirmIntent binds a settled presale payment to the intent. The caller
// must own the intent; confirming twice returns the confirmed intent.
func (s *LedgerService) ConfirmIntent(ctx context.Context, intentId, userId, signature string) (*models.PresaleEntryIntent, error) {
	if err := chain.ValidateSignature(signature); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	current, err := s.store.GetPresaleIntent(ctx, intentId)
	if err != nil {
		return nil, err
	}
	if current.UserId != userId {
		return nil, fmt.Errorf("%w: intent %s belongs to another user", store.ErrForbidden, intentId)
	}

	intent, alreadyConfirmed, err := s.store.ConfirmPresaleIntent(ctx, intentId, signature)
	if err != nil {
		return nil, err
	}
	if !alreadyConfirmed {
		metrics.PresaleIntentsTotal.WithLabelValues(models.IntentConfirmed).Inc()
	}
	return intent, nil
}

func (s *LedgerService) CancelIntent(ctx context.Context, intentId, userId string) (*models.PresaleEntryIntent, error) {
	intent, err := s.store.CancelPresaleIntent(ctx, intentId, userId)
	if err != nil {
		return nil, err
	}
	metrics.PresaleIntentsTotal.WithLabelValues(models.IntentCancelled).Inc()
	return intent, nil
}

func (s *LedgerService) GetIntent(ctx context.Context, intentId string) (*models.PresaleEntryIntent, error) {
	return s.store.GetPresaleIntent(ctx, intentId)
}

// ExpireStaleIntents releases supply held by intents unpaid for longer than the TTL
func (s *LedgerService) ExpireStaleIntents(ctx context.Context) (int64, error) {
	if s.presale.IntentTTL <= 0 {
		return 0, nil
	}

	count, err := s.store.ExpirePresaleIntents(ctx, s.now().Add(-s.presale.IntentTTL))
	if err != nil {
		zap.L().Error("Failed to expire presale intents", zap.Error(err))
		return 0, err
	}
	if count > 0 {
		metrics.PresaleIntentsTotal.WithLabelValues(models.IntentExpired).Add(float64(count))
	}
	return count, nil
}

// UnboundPresalePayments lists settled presale payments that no intent was
// confirmed with, such as payments landing after their intent expired.
func (s *LedgerService) UnboundPresalePayments(ctx context.Context) ([]models.DepositRecord, error) {
	return s.store.ListUnboundPresaleDeposits(ctx)
}

func (s *LedgerService) Availability(ctx context.Context, presaleId string) (*models.PresaleAvailability, error) {
	return s.store.GetPresaleAvailability(ctx, presaleId)
}
