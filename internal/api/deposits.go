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

	"forge-market-go/internal/chain"
	"forge-market-go/internal/metrics"
	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"go.uber.org/zap"
)

const (
	reasonUnsupportedToken = "unsupported token"
	reasonBelowMinimum     = "amount below one credit unit"
)

// IngestDeposit records a confirmed transfer exactly once and credits the
// routed balance. Redelivery of a settled signature returns the stored
// outcome with Replayed set; a PENDING record left by a crash is resumed.
func (s *LedgerService) IngestDeposit(ctx context.Context, event models.DepositEvent) (*models.DepositOutcome, error) {
	zap.L().Info("Processing deposit",
		zap.String("signature", event.Signature),
		zap.String("token", event.TokenAddress),
		zap.String("amount", event.Amount.String()),
		zap.String("user_id", event.UserId))

	if err := chain.ValidateSignature(event.Signature); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}
	if !event.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: deposit amount must be positive", store.ErrInvalidInput)
	}

	route, supported := s.tokens.Lookup(event.TokenAddress)
	params := store.ReserveDepositParams{
		Signature:    event.Signature,
		Sender:       event.Sender,
		TokenAddress: event.TokenAddress,
		Amount:       event.Amount,
		UserId:       event.UserId,
	}
	if supported {
		params.Asset = route.Asset
		if route.Asset != models.AssetPresale {
			params.Credited = event.Amount.Mul(route.Scale).Floor().IntPart()
		}
	}

	record, created, err := s.store.ReserveDeposit(ctx, params)
	if err != nil {
		if errors.Is(err, store.ErrSignatureConflict) {
			zap.L().Warn("Deposit signature already used by a withdrawal",
				zap.String("signature", event.Signature))
		}
		return nil, err
	}

	if !created && record.Status != models.StatusPending {
		zap.L().Info("Duplicate deposit detected",
			zap.String("signature", record.Signature),
			zap.String("status", record.Status))
		metrics.DepositReplaysTotal.Inc()
		return s.depositOutcome(ctx, record, true), nil
	}

	// Reject checks run against the reserved record, so a resumed deposit
	// is judged on what was first recorded.
	reason := ""
	switch {
	case record.Asset == "":
		reason = reasonUnsupportedToken
	case record.Asset != models.AssetPresale && record.Credited == 0:
		reason = reasonBelowMinimum
	}
	if reason != "" {
		failed, err := s.store.FailDeposit(ctx, record.Signature, reason)
		if err != nil {
			return nil, err
		}
		metrics.DepositsTotal.WithLabelValues(failed.Status, failed.Asset).Inc()
		return s.depositOutcome(ctx, failed, failed.Reason != reason), nil
	}

	applied, ok, err := s.store.ApplyDeposit(ctx, record.Signature)
	if err != nil {
		zap.L().Error("Deposit processing failed",
			zap.String("signature", record.Signature),
			zap.Error(err))
		return nil, err
	}

	replayed := !ok && applied.Status == models.StatusSucceeded
	if replayed {
		metrics.DepositReplaysTotal.Inc()
	} else {
		metrics.DepositsTotal.WithLabelValues(applied.Status, applied.Asset).Inc()
		if ok {
			metrics.CreditedPointsTotal.WithLabelValues(applied.Asset).Add(float64(applied.Credited))
		}
	}

	return s.depositOutcome(ctx, applied, replayed), nil
}

func (s *LedgerService) depositOutcome(ctx context.Context, record *models.DepositRecord, replayed bool) *models.DepositOutcome {
	outcome := &models.DepositOutcome{
		Signature: record.Signature,
		Status:    record.Status,
		UserId:    record.UserId,
		Asset:     record.Asset,
		Replayed:  replayed,
		Reason:    record.Reason,
	}
	if record.Status != models.StatusSucceeded {
		return outcome
	}
	outcome.Credited = record.Credited

	if record.Asset == models.AssetPresale {
		return outcome
	}
	balance, err := s.store.GetBalance(ctx, record.UserId)
	if err != nil {
		zap.L().Error("Failed to get updated balance", zap.String("user_id", record.UserId), zap.Error(err))
		return outcome
	}
	outcome.NewBalance = balance.Points
	if record.Asset == models.AssetForgeStake {
		outcome.NewBalance = balance.ForgeStaked
	}
	return outcome
}

func (s *LedgerService) GetDeposit(ctx context.Context, signature string) (*models.DepositRecord, error) {
	return s.store.GetDepositBySignature(ctx, signature)
}
