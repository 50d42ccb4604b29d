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

const defaultWithdrawalBatch = 25

// RequestWithdrawal captures the user's whole points balance for payout
func (s *LedgerService) RequestWithdrawal(ctx context.Context, userId, destination string) (*models.WithdrawalRequest, error) {
	if userId == "" {
		return nil, fmt.Errorf("%w: user_id is required", store.ErrInvalidInput)
	}
	if err := chain.ValidateAddress(destination); err != nil {
		return nil, fmt.Errorf("%w: destination: %v", store.ErrInvalidInput, err)
	}

	request, err := s.store.CreateWithdrawal(ctx, userId, destination)
	if err != nil {
		return nil, err
	}

	metrics.WithdrawalsTotal.WithLabelValues("requested").Inc()
	zap.L().Info("Withdrawal requested",
		zap.String("withdrawal_id", request.Id),
		zap.String("user_id", userId),
		zap.Int64("amount", request.Amount))
	return request, nil
}

func (s *LedgerService) GetWithdrawal(ctx context.Context, id string) (*models.WithdrawalRequest, error) {
	return s.store.GetWithdrawal(ctx, id)
}

func (s *LedgerService) ListUserWithdrawals(ctx context.Context, userId string) ([]models.WithdrawalRequest, error) {
	return s.store.ListUserWithdrawals(ctx, userId)
}

func (s *LedgerService) ListUnclaimedWithdrawals(ctx context.Context, limit int) ([]models.WithdrawalRequest, error) {
	if limit <= 0 || limit > 500 {
		limit = defaultWithdrawalBatch
	}
	return s.store.ListUnclaimedWithdrawals(ctx, limit)
}

func (s *LedgerService) ListFlaggedWithdrawals(ctx context.Context) ([]models.WithdrawalRequest, error) {
	return s.store.ListFlaggedWithdrawals(ctx)
}

// MarkProcessing claims a request for payout. Exactly one concurrent caller
// succeeds; the others get ErrAlreadyClaimed.
func (s *LedgerService) MarkProcessing(ctx context.Context, id string) (*models.WithdrawalRequest, error) {
	request, err := s.store.MarkWithdrawalProcessing(ctx, id)
	if err != nil {
		return nil, err
	}
	metrics.WithdrawalsTotal.WithLabelValues("claimed").Inc()
	return request, nil
}

// CheckPayoutSafety compares the captured amount against the live balance
// right before the payout is sent. It fails closed: any unexpected state
// flags the request and reports Safe=false.
func (s *LedgerService) CheckPayoutSafety(ctx context.Context, id string) (*models.PayoutCheck, error) {
	request, err := s.store.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Processed {
		return nil, fmt.Errorf("%w: withdrawal %s", store.ErrAlreadyProcessed, id)
	}

	balance, err := s.store.GetBalance(ctx, request.UserId)
	if err != nil {
		return nil, err
	}

	check := evaluatePayout(request.Amount, balance.Points, s.withdrawal)
	if check.Safe {
		return check, nil
	}

	metrics.PayoutSafetyRejections.WithLabelValues(check.Reason).Inc()
	zap.L().Warn("Payout blocked by safety check",
		zap.String("withdrawal_id", id),
		zap.String("user_id", request.UserId),
		zap.Int64("captured", check.Captured),
		zap.Int64("current", check.Current),
		zap.String("reason", check.Reason))

	if err := s.store.SetWithdrawalError(ctx, id, "safety check: "+check.Reason, false); err != nil {
		return nil, err
	}
	return check, nil
}

func evaluatePayout(captured, current int64, limits models.WithdrawalConfig) *models.PayoutCheck {
	check := &models.PayoutCheck{Captured: captured, Current: current}
	switch {
	case captured <= 0:
		check.Reason = "nothing to pay out"
	case current < captured:
		check.Reason = "balance below captured amount"
	case current > captured+limits.BalanceCeiling:
		check.Reason = "balance above ceiling"
	case limits.MaxPayout > 0 && captured > limits.MaxPayout:
		check.Reason = "payout above maximum"
	default:
		check.Safe = true
	}
	return check
}

func (s *LedgerService) SetPayoutReference(ctx context.Context, id, reference string) error {
	return s.store.SetPayoutReference(ctx, id, reference)
}

// CompleteWithdrawal records the payout signature and debits the captured
// amount. Replaying the same signature returns the stored request.
func (s *LedgerService) CompleteWithdrawal(ctx context.Context, id, signature string) (*models.WithdrawalRequest, bool, error) {
	if err := chain.ValidateSignature(signature); err != nil {
		return nil, false, fmt.Errorf("%w: %v", store.ErrInvalidInput, err)
	}

	request, replayed, err := s.store.CompleteWithdrawal(ctx, id, signature)
	if err != nil {
		return nil, false, err
	}

	if replayed {
		zap.L().Info("Duplicate withdrawal confirmation", zap.String("withdrawal_id", id))
	} else {
		metrics.WithdrawalsTotal.WithLabelValues("completed").Inc()
	}
	return request, replayed, nil
}

// FailWithdrawal records a payout failure. A retryable failure releases the
// claim so the worker picks the request up again; otherwise it stays flagged
// until an operator resolves it.
func (s *LedgerService) FailWithdrawal(ctx context.Context, id, reason string, retryable bool) error {
	if reason == "" {
		reason = "payout failed"
	}
	if err := s.store.SetWithdrawalError(ctx, id, reason, retryable); err != nil {
		return err
	}

	outcome := "flagged"
	if retryable {
		outcome = "retry"
	}
	metrics.WithdrawalsTotal.WithLabelValues(outcome).Inc()
	return nil
}

// ResetStaleClaims releases claims older than the configured timeout that
// never reached the payout provider.
func (s *LedgerService) ResetStaleClaims(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.withdrawal.ClaimTimeout)
	count, err := s.store.ResetStaleWithdrawals(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		metrics.WithdrawalsTotal.WithLabelValues("reset").Add(float64(count))
	}
	return count, nil
}

func (s *LedgerService) ResolveWithdrawal(ctx context.Context, id string) error {
	if err := s.store.ResolveWithdrawal(ctx, id); err != nil {
		return err
	}
	metrics.WithdrawalsTotal.WithLabelValues("resolved").Inc()
	return nil
}
