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
package listener

import (
	"context"
	"encoding/json"
	"errors"

	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"go.uber.org/zap"
)

func (l *ChainListener) handleWithdrawalConfirmed(ctx context.Context, data []byte) disposition {
	var event models.WithdrawalConfirmedEvent
	if err := json.Unmarshal(data, &event); err != nil || event.WithdrawalId == "" {
		zap.L().Error("Malformed withdrawal confirmation", zap.ByteString("data", data), zap.Error(err))
		return dispositionTerm
	}

	request, replayed, err := l.ledger.CompleteWithdrawal(ctx, event.WithdrawalId, event.Signature)
	if err != nil {
		if isTerminal(err) {
			zap.L().Error("Rejected withdrawal confirmation",
				zap.String("withdrawal_id", event.WithdrawalId),
				zap.String("signature", event.Signature),
				zap.Error(err))
			return dispositionTerm
		}
		zap.L().Warn("Withdrawal completion failed, will retry",
			zap.String("withdrawal_id", event.WithdrawalId),
			zap.Error(err))
		return dispositionNak
	}

	zap.L().Info("Withdrawal confirmed",
		zap.String("withdrawal_id", request.Id),
		zap.String("user_id", request.UserId),
		zap.Int64("amount", request.Amount),
		zap.Bool("replayed", replayed))
	return dispositionAck
}

// handleWithdrawalFailed records a payout failure reported by the sender.
// A failure arriving after the request completed is stale and acknowledged.
func (l *ChainListener) handleWithdrawalFailed(ctx context.Context, data []byte) disposition {
	var event models.WithdrawalFailedEvent
	if err := json.Unmarshal(data, &event); err != nil || event.WithdrawalId == "" {
		zap.L().Error("Malformed withdrawal failure", zap.ByteString("data", data), zap.Error(err))
		return dispositionTerm
	}

	err := l.ledger.FailWithdrawal(ctx, event.WithdrawalId, event.Reason, event.Retryable)
	switch {
	case err == nil:
		return dispositionAck
	case errors.Is(err, store.ErrAlreadyProcessed):
		zap.L().Info("Ignoring failure for completed withdrawal", zap.String("withdrawal_id", event.WithdrawalId))
		return dispositionAck
	case isTerminal(err):
		zap.L().Error("Rejected withdrawal failure",
			zap.String("withdrawal_id", event.WithdrawalId),
			zap.Error(err))
		return dispositionTerm
	default:
		zap.L().Warn("Recording withdrawal failure failed, will retry",
			zap.String("withdrawal_id", event.WithdrawalId),
			zap.Error(err))
		return dispositionNak
	}
}

func isTerminal(err error) bool {
	return errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrInvalidInput) ||
		errors.Is(err, store.ErrSignatureConflict)
}
