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

// handleDeposit ingests a confirmed transfer. Malformed events and events
// that conflict with recorded state are terminated; storage errors are
// redelivered and resume from the reserved PENDING record.
func (l *ChainListener) handleDeposit(ctx context.Context, data []byte) disposition {
	var event models.DepositEvent
	if err := json.Unmarshal(data, &event); err != nil {
		zap.L().Error("Malformed deposit event", zap.Error(err))
		return dispositionTerm
	}

	outcome, err := l.ledger.IngestDeposit(ctx, event)
	if err != nil {
		if errors.Is(err, store.ErrInvalidInput) || errors.Is(err, store.ErrSignatureConflict) {
			zap.L().Error("Rejected deposit event",
				zap.String("signature", event.Signature),
				zap.Error(err))
			return dispositionTerm
		}
		zap.L().Warn("Deposit ingest failed, will retry",
			zap.String("signature", event.Signature),
			zap.Error(err))
		return dispositionNak
	}

	zap.L().Info("Deposit event processed",
		zap.String("signature", outcome.Signature),
		zap.String("status", outcome.Status),
		zap.String("user_id", outcome.UserId),
		zap.Int64("credited", outcome.Credited),
		zap.Bool("replayed", outcome.Replayed),
		zap.String("reason", outcome.Reason))
	return dispositionAck
}
