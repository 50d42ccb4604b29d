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
package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Sender transfers a withdrawal on-chain. Implementations must treat
// WithdrawalId as an idempotency key.
type Sender interface {
	Send(ctx context.Context, payout models.PayoutRequest) (*models.Payout, error)
}

// Ledger is the withdrawal surface of the ledger service used by the worker
type Ledger interface {
	ListUnclaimedWithdrawals(ctx context.Context, limit int) ([]models.WithdrawalRequest, error)
	MarkProcessing(ctx context.Context, id string) (*models.WithdrawalRequest, error)
	CheckPayoutSafety(ctx context.Context, id string) (*models.PayoutCheck, error)
	SetPayoutReference(ctx context.Context, id, reference string) error
	CompleteWithdrawal(ctx context.Context, id, signature string) (*models.WithdrawalRequest, bool, error)
	FailWithdrawal(ctx context.Context, id, reason string, retryable bool) error
	ResetStaleClaims(ctx context.Context) (int64, error)
}

// WorkerConfig contains configuration for Worker
type WorkerConfig struct {
	Ledger              Ledger
	Sender              Sender
	PollingInterval     time.Duration
	ReaperInterval      time.Duration
	BatchSize           int
	Asset               string
	PointsPerPayoutUnit int64
}

// Worker polls for unclaimed withdrawals, claims them one at a time and
// hands them to the Sender. It never holds a transaction across Send.
type Worker struct {
	ledger          Ledger
	sender          Sender
	pollingInterval time.Duration
	reaperInterval  time.Duration
	batchSize       int
	asset           string
	pointsPerUnit   decimal.Decimal

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewWorker(cfg WorkerConfig) *Worker {
	perUnit := cfg.PointsPerPayoutUnit
	if perUnit <= 0 {
		perUnit = 1
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 25
	}
	polling := cfg.PollingInterval
	if polling <= 0 {
		polling = 30 * time.Second
	}

	return &Worker{
		ledger:          cfg.Ledger,
		sender:          cfg.Sender,
		pollingInterval: polling,
		reaperInterval:  cfg.ReaperInterval,
		batchSize:       batch,
		asset:           cfg.Asset,
		pointsPerUnit:   decimal.NewFromInt(perUnit),
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start begins the poll and reaper loops
func (w *Worker) Start(ctx context.Context) {
	zap.L().Info("Starting payout worker",
		zap.Duration("polling_interval", w.pollingInterval),
		zap.Duration("reaper_interval", w.reaperInterval),
		zap.Int("batch_size", w.batchSize))
	go w.run(ctx)
}

// Stop gracefully stops the worker after the in-flight batch
func (w *Worker) Stop() {
	zap.L().Info("Stopping payout worker")
	close(w.stopChan)
	<-w.doneChan
	zap.L().Info("Payout worker stopped")
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneChan)

	poll := time.NewTicker(w.pollingInterval)
	defer poll.Stop()

	reaperInterval := w.reaperInterval
	if reaperInterval <= 0 {
		reaperInterval = time.Hour
	}
	reaper := time.NewTicker(reaperInterval)
	defer reaper.Stop()

	w.ProcessBatch(ctx)

	for {
		select {
		case <-poll.C:
			w.ProcessBatch(ctx)
		case <-reaper.C:
			w.reap(ctx)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Worker) reap(ctx context.Context) {
	count, err := w.ledger.ResetStaleClaims(ctx)
	if err != nil {
		zap.L().Error("Failed to reset stale claims", zap.Error(err))
		return
	}
	if count > 0 {
		zap.L().Warn("Released stale withdrawal claims", zap.Int64("count", count))
	}
}

// ProcessBatch handles one page of unclaimed withdrawals and returns how
// many were handed to the sender.
func (w *Worker) ProcessBatch(ctx context.Context) int {
	requests, err := w.ledger.ListUnclaimedWithdrawals(ctx, w.batchSize)
	if err != nil {
		zap.L().Error("Failed to list unclaimed withdrawals", zap.Error(err))
		return 0
	}

	sent := 0
	for _, request := range requests {
		if ctx.Err() != nil {
			break
		}
		ok, err := w.process(ctx, request.Id)
		if err != nil {
			zap.L().Error("Withdrawal payout failed",
				zap.String("withdrawal_id", request.Id),
				zap.String("user_id", request.UserId),
				zap.Error(err))
			continue
		}
		if ok {
			sent++
		}
	}
	return sent
}

func (w *Worker) process(ctx context.Context, id string) (bool, error) {
	request, err := w.ledger.MarkProcessing(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyClaimed) || errors.Is(err, store.ErrAlreadyProcessed) {
			zap.L().Debug("Withdrawal claimed elsewhere", zap.String("withdrawal_id", id))
			return false, nil
		}
		return false, fmt.Errorf("claim: %w", err)
	}

	check, err := w.ledger.CheckPayoutSafety(ctx, id)
	if err != nil {
		return false, w.release(ctx, id, "safety check unavailable", err)
	}
	if !check.Safe {
		return false, nil
	}

	payout, err := w.sender.Send(ctx, models.PayoutRequest{
		WithdrawalId: request.Id,
		UserId:       request.UserId,
		Destination:  request.Destination,
		Points:       request.Amount,
		Amount:       w.payoutAmount(request.Amount),
		Asset:        w.asset,
	})
	if err != nil {
		return false, w.release(ctx, id, "payout sender", err)
	}

	if payout.Signature != "" {
		if _, _, err := w.ledger.CompleteWithdrawal(ctx, id, payout.Signature); err != nil {
			return true, fmt.Errorf("complete: %w", err)
		}
		return true, nil
	}

	if err := w.ledger.SetPayoutReference(ctx, id, payout.Reference); err != nil {
		return true, fmt.Errorf("record payout reference: %w", err)
	}
	zap.L().Info("Withdrawal payout submitted",
		zap.String("withdrawal_id", id),
		zap.String("reference", payout.Reference))
	return true, nil
}

// release records the failure on the request and frees the claim so the next
// poll retries it. The sender's idempotency key makes the retry safe.
func (w *Worker) release(ctx context.Context, id, stage string, cause error) error {
	reason := fmt.Sprintf("%s: %v", stage, cause)
	if err := w.ledger.FailWithdrawal(ctx, id, reason, true); err != nil {
		return fmt.Errorf("%s (recording failure: %v): %w", reason, err, cause)
	}
	return fmt.Errorf("%s: %w", stage, cause)
}

func (w *Worker) payoutAmount(points int64) decimal.Decimal {
	return decimal.NewFromInt(points).Div(w.pointsPerUnit)
}
