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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) CreatePresale(ctx context.Context, params store.CreatePresaleParams) (*models.Presale, error) {
	if params.Name == "" || params.Supply <= 0 || params.MaxSupplyPerUser <= 0 {
		return nil, fmt.Errorf("%w: name, supply and max supply per user are required", store.ErrInvalidInput)
	}
	if params.PricePerEntry.IsNegative() {
		return nil, fmt.Errorf("%w: price per entry cannot be negative", store.ErrInvalidInput)
	}

	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx, queryInsertPresale,
		id, params.Name, params.Supply, params.MaxSupplyPerUser, params.PricePerEntry.String(), now())
	if err != nil {
		return nil, fmt.Errorf("failed to insert presale: %w", err)
	}

	zap.L().Info("Presale created",
		zap.String("presale_id", id),
		zap.String("name", params.Name),
		zap.Int64("supply", params.Supply),
		zap.Int64("max_supply_per_user", params.MaxSupplyPerUser))
	return getPresale(ctx, s.db, id)
}

func (s *Service) GetPresale(ctx context.Context, id string) (*models.Presale, error) {
	return getPresale(ctx, s.db, id)
}

func getPresale(ctx context.Context, q queryer, id string) (*models.Presale, error) {
	var p models.Presale
	err := q.QueryRowContext(ctx, queryGetPresale, id).
		Scan(&p.Id, &p.Name, &p.Supply, &p.MaxSupplyPerUser, &p.PricePerEntry, &p.Active, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: presale %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get presale: %w", err)
	}
	return &p, nil
}

func (s *Service) GetPresaleAvailability(ctx context.Context, id string) (*models.PresaleAvailability, error) {
	presale, err := getPresale(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	var reserved int64
	if err := s.db.QueryRowContext(ctx, queryPresaleReserved, id).Scan(&reserved); err != nil {
		return nil, fmt.Errorf("failed to sum presale reservations: %w", err)
	}

	return &models.PresaleAvailability{
		PresaleId: id,
		Supply:    presale.Supply,
		Reserved:  reserved,
		Remaining: max(presale.Supply-reserved, 0),
		Price:     presale.PricePerEntry,
	}, nil
}

// CreatePresaleIntent reserves supply for a user. Both limits are checked
// and the intent inserted inside one IMMEDIATE transaction, so concurrent
// callers cannot jointly oversubscribe the presale.
func (s *Service) CreatePresaleIntent(ctx context.Context, params store.CreateIntentParams) (*models.PresaleEntryIntent, error) {
	if params.EntryAmount <= 0 {
		return nil, fmt.Errorf("%w: entry amount must be positive", store.ErrInvalidInput)
	}

	var intent *models.PresaleEntryIntent

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		presale, err := getPresale(ctx, tx, params.PresaleId)
		if err != nil {
			return err
		}
		if !presale.Active {
			return store.ErrPresaleClosed
		}
		if _, err := getUser(ctx, tx, params.UserId); err != nil {
			return err
		}

		var reserved, userReserved int64
		if err := tx.QueryRowContext(ctx, queryPresaleReserved, params.PresaleId).Scan(&reserved); err != nil {
			return fmt.Errorf("failed to sum presale reservations: %w", err)
		}
		if reserved+params.EntryAmount > presale.Supply {
			return fmt.Errorf("%w: %d of %d reserved, requested %d",
				store.ErrSupplyExceeded, reserved, presale.Supply, params.EntryAmount)
		}

		if err := tx.QueryRowContext(ctx, queryPresaleUserReserved, params.PresaleId, params.UserId).Scan(&userReserved); err != nil {
			return fmt.Errorf("failed to sum user reservations: %w", err)
		}
		if userReserved+params.EntryAmount > presale.MaxSupplyPerUser {
			return fmt.Errorf("%w: user holds %d of %d, requested %d",
				store.ErrUserLimitExceeded, userReserved, presale.MaxSupplyPerUser, params.EntryAmount)
		}

		ts := now()
		id := uuid.New().String()
		if _, err := tx.ExecContext(ctx, queryInsertPresaleIntent,
			id, params.PresaleId, params.UserId, params.WalletAddress, params.EntryAmount, ts, ts); err != nil {
			return fmt.Errorf("failed to insert presale intent: %w", err)
		}

		intent, err = getIntent(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Presale intent created",
		zap.String("intent_id", intent.Id),
		zap.String("presale_id", intent.PresaleId),
		zap.String("user_id", intent.UserId),
		zap.Int64("entry_amount", intent.EntryAmount))
	return intent, nil
}

func (s *Service) GetPresaleIntent(ctx context.Context, id string) (*models.PresaleEntryIntent, error) {
	return getIntent(ctx, s.db, id)
}

func getIntent(ctx context.Context, q queryer, id string) (*models.PresaleEntryIntent, error) {
	var i models.PresaleEntryIntent
	err := q.QueryRowContext(ctx, queryGetPresaleIntent, id).Scan(
		&i.Id, &i.PresaleId, &i.UserId, &i.WalletAddress, &i.EntryAmount, &i.Status,
		&i.PaymentSignature, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: presale intent %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get presale intent: %w", err)
	}
	return &i, nil
}

// ConfirmPresaleIntent binds a settled presale deposit to a PENDING intent.
// The deposit must have succeeded, come from the intent's user, be routed to
// the presale asset, cover entryAmount * pricePerEntry and not already pay
// for another intent. A confirmed intent is returned as is.
func (s *Service) ConfirmPresaleIntent(ctx context.Context, intentId, signature string) (*models.PresaleEntryIntent, bool, error) {
	if signature == "" {
		return nil, false, fmt.Errorf("%w: payment signature is required", store.ErrInvalidInput)
	}

	var intent *models.PresaleEntryIntent
	var alreadyConfirmed bool

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getIntent(ctx, tx, intentId)
		if err != nil {
			return err
		}
		if current.Status == models.IntentConfirmed {
			intent, alreadyConfirmed = current, true
			return nil
		}
		if current.Status != models.IntentPending {
			return fmt.Errorf("%w: intent %s is %s", store.ErrAlreadyProcessed, intentId, current.Status)
		}

		deposit, err := getDeposit(ctx, tx, signature)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: payment %s has not been observed", store.ErrPaymentInvalid, signature)
		}
		if err != nil {
			return err
		}
		if err := validatePayment(ctx, tx, current, deposit); err != nil {
			return err
		}

		var otherId string
		err = tx.QueryRowContext(ctx, queryFindIntentBySignature, signature).Scan(&otherId)
		if err == nil {
			return fmt.Errorf("%w: payment already confirms intent %s", store.ErrSignatureConflict, otherId)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to check payment signature: %w", err)
		}

		result, err := tx.ExecContext(ctx, queryConfirmPresaleIntent, signature, now(), intentId)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", store.ErrSignatureConflict, signature)
			}
			return fmt.Errorf("failed to confirm presale intent: %w", err)
		}
		if err := checkAffected(result, store.ErrConcurrentModification); err != nil {
			return err
		}

		intent, err = getIntent(ctx, tx, intentId)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if !alreadyConfirmed {
		zap.L().Info("Presale intent confirmed",
			zap.String("intent_id", intentId),
			zap.String("user_id", intent.UserId),
			zap.String("signature", signature))
	}
	return intent, alreadyConfirmed, nil
}

func validatePayment(ctx context.Context, tx *sql.Tx, intent *models.PresaleEntryIntent, deposit *models.DepositRecord) error {
	if deposit.Status != models.StatusSucceeded {
		return fmt.Errorf("%w: payment is %s", store.ErrPaymentInvalid, deposit.Status)
	}
	if deposit.Asset != models.AssetPresale {
		return fmt.Errorf("%w: payment was not made in the presale token", store.ErrPaymentInvalid)
	}
	if deposit.UserId != intent.UserId {
		return fmt.Errorf("%w: payment belongs to another user", store.ErrPaymentInvalid)
	}

	presale, err := getPresale(ctx, tx, intent.PresaleId)
	if err != nil {
		return err
	}
	due := presale.PricePerEntry.Mul(decimal.NewFromInt(intent.EntryAmount))
	if deposit.Amount.LessThan(due) {
		return fmt.Errorf("%w: paid %s, due %s", store.ErrPaymentInvalid, deposit.Amount.String(), due.String())
	}
	return nil
}

// CancelPresaleIntent releases a PENDING intent. Only its owner may cancel it.
func (s *Service) CancelPresaleIntent(ctx context.Context, intentId, userId string) (*models.PresaleEntryIntent, error) {
	var intent *models.PresaleEntryIntent

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getIntent(ctx, tx, intentId)
		if err != nil {
			return err
		}
		if current.UserId != userId {
			return fmt.Errorf("%w: intent %s belongs to another user", store.ErrForbidden, intentId)
		}
		switch current.Status {
		case models.IntentCancelled, models.IntentExpired:
			intent = current
			return nil
		case models.IntentConfirmed:
			return fmt.Errorf("%w: intent %s is confirmed", store.ErrAlreadyProcessed, intentId)
		}

		result, err := tx.ExecContext(ctx, queryCancelPresaleIntent, now(), intentId)
		if err != nil {
			return fmt.Errorf("failed to cancel presale intent: %w", err)
		}
		if err := checkAffected(result, store.ErrConcurrentModification); err != nil {
			return err
		}

		intent, err = getIntent(ctx, tx, intentId)
		return err
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}

// ExpirePresaleIntents releases supply held by PENDING intents created before the cutoff.
func (s *Service) ExpirePresaleIntents(ctx context.Context, createdBefore time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, queryExpirePresaleIntents, now(), createdBefore.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire presale intents: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if count > 0 {
		zap.L().Info("Expired presale intents", zap.Int64("count", count))
	}
	return count, nil
}
