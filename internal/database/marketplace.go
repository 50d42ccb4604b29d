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
	"strings"

	"forge-market-go/internal/matching"
	"forge-market-go/internal/models"
	"forge-market-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func scanMarketplaceRecord(row interface{ Scan(...any) error }) (*models.MarketplaceRecord, error) {
	var r models.MarketplaceRecord
	err := row.Scan(&r.Id, &r.ProjectId, &r.RoleId, &r.TradeType, &r.PointsCost, &r.CreatedByUserId,
		&r.Listed, &r.Processed, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func getMarketplaceRecord(ctx context.Context, q queryer, id string) (*models.MarketplaceRecord, error) {
	r, err := scanMarketplaceRecord(q.QueryRowContext(ctx, queryGetMarketplaceRecord, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: marketplace record %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get marketplace record: %w", err)
	}
	return r, nil
}

// findOne runs a single-row book query and maps an empty result to ErrNotFound.
func findOne(ctx context.Context, q queryer, query string, args ...any) (*models.MarketplaceRecord, error) {
	r, err := scanMarketplaceRecord(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query order book: %w", err)
	}
	return r, nil
}

// matchCandidateLimit bounds how many crossing orders one settlement attempt
// walks past stale counterparts.
const matchCandidateLimit = 50

func listCandidates(ctx context.Context, tx *sql.Tx, record *models.MarketplaceRecord) ([]models.MarketplaceRecord, error) {
	query := queryCrossingBids
	if record.TradeType == models.TradeBuy {
		query = queryCrossingAsks
	}
	rows, err := tx.QueryContext(ctx, query,
		record.ProjectId, record.RoleId, record.CreatedByUserId, record.PointsCost, matchCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query crossing orders: %w", err)
	}
	defer closeRows(rows)

	var candidates []models.MarketplaceRecord
	for rows.Next() {
		r, err := scanMarketplaceRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan marketplace record: %w", err)
		}
		candidates = append(candidates, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating crossing orders: %w", err)
	}
	return candidates, nil
}

type activityParams struct {
	RecordId      string
	CounterpartId *string
	Action        string
	Price         int64
	ProjectId     string
	RoleId        *string
	BuyerUserId   *string
	SellerUserId  *string
}

func insertActivity(ctx context.Context, tx *sql.Tx, p activityParams) (string, error) {
	id := uuid.New().String()
	_, err := tx.ExecContext(ctx, queryInsertMarketplaceActivity,
		id, p.RecordId, p.CounterpartId, p.Action, p.Price, p.ProjectId, p.RoleId,
		p.BuyerUserId, p.SellerUserId, now())
	if err != nil {
		return "", fmt.Errorf("failed to insert %s activity: %w", p.Action, err)
	}
	return id, nil
}

// sides returns the buyer and seller user of a single record for the activity log.
func sides(r *models.MarketplaceRecord) (buyer, seller *string) {
	user := r.CreatedByUserId
	if r.TradeType == models.TradeBuy {
		return &user, nil
	}
	return nil, &user
}

// CreateMarketplaceRecord lists a new order. A SELL requires the creator to
// hold a matching entry and have no other open SELL in the same book; a BUY
// requires enough points at listing time and no outstanding withdrawal,
// although nothing is escrowed.
func (s *Service) CreateMarketplaceRecord(ctx context.Context, params store.CreateOrderParams) (*models.MarketplaceRecord, error) {
	if params.TradeType != models.TradeBuy && params.TradeType != models.TradeSell {
		return nil, fmt.Errorf("%w: trade type must be BUY or SELL", store.ErrInvalidInput)
	}
	if params.PointsCost <= 0 {
		return nil, fmt.Errorf("%w: points cost must be positive", store.ErrInvalidInput)
	}

	var record *models.MarketplaceRecord

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getProject(ctx, tx, params.ProjectId); err != nil {
			return err
		}
		if _, err := getUser(ctx, tx, params.UserId); err != nil {
			return err
		}

		switch params.TradeType {
		case models.TradeSell:
			if _, err := findHeldEntry(ctx, tx, params.UserId, params.ProjectId, params.RoleId); err != nil {
				return err
			}
			var openId string
			err := tx.QueryRowContext(ctx, queryFindOpenSell, params.UserId, params.ProjectId, params.RoleId).Scan(&openId)
			if err == nil {
				return fmt.Errorf("%w: record %s", store.ErrDuplicateListing, openId)
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to check open listings: %w", err)
			}
		case models.TradeBuy:
			if err := checkNoOutstandingWithdrawal(ctx, tx, params.UserId); err != nil {
				return err
			}
			balance, err := getBalance(ctx, tx, params.UserId)
			if err != nil {
				return err
			}
			if balance.Points < params.PointsCost {
				return fmt.Errorf("%w: has %d points, order costs %d",
					store.ErrInsufficientBalance, balance.Points, params.PointsCost)
			}
		}

		ts := now()
		id := uuid.New().String()
		_, err := tx.ExecContext(ctx, queryInsertMarketplaceRecord,
			id, params.ProjectId, params.RoleId, params.TradeType, params.PointsCost, params.UserId, ts, ts)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrDuplicateListing
			}
			return fmt.Errorf("failed to insert marketplace record: %w", err)
		}

		record, err = getMarketplaceRecord(ctx, tx, id)
		if err != nil {
			return err
		}

		buyer, seller := sides(record)
		_, err = insertActivity(ctx, tx, activityParams{
			RecordId:     id,
			Action:       models.ActionListing,
			Price:        params.PointsCost,
			ProjectId:    params.ProjectId,
			RoleId:       params.RoleId,
			BuyerUserId:  buyer,
			SellerUserId: seller,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Marketplace record listed",
		zap.String("record_id", record.Id),
		zap.String("project_id", record.ProjectId),
		zap.String("role", matching.RoleKey(record.RoleId)),
		zap.String("trade_type", record.TradeType),
		zap.Int64("points_cost", record.PointsCost),
		zap.String("user_id", record.CreatedByUserId))
	return record, nil
}

func (s *Service) GetMarketplaceRecord(ctx context.Context, id string) (*models.MarketplaceRecord, error) {
	return getMarketplaceRecord(ctx, s.db, id)
}

func (s *Service) ListMarketplaceRecords(ctx context.Context, filter store.OrderFilter) ([]models.MarketplaceRecord, error) {
	var conditions []string
	var args []any

	if filter.ProjectId != "" {
		conditions = append(conditions, "project_id = ?")
		args = append(args, filter.ProjectId)
	}
	if filter.RoleId != nil {
		conditions = append(conditions, "COALESCE(role_id, '') = ?")
		args = append(args, *filter.RoleId)
	}
	if filter.TradeType != "" {
		conditions = append(conditions, "trade_type = ?")
		args = append(args, filter.TradeType)
	}
	if filter.CreatedBy != "" {
		conditions = append(conditions, "created_by_user_id = ?")
		args = append(args, filter.CreatedBy)
	}
	if filter.OnlyOpen {
		conditions = append(conditions, "listed = 1 AND processed = 0")
	}

	query := "SELECT " + marketplaceColumns + " FROM marketplace_records"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list marketplace records: %w", err)
	}
	defer closeRows(rows)

	var records []models.MarketplaceRecord
	for rows.Next() {
		r, err := scanMarketplaceRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan marketplace record: %w", err)
		}
		records = append(records, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating marketplace rows: %w", err)
	}
	return records, nil
}

// FloorPrice returns the cheapest open SELL in a book, earliest first on ties.
func (s *Service) FloorPrice(ctx context.Context, projectId string, roleId *string) (*models.MarketplaceRecord, error) {
	return findOne(ctx, s.db, queryFloorPrice, projectId, roleId)
}

// BestBid returns the highest open BUY in a book, earliest first on ties.
func (s *Service) BestBid(ctx context.Context, projectId string, roleId *string) (*models.MarketplaceRecord, error) {
	return findOne(ctx, s.db, queryBestBid, projectId, roleId)
}

// DelistMarketplaceRecord withdraws an open order. Only its creator may delist
// it; delisting an already delisted record is a no-op reported by changed.
func (s *Service) DelistMarketplaceRecord(ctx context.Context, id, userId string) (*models.MarketplaceRecord, bool, error) {
	var record *models.MarketplaceRecord
	var changed bool

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getMarketplaceRecord(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.CreatedByUserId != userId {
			return fmt.Errorf("%w: only the creator may delist record %s", store.ErrForbidden, id)
		}
		if current.Processed {
			return fmt.Errorf("%w: record %s", store.ErrAlreadyProcessed, id)
		}
		if !current.Listed {
			record = current
			return nil
		}

		result, err := tx.ExecContext(ctx, queryDelistMarketplaceRecord, now(), id)
		if err != nil {
			return fmt.Errorf("failed to delist record: %w", err)
		}
		if err := checkAffected(result, store.ErrConcurrentModification); err != nil {
			return err
		}

		buyer, seller := sides(current)
		if _, err := insertActivity(ctx, tx, activityParams{
			RecordId:     id,
			Action:       models.ActionDelist,
			Price:        current.PointsCost,
			ProjectId:    current.ProjectId,
			RoleId:       current.RoleId,
			BuyerUserId:  buyer,
			SellerUserId: seller,
		}); err != nil {
			return err
		}

		changed = true
		record, err = getMarketplaceRecord(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		zap.L().Info("Marketplace record delisted", zap.String("record_id", id), zap.String("user_id", userId))
	}
	return record, changed, nil
}

func noMatch(reason string) *models.Settlement {
	return &models.Settlement{Matched: false, Reason: reason}
}

const (
	reasonBuyerWithdrawing = "buyer has a withdrawal outstanding"
	reasonBuyerUnfunded    = "buyer balance is insufficient"
	reasonSellerNotHolder  = "seller no longer holds the entry"
)

// blocker explains why a priced trade cannot settle right now and whose
// order is at fault.
type blocker struct {
	reason string
	userId string
}

// checkSettleable re-validates both sides of a trade inside the settlement
// transaction and returns the entry the seller hands over.
func checkSettleable(ctx context.Context, tx *sql.Tx, trade *matching.Trade) (string, *blocker, error) {
	buyerId := trade.Buy.CreatedByUserId
	sellerId := trade.Sell.CreatedByUserId

	err := checkNoOutstandingWithdrawal(ctx, tx, buyerId)
	if errors.Is(err, store.ErrWithdrawalOutstanding) {
		return "", &blocker{reason: reasonBuyerWithdrawing, userId: buyerId}, nil
	}
	if err != nil {
		return "", nil, err
	}

	buyerBalance, err := getBalance(ctx, tx, buyerId)
	if err != nil {
		return "", nil, err
	}
	if buyerBalance.Points < trade.Price {
		return "", &blocker{reason: reasonBuyerUnfunded, userId: buyerId}, nil
	}

	entryId, err := findHeldEntry(ctx, tx, sellerId, trade.Sell.ProjectId, trade.Sell.RoleId)
	if errors.Is(err, store.ErrNotHolder) {
		return "", &blocker{reason: reasonSellerNotHolder, userId: sellerId}, nil
	}
	if err != nil {
		return "", nil, err
	}
	return entryId, nil, nil
}

// SettleMatch settles recordId against the best crossing counterpart that can
// actually trade. Candidates are walked in price then FIFO order inside one
// transaction; a counterpart whose buyer is unfunded or withdrawing, or whose
// seller no longer holds the entry, is skipped. The winning pair is settled at
// the resting order's price: the buyer is debited and the seller credited, the
// entry changes owner, both records close and one SALE activity is written.
// When no candidate can trade the result is unmatched and nothing is written.
func (s *Service) SettleMatch(ctx context.Context, recordId string) (*models.Settlement, error) {
	var settlement *models.Settlement

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		record, err := getMarketplaceRecord(ctx, tx, recordId)
		if err != nil {
			return err
		}
		if record.Processed || !record.Listed {
			settlement = noMatch("record is no longer open")
			return nil
		}

		candidates, err := listCandidates(ctx, tx, record)
		if err != nil {
			return err
		}

		reason := "no crossing order in the book"
		var trade *matching.Trade
		var counterpart models.MarketplaceRecord
		var entryId string
		for _, candidate := range candidates {
			paired, err := matching.Pair(*record, candidate)
			if err != nil {
				reason = err.Error()
				continue
			}
			held, blocked, err := checkSettleable(ctx, tx, paired)
			if err != nil {
				return err
			}
			if blocked != nil {
				reason = blocked.reason
				// only the buyer's balance depends on the candidate's price
				if blocked.userId == record.CreatedByUserId && blocked.reason != reasonBuyerUnfunded {
					break
				}
				continue
			}
			trade, counterpart, entryId = paired, candidate, held
			break
		}
		if trade == nil {
			settlement = noMatch(reason)
			return nil
		}
		buyerId := trade.Buy.CreatedByUserId
		sellerId := trade.Sell.CreatedByUserId

		saleRef := "sale:" + trade.Sell.Id
		if _, err := adjustBalance(ctx, tx, balanceChange{
			UserId: buyerId, Asset: models.AssetPoints, Kind: models.EntrySalePaid,
			Delta: -trade.Price, Reference: saleRef,
		}); err != nil {
			return err
		}
		if _, err := adjustBalance(ctx, tx, balanceChange{
			UserId: sellerId, Asset: models.AssetPoints, Kind: models.EntrySaleIncome,
			Delta: trade.Price, Reference: saleRef,
		}); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, queryReassignEntry, buyerId, buyerId, entryId, sellerId)
		if err != nil {
			return fmt.Errorf("failed to reassign allowlist entry: %w", err)
		}
		if err := checkAffected(result, store.ErrConcurrentModification); err != nil {
			return err
		}

		result, err = tx.ExecContext(ctx, queryCloseMatchedRecords, now(), trade.Buy.Id, trade.Sell.Id)
		if err != nil {
			return fmt.Errorf("failed to close matched records: %w", err)
		}
		closed, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check rows affected: %w", err)
		}
		if closed != 2 {
			return fmt.Errorf("closed %d of 2 records - %w", closed, store.ErrConcurrentModification)
		}

		activityId, err := insertActivity(ctx, tx, activityParams{
			RecordId:      record.Id,
			CounterpartId: &counterpart.Id,
			Action:        models.ActionSale,
			Price:         trade.Price,
			ProjectId:     record.ProjectId,
			RoleId:        record.RoleId,
			BuyerUserId:   &buyerId,
			SellerUserId:  &sellerId,
		})
		if err != nil {
			return err
		}

		settlement = &models.Settlement{
			Matched:      true,
			BuyRecordId:  trade.Buy.Id,
			SellRecordId: trade.Sell.Id,
			BuyerUserId:  buyerId,
			SellerUserId: sellerId,
			EntryId:      entryId,
			Price:        trade.Price,
			ActivityId:   activityId,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if settlement.Matched {
		zap.L().Info("Marketplace trade settled",
			zap.String("buy_record_id", settlement.BuyRecordId),
			zap.String("sell_record_id", settlement.SellRecordId),
			zap.String("entry_id", settlement.EntryId),
			zap.Int64("price", settlement.Price))
	} else {
		zap.L().Info("Marketplace record not matched",
			zap.String("record_id", recordId),
			zap.String("reason", settlement.Reason))
	}
	return settlement, nil
}

func (s *Service) ListMarketplaceActivity(ctx context.Context, projectId string, limit int) ([]models.MarketplaceActivity, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, queryListMarketplaceActivity, projectId, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list marketplace activity: %w", err)
	}
	defer closeRows(rows)

	var activities []models.MarketplaceActivity
	for rows.Next() {
		var a models.MarketplaceActivity
		err := rows.Scan(&a.Id, &a.MarketplaceRecordId, &a.CounterpartRecordId, &a.Action, &a.Price,
			&a.ProjectId, &a.RoleId, &a.BuyerUserId, &a.SellerUserId, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan marketplace activity: %w", err)
		}
		activities = append(activities, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating marketplace activity rows: %w", err)
	}
	return activities, nil
}
