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

package store

import (
	"context"
	"errors"
	"time"

	"forge-market-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound               = errors.New("not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrInvalidInput           = errors.New("invalid input")
	ErrForbidden              = errors.New("forbidden")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrZeroBalance            = errors.New("nothing to withdraw")
	ErrWithdrawalOutstanding  = errors.New("a withdrawal is already outstanding")
	ErrAlreadyClaimed         = errors.New("withdrawal already claimed")
	ErrNotClaimed             = errors.New("withdrawal is not claimed for payout")
	ErrAlreadyProcessed       = errors.New("already processed")
	ErrSignatureConflict      = errors.New("signature already recorded for another operation")
	ErrDuplicateListing       = errors.New("an open listing already exists for this project and role")
	ErrNotHolder              = errors.New("user does not hold an allowlist entry for this project and role")
	ErrNotListed              = errors.New("record is not listed")
	ErrPresaleClosed          = errors.New("presale is not active")
	ErrSupplyExceeded         = errors.New("presale supply exceeded")
	ErrUserLimitExceeded      = errors.New("per-user presale limit exceeded")
	ErrPaymentInvalid         = errors.New("payment does not cover the intent")
	ErrReconciliationMismatch = errors.New("balance does not match its entry history")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// ReserveDepositParams is the first phase of deposit ingestion. Asset and
// Credited are resolved by the caller from the token route so a resumed
// deposit applies exactly what was reserved.
type ReserveDepositParams struct {
	Signature    string
	Sender       string
	TokenAddress string
	Amount       decimal.Decimal
	UserId       string
	Asset        string
	Credited     int64
}

// CreateOrderParams contains the parameters for placing a marketplace order.
type CreateOrderParams struct {
	UserId     string
	TradeType  string
	ProjectId  string
	PointsCost int64
	RoleId     *string
}

// OrderFilter narrows ListMarketplaceRecords. Empty fields match everything.
type OrderFilter struct {
	ProjectId string
	RoleId    *string
	TradeType string
	OnlyOpen  bool
	CreatedBy string
	Limit     int
}

// CreatePresaleParams seeds a presale.
type CreatePresaleParams struct {
	Name             string
	Supply           int64
	MaxSupplyPerUser int64
	PricePerEntry    decimal.Decimal
}

// CreateIntentParams contains the parameters for reserving presale supply.
type CreateIntentParams struct {
	PresaleId     string
	UserId        string
	WalletAddress string
	EntryAmount   int64
}

// LedgerStore defines the contract that every backend must satisfy.
type LedgerStore interface {
	// --- Users ---
	CreateUser(ctx context.Context, userId, walletAddress string) (*models.User, error)
	GetUserById(ctx context.Context, userId string) (*models.User, error)
	GetUsers(ctx context.Context) ([]models.User, error)
	SetUserPolicy(ctx context.Context, userId string, excludeFromReports bool, note string) error
	GetUserPolicy(ctx context.Context, userId string) (*models.UserPolicy, error)

	// --- Balances ---
	GetBalance(ctx context.Context, userId string) (*models.Balance, error)
	GetBalanceHistory(ctx context.Context, userId string, limit, offset int) ([]models.BalanceEntry, error)
	ReconcileBalance(ctx context.Context, userId string) error
	ListBalanceReports(ctx context.Context, includeExcluded bool) ([]models.BalanceReport, error)

	// --- Idempotency ledger and deposits ---
	GetLedgerEntry(ctx context.Context, signature string) (*models.LedgerEntry, error)
	GetDepositBySignature(ctx context.Context, signature string) (*models.DepositRecord, error)
	ReserveDeposit(ctx context.Context, params ReserveDepositParams) (*models.DepositRecord, bool, error)
	FailDeposit(ctx context.Context, signature, reason string) (*models.DepositRecord, error)
	ApplyDeposit(ctx context.Context, signature string) (*models.DepositRecord, bool, error)
	ListUnboundPresaleDeposits(ctx context.Context) ([]models.DepositRecord, error)

	// --- Withdrawals ---
	CreateWithdrawal(ctx context.Context, userId, destination string) (*models.WithdrawalRequest, error)
	GetWithdrawal(ctx context.Context, id string) (*models.WithdrawalRequest, error)
	ListUnclaimedWithdrawals(ctx context.Context, limit int) ([]models.WithdrawalRequest, error)
	ListFlaggedWithdrawals(ctx context.Context) ([]models.WithdrawalRequest, error)
	ListUserWithdrawals(ctx context.Context, userId string) ([]models.WithdrawalRequest, error)
	MarkWithdrawalProcessing(ctx context.Context, id string) (*models.WithdrawalRequest, error)
	SetWithdrawalError(ctx context.Context, id, message string, releaseClaim bool) error
	SetPayoutReference(ctx context.Context, id, reference string) error
	CompleteWithdrawal(ctx context.Context, id, signature string) (*models.WithdrawalRequest, bool, error)
	ResetStaleWithdrawals(ctx context.Context, claimedBefore time.Time) (int64, error)
	ResolveWithdrawal(ctx context.Context, id string) error

	// --- Allowlists ---
	CreateProject(ctx context.Context, name string) (*models.Project, error)
	GetProject(ctx context.Context, id string) (*models.Project, error)
	CreateAllowlist(ctx context.Context, projectId, name string) (*models.Allowlist, error)
	CreateAllowlistEntry(ctx context.Context, allowlistId string, userId *string, role string, walletAddress *string) (*models.AllowlistEntry, error)
	HoldsEntry(ctx context.Context, userId, projectId string, roleId *string) (bool, error)
	ListEntriesByOwner(ctx context.Context, userId string) ([]models.AllowlistEntry, error)

	// --- Marketplace ---
	CreateMarketplaceRecord(ctx context.Context, params CreateOrderParams) (*models.MarketplaceRecord, error)
	GetMarketplaceRecord(ctx context.Context, id string) (*models.MarketplaceRecord, error)
	ListMarketplaceRecords(ctx context.Context, filter OrderFilter) ([]models.MarketplaceRecord, error)
	FloorPrice(ctx context.Context, projectId string, roleId *string) (*models.MarketplaceRecord, error)
	BestBid(ctx context.Context, projectId string, roleId *string) (*models.MarketplaceRecord, error)
	DelistMarketplaceRecord(ctx context.Context, id, userId string) (*models.MarketplaceRecord, bool, error)
	SettleMatch(ctx context.Context, recordId string) (*models.Settlement, error)
	ListMarketplaceActivity(ctx context.Context, projectId string, limit int) ([]models.MarketplaceActivity, error)

	// --- Presales ---
	CreatePresale(ctx context.Context, params CreatePresaleParams) (*models.Presale, error)
	GetPresale(ctx context.Context, id string) (*models.Presale, error)
	GetPresaleAvailability(ctx context.Context, id string) (*models.PresaleAvailability, error)
	CreatePresaleIntent(ctx context.Context, params CreateIntentParams) (*models.PresaleEntryIntent, error)
	GetPresaleIntent(ctx context.Context, id string) (*models.PresaleEntryIntent, error)
	ConfirmPresaleIntent(ctx context.Context, intentId, signature string) (*models.PresaleEntryIntent, bool, error)
	CancelPresaleIntent(ctx context.Context, intentId, userId string) (*models.PresaleEntryIntent, error)
	ExpirePresaleIntents(ctx context.Context, createdBefore time.Time) (int64, error)

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close()
}
