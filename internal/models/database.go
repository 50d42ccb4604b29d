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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Deposit and ledger statuses
const (
	StatusPending   = "PENDING"
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// Idempotency ledger kinds
const (
	LedgerKindDeposit    = "deposit"
	LedgerKindWithdrawal = "withdrawal"
)

// Balance assets a deposit can be routed to
const (
	AssetPoints     = "points"
	AssetForgeStake = "forge_stake"
	AssetPresale    = "presale"
)

// Balance entry kinds
const (
	EntryDeposit    = "deposit"
	EntryWithdrawal = "withdrawal"
	EntrySalePaid   = "sale_paid"
	EntrySaleIncome = "sale_income"
)

const (
	TradeBuy  = "BUY"
	TradeSell = "SELL"
)

// Marketplace activity actions
const (
	ActionListing = "LISTING"
	ActionSale    = "SALE"
	ActionDelist  = "DELIST"
)

// Presale intent statuses
const (
	IntentPending   = "PENDING"
	IntentConfirmed = "CONFIRMED"
	IntentCancelled = "CANCELLED"
	IntentExpired   = "EXPIRED"
)

// User represents a marketplace member
type User struct {
	Id            string    `db:"id" json:"id"`
	WalletAddress string    `db:"wallet_address" json:"wallet_address"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// UserPolicy carries per-user operational flags
type UserPolicy struct {
	UserId             string    `db:"user_id" json:"user_id"`
	ExcludeFromReports bool      `db:"exclude_from_reports" json:"exclude_from_reports"`
	Note               string    `db:"note" json:"note"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Balance is the live balance of a user (hot data)
type Balance struct {
	UserId      string    `db:"user_id" json:"user_id"`
	Points      int64     `db:"points" json:"points"`
	ForgeStaked int64     `db:"forge_staked" json:"forge_staked"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// BalanceEntry is an immutable audit row written for every balance mutation
type BalanceEntry struct {
	Id            string    `db:"id" json:"id"`
	UserId        string    `db:"user_id" json:"user_id"`
	Asset         string    `db:"asset" json:"asset"`
	Kind          string    `db:"kind" json:"kind"`
	Change        int64     `db:"change" json:"change"`
	BalanceBefore int64     `db:"balance_before" json:"balance_before"`
	BalanceAfter  int64     `db:"balance_after" json:"balance_after"`
	Reference     string    `db:"reference" json:"reference"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// LedgerEntry records an on-chain signature that has been seen, keyed by signature
type LedgerEntry struct {
	Signature   string    `db:"signature" json:"signature"`
	Kind        string    `db:"kind" json:"kind"`
	Status      string    `db:"status" json:"status"`
	ReferenceId string    `db:"reference_id" json:"reference_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DepositRecord tracks a single on-chain deposit from reservation to outcome
type DepositRecord struct {
	Id           string          `db:"id" json:"id"`
	Signature    string          `db:"signature" json:"signature"`
	Sender       string          `db:"sender" json:"sender"`
	TokenAddress string          `db:"token_address" json:"token_address"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	UserId       string          `db:"user_id" json:"user_id"`
	Asset        string          `db:"asset" json:"asset"`
	Credited     int64           `db:"credited" json:"credited"`
	Status       string          `db:"status" json:"status"`
	Reason       string          `db:"reason" json:"reason"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// WithdrawalRequest is a request to pay a captured points balance out on-chain
type WithdrawalRequest struct {
	Id          string     `db:"id" json:"id"`
	UserId      string     `db:"user_id" json:"user_id"`
	Amount      int64      `db:"amount" json:"amount"`
	Destination string     `db:"destination" json:"destination"`
	Processing  bool       `db:"processing" json:"processing"`
	Processed   bool       `db:"processed" json:"processed"`
	Error       *string    `db:"error" json:"error,omitempty"`
	TxSignature *string    `db:"tx_signature" json:"tx_signature,omitempty"`
	PayoutRef   *string    `db:"payout_reference" json:"payout_reference,omitempty"`
	ClaimedAt   *time.Time `db:"claimed_at" json:"claimed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Project groups allowlists
type Project struct {
	Id        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Allowlist belongs to a project
type Allowlist struct {
	Id        string `db:"id" json:"id"`
	ProjectId string `db:"project_id" json:"project_id"`
	Name      string `db:"name" json:"name"`
}

// AllowlistEntry is the tradeable spot; UserId is its current owner
type AllowlistEntry struct {
	Id            string  `db:"id" json:"id"`
	AllowlistId   string  `db:"allowlist_id" json:"allowlist_id"`
	UserId        *string `db:"user_id" json:"user_id,omitempty"`
	Role          string  `db:"role" json:"role"`
	WalletAddress *string `db:"wallet_address" json:"wallet_address,omitempty"`
}

// MarketplaceRecord is a standing BUY or SELL order
type MarketplaceRecord struct {
	Id              string    `db:"id" json:"id"`
	ProjectId       string    `db:"project_id" json:"project_id"`
	RoleId          *string   `db:"role_id" json:"role_id,omitempty"`
	TradeType       string    `db:"trade_type" json:"trade_type"`
	PointsCost      int64     `db:"points_cost" json:"points_cost"`
	CreatedByUserId string    `db:"created_by_user_id" json:"created_by_user_id"`
	Listed          bool      `db:"listed" json:"listed"`
	Processed       bool      `db:"processed" json:"processed"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// MarketplaceActivity is an append-only marketplace log row
type MarketplaceActivity struct {
	Id                  string    `db:"id" json:"id"`
	MarketplaceRecordId string    `db:"marketplace_record_id" json:"marketplace_record_id"`
	CounterpartRecordId *string   `db:"counterpart_record_id" json:"counterpart_record_id,omitempty"`
	Action              string    `db:"action" json:"action"`
	Price               int64     `db:"price" json:"price"`
	ProjectId           string    `db:"project_id" json:"project_id"`
	RoleId              *string   `db:"role_id" json:"role_id,omitempty"`
	BuyerUserId         *string   `db:"buyer_user_id" json:"buyer_user_id,omitempty"`
	SellerUserId        *string   `db:"seller_user_id" json:"seller_user_id,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// Presale is a bounded-supply allocation sold for the presale token
type Presale struct {
	Id               string          `db:"id" json:"id"`
	Name             string          `db:"name" json:"name"`
	Supply           int64           `db:"supply" json:"supply"`
	MaxSupplyPerUser int64           `db:"max_supply_per_user" json:"max_supply_per_user"`
	PricePerEntry    decimal.Decimal `db:"price_per_entry" json:"price_per_entry"`
	Active           bool            `db:"active" json:"active"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// PresaleEntryIntent reserves presale supply for a user pending payment
type PresaleEntryIntent struct {
	Id               string    `db:"id" json:"id"`
	PresaleId        string    `db:"presale_id" json:"presale_id"`
	UserId           string    `db:"user_id" json:"user_id"`
	WalletAddress    string    `db:"wallet_address" json:"wallet_address"`
	EntryAmount      int64     `db:"entry_amount" json:"entry_amount"`
	Status           string    `db:"status" json:"status"`
	PaymentSignature *string   `db:"payment_signature" json:"payment_signature,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
