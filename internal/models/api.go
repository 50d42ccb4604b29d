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
	"github.com/shopspring/decimal"
)

// DepositOutcome is the terminal (or replayed) result of ingesting a deposit
type DepositOutcome struct {
	Signature  string `json:"signature"`
	Status     string `json:"status"`
	UserId     string `json:"user_id,omitempty"`
	Asset      string `json:"asset,omitempty"`
	Credited   int64  `json:"credited"`
	NewBalance int64  `json:"new_balance,omitempty"`
	Replayed   bool   `json:"replayed"`
	Reason     string `json:"reason,omitempty"`
}

// Settlement is the result of a match attempt; Matched is false for a no-op
type Settlement struct {
	Matched      bool   `json:"matched"`
	Reason       string `json:"reason,omitempty"`
	BuyRecordId  string `json:"buy_record_id,omitempty"`
	SellRecordId string `json:"sell_record_id,omitempty"`
	BuyerUserId  string `json:"buyer_user_id,omitempty"`
	SellerUserId string `json:"seller_user_id,omitempty"`
	EntryId      string `json:"entry_id,omitempty"`
	Price        int64  `json:"price,omitempty"`
	ActivityId   string `json:"activity_id,omitempty"`
}

// PayoutCheck is the outcome of the pre-payout safety check
type PayoutCheck struct {
	Safe     bool   `json:"safe"`
	Reason   string `json:"reason,omitempty"`
	Captured int64  `json:"captured"`
	Current  int64  `json:"current"`
}

// BalanceReport is a balance row used by operator reports
type BalanceReport struct {
	UserId        string `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
	Points        int64  `json:"points"`
	ForgeStaked   int64  `json:"forge_staked"`
}

// OrderBookSide summarises the best price on one side of a project/role book
type OrderBookSide struct {
	RecordId   string `json:"record_id"`
	PointsCost int64  `json:"points_cost"`
}

// PresaleAvailability reports how much supply is still free
type PresaleAvailability struct {
	PresaleId string          `json:"presale_id"`
	Supply    int64           `json:"supply"`
	Reserved  int64           `json:"reserved"`
	Remaining int64           `json:"remaining"`
	Price     decimal.Decimal `json:"price_per_entry"`
}
