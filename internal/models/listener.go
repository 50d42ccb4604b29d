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

// DepositEvent is a confirmed on-chain transfer delivered by the chain listener
type DepositEvent struct {
	Signature    string          `json:"signature"`
	Sender       string          `json:"sender"`
	TokenAddress string          `json:"token_address"`
	Amount       decimal.Decimal `json:"amount"`
	UserId       string          `json:"user_id"`
	ObservedAt   time.Time       `json:"observed_at"`
}

// WithdrawalConfirmedEvent reports that a payout landed on-chain
type WithdrawalConfirmedEvent struct {
	WithdrawalId string `json:"withdrawal_id"`
	Signature    string `json:"signature"`
}

// WithdrawalFailedEvent reports that the payout sender gave up on a withdrawal
type WithdrawalFailedEvent struct {
	WithdrawalId string `json:"withdrawal_id"`
	Reason       string `json:"reason"`
	Retryable    bool   `json:"retryable"`
}

// TokenRoute maps a token mint to the balance it funds
type TokenRoute struct {
	Mint   string
	Symbol string
	Asset  string
	Scale  decimal.Decimal
}
