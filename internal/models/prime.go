package models

import "github.com/shopspring/decimal"

// Portfolio represents a Prime portfolio
type Portfolio struct {
	Id   string
	Name string
}

// PayoutRequest is what the payout worker hands to a PayoutSender
type PayoutRequest struct {
	WithdrawalId string
	UserId       string
	Destination  string
	Points       int64
	Amount       decimal.Decimal
	Asset        string
}

// Payout is the sender's receipt. Signature is only set when the sender
// already knows the on-chain signature; otherwise confirmation arrives later.
type Payout struct {
	Reference string
	Signature string
}
