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
	"time"

	"forge-market-go/internal/models"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	SubjectDepositConfirmed    = "chain.deposits.confirmed"
	SubjectWithdrawalConfirmed = "chain.withdrawals.confirmed"
	SubjectWithdrawalFailed    = "chain.withdrawals.failed"

	streamSubjects = "chain.>"
)

// Ledger is the part of the ledger service driven by chain events
type Ledger interface {
	IngestDeposit(ctx context.Context, event models.DepositEvent) (*models.DepositOutcome, error)
	CompleteWithdrawal(ctx context.Context, id, signature string) (*models.WithdrawalRequest, bool, error)
	FailWithdrawal(ctx context.Context, id, reason string, retryable bool) error
	ExpireStaleIntents(ctx context.Context) (int64, error)
}

// message is the subset of jetstream.Msg the handlers need
type message interface {
	Subject() string
	Data() []byte
	Ack() error
	Nak() error
	Term() error
}

type disposition int

const (
	dispositionAck disposition = iota
	// redeliver later; handlers are safe under redelivery
	dispositionNak
	// the event can never succeed
	dispositionTerm
)

func (d disposition) String() string {
	switch d {
	case dispositionAck:
		return "ack"
	case dispositionNak:
		return "nak"
	default:
		return "term"
	}
}

// ChainListenerConfig contains configuration for ChainListener
type ChainListenerConfig struct {
	JetStream     jetstream.JetStream
	Ledger        Ledger
	Stream        string
	Consumer      string
	AckWait       time.Duration
	MaxDeliver    int
	EnsureStream  bool
	SweepInterval time.Duration
}

// ChainListener consumes confirmed chain events from JetStream and feeds
// them to the ledger. It also expires unpaid presale intents on a timer.
type ChainListener struct {
	js     jetstream.JetStream
	ledger Ledger

	stream        string
	consumer      string
	ackWait       time.Duration
	maxDeliver    int
	ensureStream  bool
	sweepInterval time.Duration

	consumeCtx jetstream.ConsumeContext

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewChainListener(cfg ChainListenerConfig) *ChainListener {
	return &ChainListener{
		js:            cfg.JetStream,
		ledger:        cfg.Ledger,
		stream:        cfg.Stream,
		consumer:      cfg.Consumer,
		ackWait:       cfg.AckWait,
		maxDeliver:    cfg.MaxDeliver,
		ensureStream:  cfg.EnsureStream,
		sweepInterval: cfg.SweepInterval,
		stopChan:      make(chan struct{}),
		doneChan:      make(chan struct{}),
	}
}
