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
	"fmt"
	"time"

	"forge-market-go/internal/metrics"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// Start creates the durable consumer and begins processing chain events
func (l *ChainListener) Start(ctx context.Context) error {
	zap.L().Info("Starting chain listener",
		zap.String("stream", l.stream),
		zap.String("consumer", l.consumer))

	if l.ensureStream {
		if err := EnsureStream(ctx, l.js, l.stream); err != nil {
			return err
		}
	}

	consumer, err := l.js.CreateOrUpdateConsumer(ctx, l.stream, jetstream.ConsumerConfig{
		Durable:       l.consumer,
		FilterSubject: streamSubjects,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       l.ackWait,
		MaxDeliver:    l.maxDeliver,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", l.consumer, err)
	}

	l.consumeCtx, err = consumer.Consume(func(msg jetstream.Msg) {
		l.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("consume %s: %w", l.consumer, err)
	}

	go l.sweepLoop(ctx)

	zap.L().Info("Chain listener started successfully",
		zap.Duration("ack_wait", l.ackWait),
		zap.Int("max_deliver", l.maxDeliver),
		zap.Duration("sweep_interval", l.sweepInterval))
	return nil
}

// Stop gracefully stops the chain listener
func (l *ChainListener) Stop() {
	zap.L().Info("Stopping chain listener")
	if l.consumeCtx != nil {
		l.consumeCtx.Stop()
	}
	close(l.stopChan)
	<-l.doneChan
	zap.L().Info("Chain listener stopped")
}

// sweepLoop periodically expires presale intents that were never paid
func (l *ChainListener) sweepLoop(ctx context.Context) {
	defer close(l.doneChan)

	if l.sweepInterval <= 0 {
		select {
		case <-l.stopChan:
		case <-ctx.Done():
		}
		return
	}

	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweepIntents(ctx)
		case <-l.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (l *ChainListener) sweepIntents(ctx context.Context) {
	count, err := l.ledger.ExpireStaleIntents(ctx)
	if err != nil {
		zap.L().Error("Intent sweep failed", zap.Error(err))
		return
	}
	if count > 0 {
		zap.L().Info("Intent sweep released supply", zap.Int64("expired", count))
	}
}

// handleMessage dispatches one event and settles the message. Handlers are
// idempotent, so a NAK only risks a harmless replay.
func (l *ChainListener) handleMessage(ctx context.Context, msg message) {
	subject := msg.Subject()
	start := time.Now()

	var d disposition
	switch subject {
	case SubjectDepositConfirmed:
		d = l.handleDeposit(ctx, msg.Data())
	case SubjectWithdrawalConfirmed:
		d = l.handleWithdrawalConfirmed(ctx, msg.Data())
	case SubjectWithdrawalFailed:
		d = l.handleWithdrawalFailed(ctx, msg.Data())
	default:
		zap.L().Warn("Dropping event on unknown subject", zap.String("subject", subject))
		d = dispositionTerm
	}

	metrics.ChainEventDuration.WithLabelValues(subject).Observe(time.Since(start).Seconds())
	metrics.ChainEventsTotal.WithLabelValues(subject, d.String()).Inc()

	var err error
	switch d {
	case dispositionAck:
		err = msg.Ack()
	case dispositionNak:
		err = msg.Nak()
	default:
		err = msg.Term()
	}
	if err != nil {
		zap.L().Warn("Failed to settle message",
			zap.String("subject", subject),
			zap.String("disposition", d.String()),
			zap.Error(err))
	}
}
