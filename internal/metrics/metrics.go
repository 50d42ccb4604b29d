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
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DepositsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_deposits_total",
		Help: "Deposits ingested, by outcome status and asset",
	}, []string{"status", "asset"})

	DepositReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forge_deposit_replays_total",
		Help: "Deposit deliveries that hit an already settled signature",
	})

	CreditedPointsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_credited_total",
		Help: "Balance units credited by deposits",
	}, []string{"asset"})

	WithdrawalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_withdrawals_total",
		Help: "Withdrawal lifecycle transitions",
	}, []string{"outcome"})

	PayoutSafetyRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_payout_safety_rejections_total",
		Help: "Payouts blocked by the pre-payout safety check",
	}, []string{"reason"})

	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_settlements_total",
		Help: "Match attempts, by result",
	}, []string{"result"})

	SettledPointsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "forge_settled_points_total",
		Help: "Points transferred between users by marketplace trades",
	})

	PresaleIntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_presale_intents_total",
		Help: "Presale intent transitions",
	}, []string{"status"})

	ChainEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_chain_events_total",
		Help: "Chain events consumed, by subject and disposition",
	}, []string{"subject", "disposition"})

	ChainEventDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "forge_chain_event_duration_seconds",
		Help:    "Time spent handling one chain event",
		Buckets: prometheus.DefBuckets,
	}, []string{"subject"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "forge_http_requests_total",
		Help: "HTTP requests, by route and status code",
	}, []string{"route", "code"})
)
