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

import "time"

// Config represents the application configuration
type Config struct {
	Database   DatabaseConfig
	Listener   ListenerConfig
	Withdrawal WithdrawalConfig
	Payout     PayoutConfig
	Presale    PresaleConfig
	Server     ServerConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// ListenerConfig holds chain event consumer settings
type ListenerConfig struct {
	NatsUrl       string
	Stream        string
	Consumer      string
	AckWait       time.Duration
	MaxDeliver    int
	EnsureStream  bool
	TokensFile    string
	SweepInterval time.Duration
}

// WithdrawalConfig holds the payout safety thresholds, expressed in points
type WithdrawalConfig struct {
	BalanceCeiling int64
	MaxPayout      int64
	ClaimTimeout   time.Duration
}

// PayoutConfig holds payout worker settings
type PayoutConfig struct {
	PollingInterval     time.Duration
	ReaperInterval      time.Duration
	BatchSize           int
	PortfolioId         string
	WalletId            string
	Asset               string
	PointsPerPayoutUnit int64
}

// PresaleConfig holds presale intent settings
type PresaleConfig struct {
	IntentTTL time.Duration
}

// ServerConfig holds HTTP settings
type ServerConfig struct {
	Addr          string
	ListenerToken string
	GinMode       string
}
