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
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"forge-market-go/internal/models"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	busyTimeout, err := getEnvDuration("DB_BUSY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	ackWait, err := getEnvDuration("NATS_ACK_WAIT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	sweepInterval, err := getEnvDuration("INTENT_SWEEP_INTERVAL", time.Minute)
	if err != nil {
		return nil, err
	}

	claimTimeout, err := getEnvDuration("WITHDRAWAL_CLAIM_TIMEOUT", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	pollingInterval, err := getEnvDuration("PAYOUT_POLLING_INTERVAL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	reaperInterval, err := getEnvDuration("PAYOUT_REAPER_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	intentTTL, err := getEnvDuration("PRESALE_INTENT_TTL", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "forge.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			BusyTimeout:     busyTimeout,
		},
		Listener: models.ListenerConfig{
			NatsUrl:       getEnvString("NATS_URL", "nats://127.0.0.1:4222"),
			Stream:        getEnvString("NATS_STREAM", "CHAIN"),
			Consumer:      getEnvString("NATS_CONSUMER", "forge-ledger"),
			AckWait:       ackWait,
			MaxDeliver:    getEnvInt("NATS_MAX_DELIVER", 10),
			EnsureStream:  getEnvBool("NATS_ENSURE_STREAM", true),
			TokensFile:    getEnvString("TOKENS_FILE", "tokens.yaml"),
			SweepInterval: sweepInterval,
		},
		Withdrawal: models.WithdrawalConfig{
			BalanceCeiling: getEnvInt64("WITHDRAWAL_BALANCE_CEILING", 1000),
			MaxPayout:      getEnvInt64("WITHDRAWAL_MAX_PAYOUT", 0),
			ClaimTimeout:   claimTimeout,
		},
		Payout: models.PayoutConfig{
			PollingInterval:     pollingInterval,
			ReaperInterval:      reaperInterval,
			BatchSize:           getEnvInt("PAYOUT_BATCH_SIZE", 25),
			PortfolioId:         getEnvString("PRIME_PORTFOLIO_ID", ""),
			WalletId:            getEnvString("PRIME_WALLET_ID", ""),
			Asset:               getEnvString("PAYOUT_ASSET", "FORGE"),
			PointsPerPayoutUnit: getEnvInt64("POINTS_PER_PAYOUT_UNIT", 1),
		},
		Presale: models.PresaleConfig{
			IntentTTL: intentTTL,
		},
		Server: models.ServerConfig{
			Addr:          getEnvString("HTTP_ADDR", ":8080"),
			ListenerToken: getEnvString("LISTENER_TOKEN", ""),
			GinMode:       getEnvString("GIN_MODE", "release"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
