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
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"forge-market-go/internal/common"
	"forge-market-go/internal/config"
	"forge-market-go/internal/payout"

	"go.uber.org/zap"
)

func main() {
	once := flag.Bool("once", false, "Process a single batch of withdrawals and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	sender, err := common.InitializePayoutSender(ctx, cfg.Payout)
	if err != nil {
		zap.L().Fatal("Failed to initialize payout sender", zap.Error(err))
	}

	worker := payout.NewWorker(payout.WorkerConfig{
		Ledger:              services.Ledger,
		Sender:              sender,
		PollingInterval:     cfg.Payout.PollingInterval,
		ReaperInterval:      cfg.Payout.ReaperInterval,
		BatchSize:           cfg.Payout.BatchSize,
		Asset:               cfg.Payout.Asset,
		PointsPerPayoutUnit: cfg.Payout.PointsPerPayoutUnit,
	})

	if *once {
		sent := worker.ProcessBatch(ctx)
		zap.L().Info("Processed withdrawal batch", zap.Int("sent", sent))
		return
	}

	worker.Start(ctx)
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping payout worker...")
	worker.Stop()
}
