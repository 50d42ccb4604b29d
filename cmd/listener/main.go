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
	"os"
	"os/signal"
	"syscall"
	"time"

	"forge-market-go/internal/common"
	"forge-market-go/internal/config"
	"forge-market-go/internal/listener"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting chain event listener")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	nc, js, err := listener.ConnectNATS(cfg.Listener.NatsUrl)
	if err != nil {
		zap.L().Fatal("Failed to connect to NATS", zap.Error(err))
	}
	defer nc.Close()

	l := listener.NewChainListener(listener.ChainListenerConfig{
		JetStream:     js,
		Ledger:        services.Ledger,
		Stream:        cfg.Listener.Stream,
		Consumer:      cfg.Listener.Consumer,
		AckWait:       cfg.Listener.AckWait,
		MaxDeliver:    cfg.Listener.MaxDeliver,
		EnsureStream:  cfg.Listener.EnsureStream,
		SweepInterval: cfg.Listener.SweepInterval,
	})
	if err := l.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start listener", zap.Error(err))
	}

	zap.L().Info("Listener running",
		zap.String("stream", cfg.Listener.Stream),
		zap.String("consumer", cfg.Listener.Consumer))
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping listener...")

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Listener stopped gracefully")
	case <-time.After(30 * time.Second):
		zap.L().Warn("Forced shutdown after timeout")
	}
}
