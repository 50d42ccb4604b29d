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
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"forge-market-go/internal/api"
	"forge-market-go/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the ledger over HTTP. User routes identify the caller by
// the X-User-Id header set by the upstream gateway; worker routes require
// the shared listener token.
type Server struct {
	ledger *api.LedgerService
	engine *gin.Engine
	addr   string
}

func NewServer(ledger *api.LedgerService, cfg models.ServerConfig) *Server {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	s := &Server{
		ledger: ledger,
		engine: gin.New(),
		addr:   cfg.Addr,
	}
	s.engine.Use(gin.Recovery(), requestMetrics())
	s.registerRoutes(cfg.ListenerToken)
	return s
}

func (s *Server) registerRoutes(listenerToken string) {
	s.engine.GET("/health", s.health)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	user := s.engine.Group("/v1", requireUser())
	{
		user.GET("/balance", s.getBalance)
		user.GET("/balance/history", s.getBalanceHistory)
		user.GET("/entries", s.listEntries)

		user.POST("/withdrawals", s.requestWithdrawal)
		user.GET("/withdrawals", s.listWithdrawals)

		user.POST("/orders", s.placeOrder)
		user.GET("/orders", s.listOrders)
		user.GET("/orders/:id", s.getOrder)
		user.DELETE("/orders/:id", s.delistOrder)
		user.GET("/projects/:id/book", s.bookTop)
		user.GET("/projects/:id/activity", s.listActivity)

		user.GET("/presales/:id", s.presaleAvailability)
		user.POST("/presales/:id/intents", s.createIntent)
		user.GET("/intents/:id", s.getIntent)
		user.POST("/intents/:id/confirm", s.confirmIntent)
		user.POST("/intents/:id/cancel", s.cancelIntent)
	}

	if listenerToken == "" {
		zap.L().Warn("LISTENER_TOKEN is not set, worker routes are disabled")
		return
	}

	worker := s.engine.Group("/internal", requireWorker(listenerToken))
	{
		worker.POST("/deposits", s.ingestDeposit)
		worker.GET("/deposits/:signature", s.getDeposit)

		worker.GET("/withdrawals/unclaimed", s.listUnclaimed)
		worker.POST("/withdrawals/:id/claim", s.claimWithdrawal)
		worker.POST("/withdrawals/:id/safety", s.checkPayoutSafety)
		worker.POST("/withdrawals/:id/reference", s.setPayoutReference)
		worker.POST("/withdrawals/:id/complete", s.completeWithdrawal)
		worker.POST("/withdrawals/:id/fail", s.failWithdrawal)
	}
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		zap.L().Info("Starting HTTP server", zap.String("addr", s.addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	if err := s.ledger.HealthCheck(c.Request.Context()); err != nil {
		zap.L().Error("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "DOWN"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}
