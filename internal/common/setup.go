package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"forge-market-go/internal/api"
	"forge-market-go/internal/config"
	"forge-market-go/internal/database"
	"forge-market-go/internal/models"
	"forge-market-go/internal/prime"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService   *database.Service
	Ledger      *api.LedgerService
	TokenRoutes config.TokenRoutes
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices opens the database, applies migrations and loads the
// token routes the deposit processor needs.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	routes, err := config.LoadTokenRoutes(cfg.Listener.TokensFile)
	if err != nil {
		dbService.Close()
		return nil, err
	}
	zap.L().Info("Loaded token routes",
		zap.String("file", cfg.Listener.TokensFile),
		zap.Int("count", len(routes)))

	return &Services{
		DbService:   dbService,
		Ledger:      api.NewLedgerService(dbService, routes, cfg),
		TokenRoutes: routes,
	}, nil
}

// InitializeDatabaseOnly initializes just the database service without token routes.
// Useful for operator commands that never ingest deposits.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	return database.NewService(ctx, cfg.Database)
}

// InitializePayoutSender connects to Prime and resolves the portfolio payouts
// are sent from. An unset PRIME_PORTFOLIO_ID falls back to the default portfolio.
func InitializePayoutSender(ctx context.Context, cfg models.PayoutConfig) (*prime.Sender, error) {
	zap.L().Info("Loading Prime API credentials")
	creds, err := prime.LoadCredentials()
	if err != nil {
		return nil, err
	}

	primeService, err := prime.NewService(creds)
	if err != nil {
		return nil, err
	}

	portfolioId := cfg.PortfolioId
	if portfolioId == "" {
		zap.L().Info("Finding default portfolio")
		portfolio, err := primeService.FindDefaultPortfolio(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve portfolio: %w", err)
		}
		zap.L().Info("Using default portfolio",
			zap.String("name", portfolio.Name),
			zap.String("id", portfolio.Id))
		portfolioId = portfolio.Id
	}

	return prime.NewSender(primeService, portfolioId, cfg.WalletId)
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
