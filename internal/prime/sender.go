package prime

import (
	"context"
	"fmt"
	"strings"

	"forge-market-go/internal/models"

	"github.com/coinbase-samples/prime-sdk-go/model"
	"github.com/coinbase-samples/prime-sdk-go/transactions"
	"go.uber.org/zap"
)

// Sender pays withdrawals out of a Prime wallet. The withdrawal id is the
// idempotency key, so resending a request never creates a second transfer.
type Sender struct {
	svc         *Service
	portfolioId string
	walletId    string
}

func NewSender(svc *Service, portfolioId, walletId string) (*Sender, error) {
	if portfolioId == "" || walletId == "" {
		return nil, fmt.Errorf("portfolio id and wallet id are required")
	}
	return &Sender{svc: svc, portfolioId: portfolioId, walletId: walletId}, nil
}

// Send creates the wallet withdrawal. Prime settles asynchronously, so the
// returned Payout carries only the activity reference; the on-chain
// signature arrives later as a chain confirmation event.
func (s *Sender) Send(ctx context.Context, payout models.PayoutRequest) (*models.Payout, error) {
	request := withdrawalRequest(s.portfolioId, s.walletId, payout)

	zap.L().Info("Creating withdrawal via Prime API",
		zap.String("withdrawal_id", payout.WithdrawalId),
		zap.String("wallet_id", s.walletId),
		zap.String("asset", payout.Asset),
		zap.String("amount", request.Amount),
		zap.String("destination", payout.Destination))

	response, err := s.svc.transactionsSvc.CreateWalletWithdrawal(ctx, request)
	if err != nil {
		zap.L().Error("Failed to create withdrawal",
			zap.String("withdrawal_id", payout.WithdrawalId),
			zap.String("amount", request.Amount),
			zap.Error(err))
		return nil, fmt.Errorf("unable to create withdrawal: %w", err)
	}

	zap.L().Info("Withdrawal created successfully",
		zap.String("activity_id", response.ActivityId),
		zap.String("withdrawal_id", payout.WithdrawalId))

	return &models.Payout{Reference: response.ActivityId}, nil
}

// withdrawalRequest builds the Prime request. The asset may carry a network
// suffix: FORGE-solana-mainnet targets that network, FORGE uses the default.
func withdrawalRequest(portfolioId, walletId string, payout models.PayoutRequest) *transactions.CreateWalletWithdrawalRequest {
	parts := strings.Split(payout.Asset, "-")

	blockchainAddr := &model.BlockchainAddress{
		Address: payout.Destination,
	}
	if len(parts) >= 3 {
		blockchainAddr.Network = &model.NetworkDetails{
			Id:   parts[1],
			Type: parts[2],
		}
	}

	return &transactions.CreateWalletWithdrawalRequest{
		PortfolioId:       portfolioId,
		SourceWalletId:    walletId,
		Amount:            payout.Amount.String(),
		IdempotencyKey:    payout.WithdrawalId,
		Symbol:            parts[0],
		DestinationType:   "DESTINATION_BLOCKCHAIN",
		BlockchainAddress: blockchainAddr,
	}
}
