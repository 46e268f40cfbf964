package usecase

import (
	"context"

	"settlement-service/internal/domain"
	"settlement-service/internal/pub"
	"settlement-service/internal/repository"
	"settlement-service/pkg/utils"

	"go.uber.org/zap"
)

// IntakeUsecase validates and records new funds requests. Intake is advisory
// capture only: no balance moves until an authority settles the transaction.
type IntakeUsecase struct {
	accountRepo    repository.AccountRepository
	ledgerRepo     repository.LedgerRepository
	refGen         *utils.ReferenceGenerator
	eventPublisher *pub.SettlementEventPublisher
	logger         *zap.Logger
}

func NewIntakeUsecase(
	accountRepo repository.AccountRepository,
	ledgerRepo repository.LedgerRepository,
	refGen *utils.ReferenceGenerator,
	eventPublisher *pub.SettlementEventPublisher,
	logger *zap.Logger,
) *IntakeUsecase {
	return &IntakeUsecase{
		accountRepo:    accountRepo,
		ledgerRepo:     ledgerRepo,
		refGen:         refGen,
		eventPublisher: eventPublisher,
		logger:         logger,
	}
}

// Submit creates a pending transaction for an existing account.
func (uc *IntakeUsecase) Submit(ctx context.Context, req *domain.SubmitRequest) (*domain.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	account, err := uc.accountRepo.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	tx := &domain.Transaction{
		ReferenceCode: uc.refGen.GenerateTransactionRef(),
		AccountID:     account.ID,
		OwnerName:     account.OwnerName,
		Kind:          req.Kind,
		Amount:        req.Amount,
		Note:          req.Note,
	}

	if err := uc.ledgerRepo.Create(ctx, tx); err != nil {
		return nil, err
	}

	uc.logger.Info("funds request submitted",
		zap.Int64("transaction_id", tx.ID),
		zap.Int64("account_id", tx.AccountID),
		zap.String("kind", string(tx.Kind)),
		zap.Int64("amount", tx.Amount))

	if uc.eventPublisher != nil {
		uc.eventPublisher.PublishSubmitted(ctx, tx)
	}

	return tx, nil
}

// ListTransactions returns transaction records newest first, with owner names
// joined for the administrative view.
func (uc *IntakeUsecase) ListTransactions(ctx context.Context, filter *domain.TransactionFilter) ([]*domain.Transaction, int64, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return uc.ledgerRepo.List(ctx, filter)
}
