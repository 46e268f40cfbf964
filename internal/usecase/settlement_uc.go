package usecase

import (
	"context"
	"errors"
	"time"

	"settlement-service/internal/domain"
	"settlement-service/internal/pkg/xerrors"
	"settlement-service/internal/pub"
	"settlement-service/internal/repository"

	"go.uber.org/zap"
)

// SettlementUsecase moves transactions out of pending and applies their
// balance effect exactly once. Per-transaction decisions are serialized
// through a keyed lock; the status compare-and-swap in the ledger store
// remains the final arbiter, with delta compensation as the safety net
// should the swap ever be lost.
type SettlementUsecase struct {
	accountRepo    repository.AccountRepository
	ledgerRepo     repository.LedgerRepository
	accountUC      *AccountUsecase
	eventPublisher *pub.SettlementEventPublisher
	locks          *keyedLock
	logger         *zap.Logger
}

func NewSettlementUsecase(
	accountRepo repository.AccountRepository,
	ledgerRepo repository.LedgerRepository,
	accountUC *AccountUsecase,
	eventPublisher *pub.SettlementEventPublisher,
	logger *zap.Logger,
) *SettlementUsecase {
	return &SettlementUsecase{
		accountRepo:    accountRepo,
		ledgerRepo:     ledgerRepo,
		accountUC:      accountUC,
		eventPublisher: eventPublisher,
		locks:          newKeyedLock(),
		logger:         logger,
	}
}

// Decide settles a pending transaction.
//
// Reject flips the status and touches no balance. Approve first applies the
// signed delta through the account store's atomic conditional update, then
// flips the status; an overdrawing withdrawal fails with ErrInsufficientFunds
// and leaves the transaction pending so the authority may retry after a
// deposit or reject it instead. Repeated or racing decisions on a settled
// transaction return ErrAlreadySettled and never re-apply a balance effect.
func (uc *SettlementUsecase) Decide(ctx context.Context, req *domain.DecideRequest) (*domain.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := uc.locks.Lock(req.TransactionID)
	defer unlock()

	tx, err := uc.ledgerRepo.GetByID(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}

	if tx.Status.IsTerminal() {
		return nil, xerrors.ErrAlreadySettled
	}

	if req.Decision == domain.DecisionReject {
		return uc.reject(ctx, tx)
	}
	return uc.approve(ctx, tx)
}

func (uc *SettlementUsecase) reject(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	err := uc.ledgerRepo.SetStatus(ctx, tx.ID, domain.TransactionStatusPending, domain.TransactionStatusRejected)
	if err != nil {
		return nil, err
	}

	markSettled(tx, domain.TransactionStatusRejected)

	uc.logger.Info("transaction rejected",
		zap.Int64("transaction_id", tx.ID),
		zap.String("reference_code", tx.ReferenceCode))

	if uc.eventPublisher != nil {
		uc.eventPublisher.PublishSettled(ctx, tx, nil)
	}

	return tx, nil
}

func (uc *SettlementUsecase) approve(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	delta := tx.Delta()

	newBalance, err := uc.accountRepo.AdjustBalance(ctx, tx.AccountID, delta)
	if err != nil {
		// ErrInsufficientFunds leaves the transaction pending: the status
		// must not change when the balance adjustment did not happen.
		return nil, err
	}

	err = uc.ledgerRepo.SetStatus(ctx, tx.ID, domain.TransactionStatusPending, domain.TransactionStatusApproved)
	if err != nil {
		// The delta already landed but the status swap did not. Reverse it
		// before reporting, so the effect is never applied twice and never
		// applied without a matching approved record.
		uc.compensate(ctx, tx, -delta)

		if errors.Is(err, xerrors.ErrAlreadySettled) {
			return nil, xerrors.ErrAlreadySettled
		}
		return nil, err
	}

	uc.accountUC.InvalidateCache(ctx, tx.AccountID)

	markSettled(tx, domain.TransactionStatusApproved)

	uc.logger.Info("transaction approved",
		zap.Int64("transaction_id", tx.ID),
		zap.String("reference_code", tx.ReferenceCode),
		zap.Int64("delta", delta),
		zap.Int64("balance_after", newBalance))

	if uc.eventPublisher != nil {
		uc.eventPublisher.PublishSettled(ctx, tx, &newBalance)
	}

	return tx, nil
}

func (uc *SettlementUsecase) compensate(ctx context.Context, tx *domain.Transaction, reverseDelta int64) {
	if _, err := uc.accountRepo.AdjustBalance(ctx, tx.AccountID, reverseDelta); err != nil {
		// With decisions serialized per transaction this path is a safety
		// net; if the reversal itself fails the books need operator attention.
		uc.logger.Error("failed to compensate balance after lost settlement",
			zap.Int64("transaction_id", tx.ID),
			zap.Int64("account_id", tx.AccountID),
			zap.Int64("reverse_delta", reverseDelta),
			zap.Error(err))
		return
	}
	uc.accountUC.InvalidateCache(ctx, tx.AccountID)
}

func markSettled(tx *domain.Transaction, status domain.TransactionStatus) {
	now := time.Now()
	tx.Status = status
	tx.SettledAt = &now
}
