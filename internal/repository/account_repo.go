package repository

import (
	"context"
	"errors"

	"settlement-service/internal/domain"
	"settlement-service/internal/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// AccountRepository is the durable map from account id to balance. AdjustBalance
// is the single atomic unit that validates and applies a signed delta; no caller
// ever observes an intermediate balance.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	GetByOwnerName(ctx context.Context, ownerName string) (*domain.Account, error)
	AdjustBalance(ctx context.Context, id int64, delta int64) (int64, error)
}

type accountRepo struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAccountRepo(db *pgxpool.Pool, logger *zap.Logger) AccountRepository {
	return &accountRepo{db: db, logger: logger}
}

func (r *accountRepo) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (account_number, owner_name, balance)
		VALUES ($1, $2, 0)
		RETURNING id, balance, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		account.AccountNumber,
		account.OwnerName,
	).Scan(&account.ID, &account.Balance, &account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		if xerrors.IsUniqueViolation(err) {
			return xerrors.ErrOwnerAlreadyExists
		}
		return xerrors.Storage("create account", err)
	}

	r.logger.Info("account created",
		zap.Int64("account_id", account.ID),
		zap.String("account_number", account.AccountNumber))

	return nil
}

func (r *accountRepo) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := `
		SELECT id, account_number, owner_name, balance, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	var acc domain.Account
	err := r.db.QueryRow(ctx, query, id).Scan(
		&acc.ID,
		&acc.AccountNumber,
		&acc.OwnerName,
		&acc.Balance,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrAccountNotFound
		}
		return nil, xerrors.Storage("get account", err)
	}

	return &acc, nil
}

func (r *accountRepo) GetByOwnerName(ctx context.Context, ownerName string) (*domain.Account, error) {
	query := `
		SELECT id, account_number, owner_name, balance, created_at, updated_at
		FROM accounts
		WHERE owner_name = $1
	`

	var acc domain.Account
	err := r.db.QueryRow(ctx, query, ownerName).Scan(
		&acc.ID,
		&acc.AccountNumber,
		&acc.OwnerName,
		&acc.Balance,
		&acc.CreatedAt,
		&acc.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrAccountNotFound
		}
		return nil, xerrors.Storage("get account by owner", err)
	}

	return &acc, nil
}

// AdjustBalance applies delta as one conditional update. The WHERE clause is the
// overdraft guard: the row is only written when the resulting balance stays
// non-negative, and the row lock serializes concurrent adjustments per account.
func (r *accountRepo) AdjustBalance(ctx context.Context, id int64, delta int64) (int64, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $2,
		    updated_at = NOW()
		WHERE id = $1 AND balance + $2 >= 0
		RETURNING balance
	`

	var newBalance int64
	err := r.db.QueryRow(ctx, query, id, delta).Scan(&newBalance)
	if err == nil {
		return newBalance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, xerrors.Storage("adjust balance", err)
	}

	// No row matched: either the account is missing or the delta would
	// overdraw it. Distinguish the two for the caller.
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, xerrors.Storage("check account existence", err)
	}
	if !exists {
		return 0, xerrors.ErrAccountNotFound
	}
	return 0, xerrors.ErrInsufficientFunds
}
