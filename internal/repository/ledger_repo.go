package repository

import (
	"context"
	"errors"
	"fmt"

	"settlement-service/internal/domain"
	"settlement-service/internal/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// LedgerRepository is the append-oriented store of transaction records.
// SetStatus is a compare-and-swap on the status column; it is the sole
// arbiter when two settlement decisions race on the same transaction.
type LedgerRepository interface {
	Create(ctx context.Context, tx *domain.Transaction) error
	GetByID(ctx context.Context, id int64) (*domain.Transaction, error)
	SetStatus(ctx context.Context, id int64, expected, next domain.TransactionStatus) error
	List(ctx context.Context, filter *domain.TransactionFilter) ([]*domain.Transaction, int64, error)
}

type ledgerRepo struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewLedgerRepo(db *pgxpool.Pool, logger *zap.Logger) LedgerRepository {
	return &ledgerRepo{db: db, logger: logger}
}

func (r *ledgerRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (reference_code, account_id, kind, amount, note, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING id, status, created_at
	`

	err := r.db.QueryRow(ctx, query,
		tx.ReferenceCode,
		tx.AccountID,
		tx.Kind,
		tx.Amount,
		tx.Note,
	).Scan(&tx.ID, &tx.Status, &tx.CreatedAt)

	if err != nil {
		return xerrors.Storage("create transaction", err)
	}

	r.logger.Info("transaction recorded",
		zap.Int64("transaction_id", tx.ID),
		zap.String("reference_code", tx.ReferenceCode),
		zap.String("kind", string(tx.Kind)),
		zap.Int64("amount", tx.Amount))

	return nil
}

func (r *ledgerRepo) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	query := `
		SELECT t.id, t.reference_code, t.account_id, a.owner_name,
		       t.kind, t.amount, t.note, t.status, t.created_at, t.settled_at
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE t.id = $1
	`

	var tx domain.Transaction
	err := r.db.QueryRow(ctx, query, id).Scan(
		&tx.ID,
		&tx.ReferenceCode,
		&tx.AccountID,
		&tx.OwnerName,
		&tx.Kind,
		&tx.Amount,
		&tx.Note,
		&tx.Status,
		&tx.CreatedAt,
		&tx.SettledAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrTransactionNotFound
		}
		return nil, xerrors.Storage("get transaction", err)
	}

	return &tx, nil
}

// SetStatus flips the status only when the stored value still equals expected.
// A zero rows-affected result on an existing row means another decider won the
// race; that is surfaced as ErrAlreadySettled.
func (r *ledgerRepo) SetStatus(ctx context.Context, id int64, expected, next domain.TransactionStatus) error {
	query := `
		UPDATE transactions
		SET status = $3,
		    settled_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.Exec(ctx, query, id, expected, next)
	if err != nil {
		return xerrors.Storage("set transaction status", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists); err != nil {
			return xerrors.Storage("check transaction existence", err)
		}
		if !exists {
			return xerrors.ErrTransactionNotFound
		}
		return xerrors.ErrAlreadySettled
	}

	r.logger.Info("transaction status changed",
		zap.Int64("transaction_id", id),
		zap.String("from", string(expected)),
		zap.String("to", string(next)))

	return nil
}

func (r *ledgerRepo) List(ctx context.Context, filter *domain.TransactionFilter) ([]*domain.Transaction, int64, error) {
	baseQuery := `
		SELECT t.id, t.reference_code, t.account_id, a.owner_name,
		       t.kind, t.amount, t.note, t.status, t.created_at, t.settled_at
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE 1=1
	`
	countQuery := `SELECT COUNT(*) FROM transactions t WHERE 1=1`

	args := []interface{}{}
	argIndex := 1

	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND t.status = $%d", argIndex)
		countQuery += fmt.Sprintf(" AND t.status = $%d", argIndex)
		args = append(args, *filter.Status)
		argIndex++
	}

	if filter.AccountID != nil {
		baseQuery += fmt.Sprintf(" AND t.account_id = $%d", argIndex)
		countQuery += fmt.Sprintf(" AND t.account_id = $%d", argIndex)
		args = append(args, *filter.AccountID)
		argIndex++
	}

	var total int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, xerrors.Storage("count transactions", err)
	}

	baseQuery += fmt.Sprintf(" ORDER BY t.created_at DESC, t.id DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, baseQuery, args...)
	if err != nil {
		return nil, 0, xerrors.Storage("list transactions", err)
	}
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(
			&tx.ID,
			&tx.ReferenceCode,
			&tx.AccountID,
			&tx.OwnerName,
			&tx.Kind,
			&tx.Amount,
			&tx.Note,
			&tx.Status,
			&tx.CreatedAt,
			&tx.SettledAt,
		); err != nil {
			return nil, 0, xerrors.Storage("scan transaction row", err)
		}
		txs = append(txs, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, xerrors.Storage("iterate transaction rows", err)
	}

	return txs, total, nil
}
