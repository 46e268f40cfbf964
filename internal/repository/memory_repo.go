package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"settlement-service/internal/domain"
	"settlement-service/internal/pkg/xerrors"
)

// In-memory implementations of the stores. They back the unit tests and the
// no-database dev mode; the mutex gives the same per-record atomicity the
// Postgres implementations get from conditional single-statement updates.

type MemoryAccountRepo struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*domain.Account
	byOwner  map[string]int64
}

func NewMemoryAccountRepo() *MemoryAccountRepo {
	return &MemoryAccountRepo{
		nextID:   1,
		accounts: make(map[int64]*domain.Account),
		byOwner:  make(map[string]int64),
	}
}

func (r *MemoryAccountRepo) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byOwner[account.OwnerName]; taken {
		return xerrors.ErrOwnerAlreadyExists
	}

	now := time.Now()
	account.ID = r.nextID
	account.Balance = 0
	account.CreatedAt = now
	account.UpdatedAt = now
	r.nextID++

	stored := *account
	r.accounts[account.ID] = &stored
	r.byOwner[account.OwnerName] = account.ID

	return nil
}

func (r *MemoryAccountRepo) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return nil, xerrors.ErrAccountNotFound
	}
	copied := *acc
	return &copied, nil
}

func (r *MemoryAccountRepo) GetByOwnerName(ctx context.Context, ownerName string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byOwner[ownerName]
	if !ok {
		return nil, xerrors.ErrAccountNotFound
	}
	copied := *r.accounts[id]
	return &copied, nil
}

// AdjustBalance validates and applies delta under the lock, so concurrent
// adjustments against the same account serialize their read-modify-write.
func (r *MemoryAccountRepo) AdjustBalance(ctx context.Context, id int64, delta int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return 0, xerrors.ErrAccountNotFound
	}
	if acc.Balance+delta < 0 {
		return 0, xerrors.ErrInsufficientFunds
	}

	acc.Balance += delta
	acc.UpdatedAt = time.Now()
	return acc.Balance, nil
}

type MemoryLedgerRepo struct {
	mu       sync.Mutex
	nextID   int64
	txs      map[int64]*domain.Transaction
	accounts *MemoryAccountRepo
}

// NewMemoryLedgerRepo builds a ledger store; accounts may be nil, in which
// case listed transactions carry no owner names.
func NewMemoryLedgerRepo(accounts *MemoryAccountRepo) *MemoryLedgerRepo {
	return &MemoryLedgerRepo{
		nextID:   1,
		txs:      make(map[int64]*domain.Transaction),
		accounts: accounts,
	}
}

func (r *MemoryLedgerRepo) Create(ctx context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx.ID = r.nextID
	tx.Status = domain.TransactionStatusPending
	tx.CreatedAt = time.Now()
	tx.SettledAt = nil
	r.nextID++

	stored := *tx
	r.txs[tx.ID] = &stored

	return nil
}

func (r *MemoryLedgerRepo) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.txs[id]
	if !ok {
		return nil, xerrors.ErrTransactionNotFound
	}
	copied := *tx
	r.attachOwner(ctx, &copied)
	return &copied, nil
}

func (r *MemoryLedgerRepo) SetStatus(ctx context.Context, id int64, expected, next domain.TransactionStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.txs[id]
	if !ok {
		return xerrors.ErrTransactionNotFound
	}
	if tx.Status != expected {
		return xerrors.ErrAlreadySettled
	}

	now := time.Now()
	tx.Status = next
	tx.SettledAt = &now
	return nil
}

func (r *MemoryLedgerRepo) List(ctx context.Context, filter *domain.TransactionFilter) ([]*domain.Transaction, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*domain.Transaction
	for _, tx := range r.txs {
		if filter.Status != nil && tx.Status != *filter.Status {
			continue
		}
		if filter.AccountID != nil && tx.AccountID != *filter.AccountID {
			continue
		}
		copied := *tx
		r.attachOwner(ctx, &copied)
		matched = append(matched, &copied)
	}

	// Newest first, id as tiebreak for records created in the same instant.
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}

	return matched, total, nil
}

func (r *MemoryLedgerRepo) attachOwner(ctx context.Context, tx *domain.Transaction) {
	if r.accounts == nil {
		return
	}
	if acc, err := r.accounts.GetByID(ctx, tx.AccountID); err == nil {
		tx.OwnerName = acc.OwnerName
	}
}
