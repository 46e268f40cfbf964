package usecase

import (
	"context"
	"sync"
	"testing"

	"settlement-service/internal/domain"
	"settlement-service/internal/pkg/xerrors"
	"settlement-service/internal/repository"
	"settlement-service/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type settlementFixture struct {
	accounts   *repository.MemoryAccountRepo
	ledger     *repository.MemoryLedgerRepo
	intake     *IntakeUsecase
	settlement *SettlementUsecase
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()

	logger := zap.NewNop()
	accounts := repository.NewMemoryAccountRepo()
	ledger := repository.NewMemoryLedgerRepo(accounts)
	refGen := utils.NewReferenceGenerator()

	accountUC := NewAccountUsecase(accounts, refGen, nil, logger)
	intake := NewIntakeUsecase(accounts, ledger, refGen, nil, logger)
	settlement := NewSettlementUsecase(accounts, ledger, accountUC, nil, logger)

	return &settlementFixture{
		accounts:   accounts,
		ledger:     ledger,
		intake:     intake,
		settlement: settlement,
	}
}

// openAccount creates an account and funds it to the given balance.
func (f *settlementFixture) openAccount(t *testing.T, owner string, balance int64) *domain.Account {
	t.Helper()

	acc := &domain.Account{AccountNumber: "ACC-" + owner, OwnerName: owner}
	require.NoError(t, f.accounts.Create(context.Background(), acc))

	if balance > 0 {
		_, err := f.accounts.AdjustBalance(context.Background(), acc.ID, balance)
		require.NoError(t, err)
	}
	return acc
}

func (f *settlementFixture) submit(t *testing.T, accountID int64, kind domain.TransactionKind, amount int64) *domain.Transaction {
	t.Helper()

	tx, err := f.intake.Submit(context.Background(), &domain.SubmitRequest{
		AccountID: accountID,
		Kind:      kind,
		Amount:    amount,
	})
	require.NoError(t, err)
	require.Equal(t, domain.TransactionStatusPending, tx.Status)
	return tx
}

func TestDecideApproveDeposit(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	acc := f.openAccount(t, "alice", 100)
	tx := f.submit(t, acc.ID, domain.TransactionKindDeposit, 50)

	settled, err := f.settlement.Decide(ctx, &domain.DecideRequest{
		TransactionID: tx.ID,
		Decision:      domain.DecisionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusApproved, settled.Status)
	require.NotNil(t, settled.SettledAt)

	acc, err = f.accounts.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), acc.Balance)
}

func TestDecideApproveWithdraw(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	acc := f.openAccount(t, "alice", 100)
	tx := f.submit(t, acc.ID, domain.TransactionKindWithdraw, 40)

	settled, err := f.settlement.Decide(ctx, &domain.DecideRequest{
		TransactionID: tx.ID,
		Decision:      domain.DecisionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusApproved, settled.Status)

	acc, err = f.accounts.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(60), acc.Balance)
}

func TestDecideInsufficientFundsLeavesPending(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	acc := f.openAccount(t, "bob", 30)
	tx := f.submit(t, acc.ID, domain.TransactionKindWithdraw, 50)

	_, err := f.settlement.Decide(ctx, &domain.DecideRequest{
		TransactionID: tx.ID,
		Decision:      domain.DecisionApprove,
	})
	require.ErrorIs(t, err, xerrors.ErrInsufficientFunds)

	acc, err = f.accounts.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), acc.Balance)

	stored, err := f.ledger.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, stored.Status)
}

func TestDecideRetryAfterDepositRaisesBalance(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	acc := f.openAccount(t, "bob", 30)
	withdraw := f.submit(t, acc.ID, domain.TransactionKindWithdraw, 50)

	_, err := f.settlement.Decide(ctx, &domain.DecideRequest{
		TransactionID: withdraw.ID,
		Decision:      domain.DecisionApprove,
	})
	require.ErrorIs(t, err, xerrors.ErrInsufficientFunds)

	deposit := f.submit(t, acc.ID, domain.TransactionKindDeposit, 100)
	_, err = f.settlement.Decide(ctx, &domain.DecideRequest{
		TransactionID: deposit.ID,
		Decision:      domain.DecisionApprove,
	})
	require.NoError(t, err)

	// The withdrawal stayed pending and now clears.
	settled, err := f.settlement.Decide(ctx, &domain.DecideRequest{
		TransactionID: withdraw.ID,
		Decision:      domain.DecisionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusApproved, settled.Status)

	acc, err = f.accounts.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(80), acc.Balance)
}

func TestDecideReject(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	acc := f.openAccount(t, "carol", 70)
	tx := f.submit(t, acc.ID, domain.TransactionKindWithdraw, 50)

	settled, err := f.settlement.Decide(ctx, &domain.DecideRequest{
		TransactionID: tx.ID,
		Decision:      domain.DecisionReject,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusRejected, settled.Status)
	require.NotNil(t, settled.SettledAt)

	// Rejection has no balance effect.
	acc, err = f.accounts.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(70), acc.Balance)
}

func TestDecideUnknownTransaction(t *testing.T) {
	f := newSettlementFixture(t)

	_, err := f.settlement.Decide(context.Background(), &domain.DecideRequest{
		TransactionID: 9999,
		Decision:      domain.DecisionApprove,
	})
	require.ErrorIs(t, err, xerrors.ErrTransactionNotFound)
}

func TestDecideInvalidDecision(t *testing.T) {
	f := newSettlementFixture(t)

	acc := f.openAccount(t, "dave", 0)
	tx := f.submit(t, acc.ID, domain.TransactionKindDeposit, 10)

	_, err := f.settlement.Decide(context.Background(), &domain.DecideRequest{
		TransactionID: tx.ID,
		Decision:      domain.Decision("maybe"),
	})
	require.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestDecideTwiceIsIdempotent(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	acc := f.openAccount(t, "erin", 0)
	tx := f.submit(t, acc.ID, domain.TransactionKindDeposit, 25)

	_, err := f.settlement.Decide(ctx, &domain.DecideRequest{
		TransactionID: tx.ID,
		Decision:      domain.DecisionApprove,
	})
	require.NoError(t, err)

	for _, decision := range []domain.Decision{domain.DecisionApprove, domain.DecisionReject} {
		_, err := f.settlement.Decide(ctx, &domain.DecideRequest{
			TransactionID: tx.ID,
			Decision:      decision,
		})
		require.ErrorIs(t, err, xerrors.ErrAlreadySettled)
	}

	// The delta was applied exactly once.
	acc, err = f.accounts.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), acc.Balance)
}

func TestConcurrentApproveAppliesOnce(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	acc := f.openAccount(t, "frank", 0)
	tx := f.submit(t, acc.ID, domain.TransactionKindDeposit, 20)

	const deciders = 16

	var wg sync.WaitGroup
	errs := make([]error, deciders)

	for i := 0; i < deciders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.settlement.Decide(ctx, &domain.DecideRequest{
				TransactionID: tx.ID,
				Decision:      domain.DecisionApprove,
			})
		}(i)
	}
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		default:
			require.ErrorIs(t, err, xerrors.ErrAlreadySettled)
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, deciders-1, losses)

	acc, err := f.accounts.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), acc.Balance)
}

func TestConcurrentApproveRejectRace(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	acc := f.openAccount(t, "grace", 100)
	tx := f.submit(t, acc.ID, domain.TransactionKindWithdraw, 60)

	var wg sync.WaitGroup
	var approveErr, rejectErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		_, approveErr = f.settlement.Decide(ctx, &domain.DecideRequest{
			TransactionID: tx.ID,
			Decision:      domain.DecisionApprove,
		})
	}()
	go func() {
		defer wg.Done()
		_, rejectErr = f.settlement.Decide(ctx, &domain.DecideRequest{
			TransactionID: tx.ID,
			Decision:      domain.DecisionReject,
		})
	}()
	wg.Wait()

	// Exactly one decision lands; the other observes the settled state.
	if approveErr == nil {
		require.ErrorIs(t, rejectErr, xerrors.ErrAlreadySettled)
	} else {
		require.ErrorIs(t, approveErr, xerrors.ErrAlreadySettled)
		require.NoError(t, rejectErr)
	}

	stored, err := f.ledger.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	require.True(t, stored.Status.IsTerminal())

	acc, err = f.accounts.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	if stored.Status == domain.TransactionStatusApproved {
		assert.Equal(t, int64(40), acc.Balance)
	} else {
		assert.Equal(t, int64(100), acc.Balance)
	}
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	acc := f.openAccount(t, "heidi", 100)

	const withdrawals = 10
	txs := make([]*domain.Transaction, withdrawals)
	for i := range txs {
		txs[i] = f.submit(t, acc.ID, domain.TransactionKindWithdraw, 30)
	}

	var wg sync.WaitGroup
	for _, tx := range txs {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, _ = f.settlement.Decide(ctx, &domain.DecideRequest{
				TransactionID: id,
				Decision:      domain.DecisionApprove,
			})
		}(tx.ID)
	}
	wg.Wait()

	acc, err := f.accounts.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, acc.Balance, int64(0))
	// 100 covers exactly three withdrawals of 30.
	assert.Equal(t, int64(10), acc.Balance)

	var approved int
	for _, tx := range txs {
		stored, err := f.ledger.GetByID(ctx, tx.ID)
		require.NoError(t, err)
		if stored.Status == domain.TransactionStatusApproved {
			approved++
		} else {
			assert.Equal(t, domain.TransactionStatusPending, stored.Status)
		}
	}
	assert.Equal(t, 3, approved)
}

func TestCompensationReversesLostRace(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	acc := f.openAccount(t, "ivan", 0)
	tx := f.submit(t, acc.ID, domain.TransactionKindDeposit, 20)

	// Settle behind the engine's back so its status swap is lost after the
	// balance adjustment: the engine must reverse the applied delta.
	require.NoError(t, f.ledger.SetStatus(ctx, tx.ID, domain.TransactionStatusPending, domain.TransactionStatusRejected))

	// Bypass the pending pre-check by driving approve directly.
	stale, err := f.ledger.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	stale.Status = domain.TransactionStatusPending

	_, err = f.settlement.approve(ctx, stale)
	require.ErrorIs(t, err, xerrors.ErrAlreadySettled)

	acc, err = f.accounts.GetByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), acc.Balance)
}
