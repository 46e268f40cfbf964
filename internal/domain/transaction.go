package domain

import (
	"time"

	"settlement-service/internal/pkg/xerrors"
)

type TransactionKind string

const (
	TransactionKindDeposit  TransactionKind = "deposit"
	TransactionKindWithdraw TransactionKind = "withdraw"
)

type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusApproved TransactionStatus = "approved"
	TransactionStatusRejected TransactionStatus = "rejected"
)

// IsTerminal reports whether the status admits no further transition.
// Approved and rejected are final; only pending transactions settle.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusApproved || s == TransactionStatusRejected
}

// Transaction is a funds request against a single account. It is created
// pending by intake and settled exactly once by the settlement engine;
// its balance effect is applied if and only if it ends up approved.
type Transaction struct {
	ID            int64             `json:"id"`
	ReferenceCode string            `json:"reference_code"`
	AccountID     int64             `json:"account_id"`
	OwnerName     string            `json:"owner_name,omitempty"`
	Kind          TransactionKind   `json:"kind"`
	Amount        int64             `json:"amount"`
	Note          string            `json:"note,omitempty"`
	Status        TransactionStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
	SettledAt     *time.Time        `json:"settled_at,omitempty"`
}

// Delta is the signed balance effect of the transaction when approved.
func (t *Transaction) Delta() int64 {
	if t.Kind == TransactionKindWithdraw {
		return -t.Amount
	}
	return t.Amount
}

// SubmitRequest is an intake request for a new funds transaction.
type SubmitRequest struct {
	AccountID int64
	Kind      TransactionKind
	Amount    int64
	Note      string
}

func (r *SubmitRequest) Validate() error {
	if r.Kind != TransactionKindDeposit && r.Kind != TransactionKindWithdraw {
		return xerrors.ErrInvalidKind
	}
	if r.Amount <= 0 {
		return xerrors.ErrInvalidAmount
	}
	return nil
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// DecideRequest is an authority's settlement decision on a pending transaction.
type DecideRequest struct {
	TransactionID int64
	Decision      Decision
}

func (r *DecideRequest) Validate() error {
	if r.Decision != DecisionApprove && r.Decision != DecisionReject {
		return xerrors.ErrInvalidDecision
	}
	return nil
}

// TransactionFilter narrows List queries on the ledger store.
type TransactionFilter struct {
	Status    *TransactionStatus
	AccountID *int64
	Limit     int
	Offset    int
}
