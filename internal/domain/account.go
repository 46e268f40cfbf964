package domain

import (
	"time"

	"settlement-service/internal/pkg/xerrors"
)

// Account holds a single balance in minor units (cents). A balance never
// goes negative; the only writer is the settlement engine, through the
// account store's AdjustBalance.
type Account struct {
	ID            int64     `json:"id"`
	AccountNumber string    `json:"account_number"`
	OwnerName     string    `json:"owner_name"`
	Balance       int64     `json:"balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"-"`
}

// OpenAccountRequest is the payload for opening a new account.
type OpenAccountRequest struct {
	OwnerName string
}

func (r *OpenAccountRequest) Validate() error {
	if r.OwnerName == "" {
		return xerrors.ErrOwnerNameRequired
	}
	return nil
}
