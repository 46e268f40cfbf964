package xerrors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Generic
var (
	ErrInvalidInput       = errors.New("invalid input provided")
	ErrNotFound           = errors.New("not found")
	ErrInternalServer     = errors.New("internal server error")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Accounts
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrOwnerAlreadyExists = errors.New("owner name already taken")
)

// Settlement
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrAlreadySettled      = errors.New("transaction already settled")
)

// Validation failures all match ErrInvalidInput via errors.Is.
var (
	ErrOwnerNameRequired = fmt.Errorf("%w: owner name required", ErrInvalidInput)
	ErrInvalidKind       = fmt.Errorf("%w: kind must be deposit or withdraw", ErrInvalidInput)
	ErrInvalidAmount     = fmt.Errorf("%w: amount must be a positive integer", ErrInvalidInput)
	ErrInvalidDecision   = fmt.Errorf("%w: decision must be approve or reject", ErrInvalidInput)
)

// Storage wraps an infrastructure fault so callers can match it with
// errors.Is(err, ErrStorageUnavailable) while the driver error stays in
// the chain for logs.
func Storage(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorageUnavailable, err)
}

// ParsePGErrorCode extracts the SQLSTATE code from a pgx error, if any.
func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}

// IsUniqueViolation reports whether err is a Postgres unique constraint violation.
func IsUniqueViolation(err error) bool {
	return ParsePGErrorCode(err) == "23505"
}
