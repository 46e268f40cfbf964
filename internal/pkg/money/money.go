package money

import (
	"github.com/shopspring/decimal"

	"settlement-service/internal/pkg/xerrors"
)

// Balances and amounts are carried as int64 minor units throughout the core;
// decimal conversion happens only at the API boundary.

const minorUnitExponent = 2

// FormatMinor renders minor units as a major-unit decimal string,
// e.g. 12345 -> "123.45".
func FormatMinor(minor int64) string {
	return decimal.New(minor, -minorUnitExponent).StringFixed(minorUnitExponent)
}

// ParseMajor converts a major-unit decimal string into minor units,
// e.g. "123.45" -> 12345. Values with sub-cent precision are rejected.
func ParseMajor(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, xerrors.ErrInvalidAmount
	}

	minor := d.Shift(minorUnitExponent)
	if !minor.IsInteger() {
		return 0, xerrors.ErrInvalidAmount
	}
	if !minor.BigInt().IsInt64() {
		return 0, xerrors.ErrInvalidAmount
	}

	return minor.IntPart(), nil
}
