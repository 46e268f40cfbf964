package utils

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ReferenceGenerator issues unique, sortable reference codes for accounts and
// transactions. Codes are a short prefix plus a ULID, so lexical order follows
// creation order.
type ReferenceGenerator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

const (
	// PrefixAccount marks account numbers.
	// Example: ACC-01ARZ3NDEKTSV4RRFFQ69G5FAV
	PrefixAccount = "ACC"

	// PrefixTransaction marks transaction reference codes.
	// Example: TXN-01ARZ3NDEKTSV4RRFFQ69G5FAV
	PrefixTransaction = "TXN"
)

func NewReferenceGenerator() *ReferenceGenerator {
	return &ReferenceGenerator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// GenerateAccountNumber returns a new ACC-prefixed reference.
func (g *ReferenceGenerator) GenerateAccountNumber() string {
	return g.generate(PrefixAccount)
}

// GenerateTransactionRef returns a new TXN-prefixed reference.
func (g *ReferenceGenerator) GenerateTransactionRef() string {
	return g.generate(PrefixTransaction)
}

func (g *ReferenceGenerator) generate(prefix string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
	return fmt.Sprintf("%s-%s", prefix, id.String())
}

// ValidateReference checks that code carries the expected prefix and a
// well-formed ULID payload.
func ValidateReference(code, prefix string) bool {
	rest, ok := strings.CutPrefix(code, prefix+"-")
	if !ok {
		return false
	}
	if len(rest) != 26 {
		return false
	}
	_, err := ulid.Parse(rest)
	return err == nil
}
