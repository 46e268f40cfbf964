package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReferencesAreUnique(t *testing.T) {
	g := NewReferenceGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		ref := g.GenerateTransactionRef()
		require.False(t, seen[ref], "duplicate reference %s", ref)
		seen[ref] = true
	}
}

func TestGeneratePrefixes(t *testing.T) {
	g := NewReferenceGenerator()

	acc := g.GenerateAccountNumber()
	assert.True(t, strings.HasPrefix(acc, "ACC-"))
	assert.True(t, ValidateReference(acc, PrefixAccount))

	txn := g.GenerateTransactionRef()
	assert.True(t, strings.HasPrefix(txn, "TXN-"))
	assert.True(t, ValidateReference(txn, PrefixTransaction))
}

func TestValidateReference(t *testing.T) {
	g := NewReferenceGenerator()
	ref := g.GenerateTransactionRef()

	assert.False(t, ValidateReference(ref, PrefixAccount))
	assert.False(t, ValidateReference("TXN-short", PrefixTransaction))
	assert.False(t, ValidateReference("", PrefixTransaction))
	assert.False(t, ValidateReference(strings.ToLower(ref), PrefixTransaction))
}
