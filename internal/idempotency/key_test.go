package idempotency

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildProducesDistinctKeysForSameInputs(t *testing.T) {
	frozen := time.Unix(1_700_000_000, 0)
	b := NewBuilder().WithClock(func() time.Time { return frozen })
	owner := uuid.New()
	amount := decimal.NewFromInt(10)

	seen := make(map[Key]struct{})
	for i := 0; i < 1000; i++ {
		k := b.Build("add", owner, amount)
		_, dup := seen[k]
		require.False(t, dup, "duplicate key at iteration %d", i)
		seen[k] = struct{}{}
	}
}

func TestBuildDependsOnTag(t *testing.T) {
	b := NewBuilder()
	owner := uuid.New()
	amount := decimal.NewFromInt(1)
	assert.NotEqual(t, b.Build("add", owner, amount), b.Build("sub", owner, amount))
}

func TestKeyEncoding(t *testing.T) {
	k := NewBuilder().Build("rollback", uuid.New(), decimal.Zero)
	assert.False(t, k.IsZero())
	assert.Len(t, k.String(), 64)
	assert.Len(t, k.Bytes(), 32)
	assert.True(t, Key{}.IsZero())
}
