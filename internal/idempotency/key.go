package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const keyPrefix = "shop-treasury"

// Key is the fixed-length dedup token sent with every ledger transfer.
type Key [sha256.Size]byte

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// Bytes returns a copy of the key as a slice.
func (k Key) Bytes() []byte {
	out := make([]byte, len(k))
	copy(out, k[:])
	return out
}

// IsZero reports whether the key was never set.
func (k Key) IsZero() bool {
	return k == Key{}
}

// Builder derives a fresh key per transfer attempt. The nonce makes every
// call unique, so a key only protects one delivered request from being
// applied twice by the ledger; a retried call gets a new key.
type Builder struct {
	now     func() time.Time
	counter atomic.Uint64
}

// NewBuilder returns a builder using the wall clock as nonce source.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// WithClock replaces the nonce clock. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build hashes the operation tag, participant, amount and a per-call nonce.
func (b *Builder) Build(tag string, participant uuid.UUID, amount decimal.Decimal) Key {
	var sb strings.Builder
	sb.WriteString(keyPrefix)
	sb.WriteByte(':')
	sb.WriteString(tag)
	sb.WriteByte(':')
	sb.WriteString(participant.String())
	sb.WriteByte(':')
	sb.WriteString(amount.String())
	sb.WriteByte(':')
	sb.WriteString(b.nonce())
	return sha256.Sum256([]byte(sb.String()))
}

func (b *Builder) nonce() string {
	now := time.Now
	if b.now != nil {
		now = b.now
	}
	seq := b.counter.Add(1)
	return strconv.FormatInt(now().UnixNano(), 10) + "." + strconv.FormatUint(seq, 10)
}
