package domain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// BusinessTag marks the high 64 bits of identifiers that embed a ledger
// account id instead of naming a personal owner.
const BusinessTag uint64 = 0xC5B0000000000000

const systemLowWord uint64 = 0xFFFFFFFFFFFFFFFE

// SystemIdentifier owns the intermediary account used to stage two-leg
// transfers. Its low word has the upper 32 bits set, so EncodeBusiness can
// never produce it.
var SystemIdentifier = newIdentifier(BusinessTag, systemLowWord)

var ErrInvalidIdentifierFormat = errors.New("invalid identifier format")

var businessNamePattern = regexp.MustCompile(`(?i)^B:[0-9A-Z]+$`)

// Kind discriminates the three participant subspaces.
type Kind uint8

const (
	KindPersonal Kind = iota + 1
	KindBusiness
	KindSystem
)

func (k Kind) String() string {
	switch k {
	case KindPersonal:
		return "personal"
	case KindBusiness:
		return "business"
	case KindSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Participant is a decoded identifier. Exactly one of Owner or AccountID is
// meaningful, depending on Kind.
type Participant struct {
	Kind      Kind
	Owner     uuid.UUID
	AccountID uint32
}

// Personal builds a participant for an individual owner.
func Personal(owner uuid.UUID) Participant {
	return Participant{Kind: KindPersonal, Owner: owner}
}

// Business builds a participant addressing a ledger account directly.
func Business(accountID uint32) Participant {
	return Participant{Kind: KindBusiness, AccountID: accountID}
}

// Identifier re-encodes the participant into the shared 128-bit space.
func (p Participant) Identifier() uuid.UUID {
	switch p.Kind {
	case KindBusiness:
		return EncodeBusiness(p.AccountID)
	case KindSystem:
		return SystemIdentifier
	default:
		return p.Owner
	}
}

func (p Participant) String() string {
	return p.Identifier().String()
}

// ParseParticipant decodes an identifier once at the boundary.
func ParseParticipant(id uuid.UUID) (Participant, error) {
	if id == uuid.Nil {
		return Participant{}, fmt.Errorf("%w: nil identifier", ErrInvalidIdentifierFormat)
	}
	high, low := words(id)
	if high != BusinessTag {
		return Personal(id), nil
	}
	if low == systemLowWord {
		return Participant{Kind: KindSystem}, nil
	}
	if low>>32 != 0 {
		return Participant{}, fmt.Errorf("%w: business identifier %s has a non-zero reserved word", ErrInvalidIdentifierFormat, id)
	}
	return Business(uint32(low)), nil
}

// IsBusiness reports whether id was produced by EncodeBusiness.
func IsBusiness(id uuid.UUID) bool {
	high, low := words(id)
	return high == BusinessTag && low>>32 == 0
}

// IsSystem reports whether id is the reserved system identifier.
func IsSystem(id uuid.UUID) bool {
	return id == SystemIdentifier
}

// EncodeBusiness packs a ledger account id into the low 32 bits of a
// business-tagged identifier.
func EncodeBusiness(accountID uint32) uuid.UUID {
	return newIdentifier(BusinessTag, uint64(accountID))
}

// DecodeBusiness is the inverse of EncodeBusiness. It panics when called
// with an identifier for which IsBusiness is false.
func DecodeBusiness(id uuid.UUID) uint32 {
	if !IsBusiness(id) {
		panic(fmt.Sprintf("domain: DecodeBusiness called with non-business identifier %s", id))
	}
	_, low := words(id)
	return uint32(low)
}

// BusinessShortName renders the sign name of a business account, e.g. "B:2S".
func BusinessShortName(accountID uint32) string {
	return "B:" + strings.ToUpper(strconv.FormatUint(uint64(accountID), 36))
}

// IsBusinessName reports whether name has a case-insensitive "B:" prefix.
func IsBusinessName(name string) bool {
	return len(name) >= 2 && strings.EqualFold(name[:2], "B:")
}

// ParseBusinessName decodes the base-36 payload of a "B:<digits>" name.
func ParseBusinessName(name string) (uint32, error) {
	if !businessNamePattern.MatchString(name) {
		return 0, fmt.Errorf("%w: %q is not a business account name", ErrInvalidIdentifierFormat, name)
	}
	id, err := strconv.ParseUint(name[2:], 36, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidIdentifierFormat, name, err)
	}
	return uint32(id), nil
}

func words(id uuid.UUID) (high, low uint64) {
	return binary.BigEndian.Uint64(id[:8]), binary.BigEndian.Uint64(id[8:])
}

func newIdentifier(high, low uint64) uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[:8], high)
	binary.BigEndian.PutUint64(id[8:], low)
	return id
}
