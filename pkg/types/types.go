// Package types holds the identity primitives shared across the control plane:
// a 128-bit collection/tenant/segment id and the logical timestamp used for
// optimistic-concurrency bookkeeping.
package types

import (
	"math"

	"github.com/google/uuid"
)

// Timestamp is a logical clock value, measured in seconds since epoch unless
// otherwise noted at the call site.
type Timestamp = int64

// MaxTimestamp represents "no expiry" / "unbounded" where a Timestamp field
// is used as a deadline.
const MaxTimestamp = Timestamp(math.MaxInt64)

// UniqueID is the 128-bit identity used for tenants, collections and segments.
type UniqueID uuid.UUID

// NewUniqueID generates a fresh random UniqueID.
func NewUniqueID() UniqueID {
	return UniqueID(uuid.New())
}

func (id UniqueID) String() string {
	return uuid.UUID(id).String()
}

// MustParse parses s into a UniqueID, panicking on malformed input. Reserved
// for constants and test fixtures.
func MustParse(s string) UniqueID {
	return UniqueID(uuid.MustParse(s))
}

// Parse parses s into a UniqueID.
func Parse(s string) (UniqueID, error) {
	id, err := uuid.Parse(s)
	return UniqueID(id), err
}

// NilUniqueID is the zero value, used as a sentinel for "no id given".
func NilUniqueID() UniqueID {
	return UniqueID(uuid.Nil)
}

// ToUniqueID parses an optional string pointer, returning NilUniqueID for nil.
func ToUniqueID(idString *string) (UniqueID, error) {
	if idString == nil {
		return NilUniqueID(), nil
	}
	return Parse(*idString)
}

// FromUniqueID renders id as a string pointer, or nil for the nil id.
func FromUniqueID(id UniqueID) *string {
	if id == NilUniqueID() {
		return nil
	}
	s := id.String()
	return &s
}
