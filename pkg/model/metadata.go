package model

import "github.com/chroma-core/controlplane/pkg/common"

var errUnknownMetadataValueType = common.ErrUnknownMetadataValueType

// MetadataValueType is the tagged-union member interface for a single
// metadata value. Collection configuration, segment metadata, and per-record
// metadata patches are all expressed through this variant (spec.md §9,
// "Dynamic segment metadata"): user-supplied free-form metadata is mapped
// through this shape, and anything that does not fit is rejected at
// validation time rather than silently coerced.
type MetadataValueType interface {
	IsMetadataValueType()
	Equals(other MetadataValueType) bool
}

type MetadataValueString struct{ Value string }

func (MetadataValueString) IsMetadataValueType() {}
func (s MetadataValueString) Equals(other MetadataValueType) bool {
	o, ok := other.(MetadataValueString)
	return ok && o.Value == s.Value
}

type MetadataValueInt64 struct{ Value int64 }

func (MetadataValueInt64) IsMetadataValueType() {}
func (s MetadataValueInt64) Equals(other MetadataValueType) bool {
	o, ok := other.(MetadataValueInt64)
	return ok && o.Value == s.Value
}

type MetadataValueFloat64 struct{ Value float64 }

func (MetadataValueFloat64) IsMetadataValueType() {}
func (s MetadataValueFloat64) Equals(other MetadataValueType) bool {
	o, ok := other.(MetadataValueFloat64)
	return ok && o.Value == s.Value
}

type MetadataValueBool struct{ Value bool }

func (MetadataValueBool) IsMetadataValueType() {}
func (s MetadataValueBool) Equals(other MetadataValueType) bool {
	o, ok := other.(MetadataValueBool)
	return ok && o.Value == s.Value
}

// Metadata is a generic key->tagged-value map, reused for collection
// configuration metadata, segment metadata, and log-record metadata patches.
type Metadata struct {
	Values map[string]MetadataValueType
}

func NewMetadata() *Metadata {
	return &Metadata{Values: make(map[string]MetadataValueType)}
}

func (m *Metadata) Add(key string, value MetadataValueType) {
	m.Values[key] = value
}

func (m *Metadata) Get(key string) MetadataValueType {
	return m.Values[key]
}

func (m *Metadata) Empty() bool {
	return m == nil || len(m.Values) == 0
}

func (m *Metadata) Equals(other *Metadata) bool {
	if m.Empty() && other.Empty() {
		return true
	}
	if m.Empty() != other.Empty() {
		return false
	}
	if len(m.Values) != len(other.Values) {
		return false
	}
	for k, v := range m.Values {
		ov, ok := other.Values[k]
		if !ok || !v.Equals(ov) {
			return false
		}
	}
	return true
}

// Validate rejects metadata shapes not among the four supported tagged-union
// members (spec.md §9).
func (m *Metadata) Validate() error {
	if m == nil {
		return nil
	}
	for _, v := range m.Values {
		switch v.(type) {
		case MetadataValueString, MetadataValueInt64, MetadataValueFloat64, MetadataValueBool:
		default:
			return errUnknownMetadataValueType
		}
	}
	return nil
}
