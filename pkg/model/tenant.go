package model

import "github.com/chroma-core/controlplane/pkg/types"

// Tenant is the top-level ownership identity. ResourceName is an optional
// human-readable, globally unique identifier used for routing by name instead
// of by opaque id.
type Tenant struct {
	Name               string
	ResourceName       *string
	LastCompactionTime int64
}

type CreateTenant struct {
	Name string
	Ts   types.Timestamp
}

type GetTenant struct {
	Name string
	Ts   types.Timestamp
}

// SetTenantResourceName is narrowly scoped: ResourceName is the only field
// settable on a tenant post-creation. If more fields become mutable, promote
// this to a general UpdateTenant.
type SetTenantResourceName struct {
	TenantID     string
	ResourceName string
}
