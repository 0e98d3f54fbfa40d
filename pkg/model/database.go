package model

import "github.com/chroma-core/controlplane/pkg/types"

// Database groups collections under a tenant. (tenant_id, name) is unique
// among live rows.
type Database struct {
	ID        string
	Name      string
	Tenant    string
	Ts        types.Timestamp
	DeletedAt *int64
}

type CreateDatabase struct {
	ID     string
	Name   string
	Tenant string
	Ts     types.Timestamp
}

type GetDatabase struct {
	ID     string
	Name   string
	Tenant string
	Ts     types.Timestamp
}

type ListDatabases struct {
	Tenant string
	Limit  *int32
	Offset *int32
	Ts     types.Timestamp
}

// DeleteDatabase soft-deletes a database. Per DESIGN.md, this cascades to
// soft-deleting every still-live collection the database contains.
type DeleteDatabase struct {
	ID     string
	Name   string
	Tenant string
}
