package dbcore

import (
	"context"
	"testing"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/chroma-core/controlplane/pkg/sysdb/metastore/db/dbmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigSqliteForTestingSeedsDefaultTenant(t *testing.T) {
	db := ConfigSqliteForTesting()

	var tenant dbmodel.Tenant
	require.NoError(t, db.First(&tenant, "id = ?", common.DefaultTenant).Error)

	var database dbmodel.Database
	require.NoError(t, db.First(&database, "tenant_id = ? AND name = ?", common.DefaultTenant, common.DefaultDatabase).Error)
}

func TestTransactionPropagatesTxToContext(t *testing.T) {
	ConfigSqliteForTesting()
	tx := NewTxImpl()

	var sawTx bool
	err := tx.Transaction(context.Background(), func(txCtx context.Context) error {
		db := GetDB(txCtx)
		sawTx = db != nil
		return db.Create(&dbmodel.Tenant{ID: "t-inside-tx"}).Error
	})
	require.NoError(t, err)
	assert.True(t, sawTx)
}
