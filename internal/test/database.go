package test

import (
	"testing"

	"github.com/flow-hydraulics/wallet-orchestrator/configs"
	"github.com/flow-hydraulics/wallet-orchestrator/datastore/gorm"
	gormdb "gorm.io/gorm"
)

// GetDatabase opens a migrated database for cfg and closes it when the test
// finishes.
func GetDatabase(t *testing.T, cfg *configs.Config) *gormdb.DB {
	t.Helper()

	db, err := gorm.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() { gorm.Close(db) })

	return db
}
