package migrations

import (
	"github.com/flow-hydraulics/wallet-orchestrator/migrations/internal/m20260410"
	"github.com/flow-hydraulics/wallet-orchestrator/migrations/internal/m20260411"
	"github.com/flow-hydraulics/wallet-orchestrator/migrations/internal/m20260415"
	"github.com/flow-hydraulics/wallet-orchestrator/migrations/internal/m20260602"
	"github.com/go-gormigrate/gormigrate/v2"
)

func List() []*gormigrate.Migration {
	ms := []*gormigrate.Migration{
		{
			ID:       m20260410.ID,
			Migrate:  m20260410.Migrate,
			Rollback: m20260410.Rollback,
		},
		{
			ID:       m20260411.ID,
			Migrate:  m20260411.Migrate,
			Rollback: m20260411.Rollback,
		},
		{
			ID:       m20260415.ID,
			Migrate:  m20260415.Migrate,
			Rollback: m20260415.Rollback,
		},
		{
			ID:       m20260602.ID,
			Migrate:  m20260602.Migrate,
			Rollback: m20260602.Rollback,
		},
	}
	return ms
}
