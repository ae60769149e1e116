package m20260415

import (
	"time"

	"gorm.io/gorm"
)

const ID = "20260415"

type Asset struct {
	TokenQueryID string    `gorm:"column:token_query_id;primaryKey"`
	Name         string    `gorm:"column:name"`
	Code         string    `gorm:"column:code"`
	Decimals     int       `gorm:"column:decimals"`
	Icon         string    `gorm:"column:icon"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (Asset) TableName() string {
	return "assets"
}

// EnabledWallet gains the icon snapshot column together with the catalog.
type EnabledWallet struct {
	Icon *string `gorm:"column:coin_icon"`
}

func (EnabledWallet) TableName() string {
	return "enabled_wallets"
}

func Migrate(tx *gorm.DB) error {
	if err := tx.AutoMigrate(&Asset{}); err != nil {
		return err
	}

	if err := tx.Migrator().AddColumn(&EnabledWallet{}, "Icon"); err != nil {
		return err
	}

	return nil
}

func Rollback(tx *gorm.DB) error {
	if err := tx.Migrator().DropColumn(&EnabledWallet{}, "Icon"); err != nil {
		return err
	}

	if err := tx.Migrator().DropTable(&Asset{}); err != nil {
		return err
	}

	return nil
}
