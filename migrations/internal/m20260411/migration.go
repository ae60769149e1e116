package m20260411

import (
	"gorm.io/gorm"
)

const ID = "20260411"

type EnabledWallet struct {
	TokenQueryID string  `gorm:"column:token_query_id;primaryKey"`
	AccountID    string  `gorm:"column:account_id;primaryKey;index"`
	OrderHint    int     `gorm:"column:order_hint"`
	CoinName     *string `gorm:"column:coin_name"`
	CoinCode     *string `gorm:"column:coin_code"`
	Decimals     *int    `gorm:"column:coin_decimals"`
}

func (EnabledWallet) TableName() string {
	return "enabled_wallets"
}

func Migrate(tx *gorm.DB) error {
	return tx.AutoMigrate(&EnabledWallet{})
}

func Rollback(tx *gorm.DB) error {
	return tx.Migrator().DropTable(&EnabledWallet{})
}
