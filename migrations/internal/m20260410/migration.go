package m20260410

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const ID = "20260410"

type Account struct {
	ID         string         `gorm:"column:id;primaryKey"`
	Name       string         `gorm:"column:name"`
	TypeCode   string         `gorm:"column:type_code"`
	Data       datatypes.JSON `gorm:"column:data"`
	Level      int            `gorm:"column:level;index"`
	IsBackedUp bool           `gorm:"column:is_backed_up"`
	CreatedAt  time.Time      `gorm:"column:created_at"`
	UpdatedAt  time.Time      `gorm:"column:updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

type ActiveAccount struct {
	Level     int    `gorm:"column:level;primaryKey;autoIncrement:false"`
	AccountID string `gorm:"column:account_id"`
}

func (ActiveAccount) TableName() string {
	return "active_accounts"
}

func Migrate(tx *gorm.DB) error {
	if err := tx.AutoMigrate(&Account{}); err != nil {
		return err
	}

	if err := tx.AutoMigrate(&ActiveAccount{}); err != nil {
		return err
	}

	return nil
}

func Rollback(tx *gorm.DB) error {
	if err := tx.Migrator().DropTable(&ActiveAccount{}); err != nil {
		return err
	}

	if err := tx.Migrator().DropTable(&Account{}); err != nil {
		return err
	}

	return nil
}
