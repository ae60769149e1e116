package m20260602

import (
	"gorm.io/gorm"
)

const ID = "20260602"

type Account struct {
	Origin         string `gorm:"column:origin;default:created"`
	IsFileBackedUp bool   `gorm:"column:is_file_backed_up;default:false"`
}

func (Account) TableName() string {
	return "accounts"
}

func Migrate(tx *gorm.DB) error {
	if err := tx.Migrator().AddColumn(&Account{}, "Origin"); err != nil {
		return err
	}

	if err := tx.Migrator().AddColumn(&Account{}, "IsFileBackedUp"); err != nil {
		return err
	}

	return nil
}

func Rollback(tx *gorm.DB) error {
	if err := tx.Migrator().DropColumn(&Account{}, "IsFileBackedUp"); err != nil {
		return err
	}

	if err := tx.Migrator().DropColumn(&Account{}, "Origin"); err != nil {
		return err
	}

	return nil
}
