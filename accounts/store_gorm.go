package accounts

import (
	"errors"
	"time"

	"github.com/flow-hydraulics/wallet-orchestrator/datastore"
	"github.com/flow-hydraulics/wallet-orchestrator/datastore/lib"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AccountRecord is the storable form of an Account.
type AccountRecord struct {
	ID             string         `gorm:"column:id;primaryKey"`
	Name           string         `gorm:"column:name"`
	TypeCode       TypeCode       `gorm:"column:type_code"`
	Data           datatypes.JSON `gorm:"column:data"`
	Origin         Origin         `gorm:"column:origin"`
	Level          int            `gorm:"column:level;index"`
	IsBackedUp     bool           `gorm:"column:is_backed_up"`
	IsFileBackedUp bool           `gorm:"column:is_file_backed_up"`
	CreatedAt      time.Time      `gorm:"column:created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at"`
}

func (AccountRecord) TableName() string {
	return "accounts"
}

type ActiveAccount struct {
	Level     int    `gorm:"column:level;primaryKey;autoIncrement:false"`
	AccountID string `gorm:"column:account_id"`
}

func (ActiveAccount) TableName() string {
	return "active_accounts"
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db}
}

func (s *GormStore) Accounts(minLevel int, o datastore.ListOptions) (rr []AccountRecord, err error) {
	err = s.db.
		Where("level >= ?", minLevel).
		Order("created_at asc, id asc").
		Limit(o.Limit).
		Offset(o.Offset).
		Find(&rr).Error
	return
}

func (s *GormStore) Account(id string) (r AccountRecord, err error) {
	err = s.db.First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = ErrAccountNotFound
	}
	return
}

func (s *GormStore) SaveAccount(r *AccountRecord, activate bool) error {
	return lib.GormTransaction(s.db, func(tx *gorm.DB) error {
		if err := upsertAccount(tx, r); err != nil {
			return err
		}

		if activate {
			return setActive(tx, r.Level, r.ID)
		}

		return nil
	})
}

func (s *GormStore) ImportAccounts(rr []AccountRecord) error {
	return lib.GormTransaction(s.db, func(tx *gorm.DB) error {
		for i := range rr {
			if err := upsertAccount(tx, &rr[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *GormStore) Clear() (deleted []AccountRecord, levels []int, err error) {
	err = lib.GormTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.Order("created_at asc, id asc").Find(&deleted).Error; err != nil {
			return err
		}

		var active []ActiveAccount
		if err := tx.Where("account_id <> ?", "").Order("level asc").Find(&active).Error; err != nil {
			return err
		}
		for _, a := range active {
			levels = append(levels, a.Level)
		}

		for _, table := range []string{"accounts", "enabled_wallets", "active_accounts"} {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return
}

func upsertAccount(tx *gorm.DB, r *AccountRecord) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "type_code", "data", "origin", "level",
			"is_backed_up", "is_file_backed_up", "updated_at",
		}),
	}).Create(r).Error
}

func (s *GormStore) DeleteAccount(id string) (deleted AccountRecord, activeChanged bool, err error) {
	err = lib.GormTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.First(&deleted, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		// The account row goes first, wallet writes lock it before inserting
		if err := tx.Delete(&AccountRecord{}, "id = ?", id).Error; err != nil {
			return err
		}

		// Enabled wallets never outlive their account
		if err := tx.Exec("DELETE FROM enabled_wallets WHERE account_id = ?", id).Error; err != nil {
			return err
		}

		activeID, err := activeAccountID(tx, deleted.Level)
		if err != nil {
			return err
		}

		if activeID != id {
			return nil
		}

		activeChanged = true
		return fallbackActive(tx, deleted.Level)
	})
	return
}

func (s *GormStore) ActiveAccountID(level int) (string, error) {
	return activeAccountID(s.db, level)
}

func (s *GormStore) SetActiveAccountID(level int, id string) error {
	return setActive(s.db, level, id)
}

func (s *GormStore) UpdateBackedUp(id string, isBackedUp, isFileBackedUp bool) error {
	res := s.db.Model(&AccountRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_backed_up":      isBackedUp,
			"is_file_backed_up": isFileBackedUp,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (s *GormStore) UpdateLevels(ids []string, level int) (affected []int, err error) {
	if len(ids) == 0 {
		return nil, nil
	}

	err = lib.GormTransaction(s.db, func(tx *gorm.DB) error {
		var oldLevels []int
		err := tx.Model(&AccountRecord{}).
			Where("id IN ? AND level <> ?", ids, level).
			Distinct("level").
			Pluck("level", &oldLevels).Error
		if err != nil {
			return err
		}

		err = tx.Model(&AccountRecord{}).
			Where("id IN ?", ids).
			Update("level", level).Error
		if err != nil {
			return err
		}

		for _, l := range oldLevels {
			activeID, err := activeAccountID(tx, l)
			if err != nil {
				return err
			}
			if !contains(ids, activeID) {
				continue
			}
			if err := fallbackActive(tx, l); err != nil {
				return err
			}
			affected = append(affected, l)
		}

		return nil
	})
	return
}

func activeAccountID(db *gorm.DB, level int) (string, error) {
	var a ActiveAccount
	err := db.First(&a, "level = ?", level).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return a.AccountID, err
}

func setActive(db *gorm.DB, level int, id string) error {
	if id == "" {
		return db.Delete(&ActiveAccount{}, "level = ?", level).Error
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "level"}},
		DoUpdates: clause.AssignmentColumns([]string{"account_id"}),
	}).Create(&ActiveAccount{Level: level, AccountID: id}).Error
}

// fallbackActive makes the first account of a level active, or clears the
// active account when the level is empty.
func fallbackActive(tx *gorm.DB, level int) error {
	var next AccountRecord
	err := tx.
		Where("level = ?", level).
		Order("created_at asc, id asc").
		First(&next).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return setActive(tx, level, "")
	}
	if err != nil {
		return err
	}
	return setActive(tx, level, next.ID)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
