package wallets

import (
	"errors"
	"fmt"

	"github.com/flow-hydraulics/wallet-orchestrator/accounts"
	"github.com/flow-hydraulics/wallet-orchestrator/datastore/lib"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnabledWallet is the persisted projection of a Wallet. The coin columns
// hold a snapshot of the token and are only set for tokens the asset
// catalog could not resolve when the wallet was saved.
type EnabledWallet struct {
	TokenQueryID string  `gorm:"column:token_query_id;primaryKey"`
	AccountID    string  `gorm:"column:account_id;primaryKey;index"`
	OrderHint    int     `gorm:"column:order_hint"`
	CoinName     *string `gorm:"column:coin_name"`
	CoinCode     *string `gorm:"column:coin_code"`
	Decimals     *int    `gorm:"column:coin_decimals"`
	Icon         *string `gorm:"column:coin_icon"`
}

func (EnabledWallet) TableName() string {
	return "enabled_wallets"
}

func (r EnabledWallet) Key() Key {
	return Key{TokenQueryID: r.TokenQueryID, AccountID: r.AccountID}
}

func (r EnabledWallet) hasSnapshot() bool {
	return r.CoinName != nil && r.CoinCode != nil && r.Decimals != nil
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db}
}

func (s *GormStore) EnabledWallets(accountID string) (rr []EnabledWallet, err error) {
	err = s.db.
		Where("account_id = ?", accountID).
		Order("order_hint asc, token_query_id asc").
		Find(&rr).Error
	return
}

func (s *GormStore) HandleEnabledWallets(save []EnabledWallet, del []Key) error {
	if len(save) == 0 && len(del) == 0 {
		return nil
	}

	return lib.GormTransaction(s.db, func(tx *gorm.DB) error {
		if err := saveEnabledWallets(tx, save); err != nil {
			return err
		}
		return deleteEnabledWallets(tx, del)
	})
}

func (s *GormStore) ClearEnabledWallets() error {
	return s.db.Where("1 = 1").Delete(&EnabledWallet{}).Error
}

// checkAccount fails unless the account exists. Outside of sqlite the row is
// share-locked until the transaction ends, so a concurrent account deletion
// either waits for the wallets to be written or is seen here.
func checkAccount(tx *gorm.DB, id string) error {
	q := tx.Model(&accounts.AccountRecord{}).Where("id = ?", id)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "SHARE"})
	}

	var ids []string
	if err := q.Pluck("id", &ids).Error; err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("enabling wallets of account %s: %w", id, accounts.ErrAccountNotFound)
	}
	return nil
}

func saveEnabledWallets(tx *gorm.DB, rr []EnabledWallet) error {
	checked := make(map[string]bool)
	next := make(map[string]int)

	for _, r := range rr {
		if !checked[r.AccountID] {
			if err := checkAccount(tx, r.AccountID); err != nil {
				return err
			}
			checked[r.AccountID] = true
		}

		var existing EnabledWallet
		err := tx.
			Where("token_query_id = ? AND account_id = ?", r.TokenQueryID, r.AccountID).
			First(&existing).Error

		switch {
		case err == nil:
			err = tx.Model(&existing).
				Select("coin_name", "coin_code", "coin_decimals", "coin_icon").
				Updates(EnabledWallet{
					CoinName: r.CoinName,
					CoinCode: r.CoinCode,
					Decimals: r.Decimals,
					Icon:     r.Icon,
				}).Error
			if err != nil {
				return err
			}
			continue
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		hint, ok := next[r.AccountID]
		if !ok {
			var res struct{ Max *int }
			err := tx.Model(&EnabledWallet{}).
				Where("account_id = ?", r.AccountID).
				Select("MAX(order_hint) AS max").
				Scan(&res).Error
			if err != nil {
				return err
			}
			if res.Max != nil {
				hint = *res.Max + 1
			}
		}

		r.OrderHint = hint
		if err := tx.Create(&r).Error; err != nil {
			return err
		}
		next[r.AccountID] = hint + 1
	}

	return nil
}

func deleteEnabledWallets(tx *gorm.DB, kk []Key) error {
	for _, k := range kk {
		err := tx.
			Where("token_query_id = ? AND account_id = ?", k.TokenQueryID, k.AccountID).
			Delete(&EnabledWallet{}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
