package assets

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssetRecord is a catalog entry.
type AssetRecord struct {
	TokenQueryID string    `gorm:"column:token_query_id;primaryKey"`
	Name         string    `gorm:"column:name"`
	Code         string    `gorm:"column:code"`
	Decimals     int       `gorm:"column:decimals"`
	Icon         string    `gorm:"column:icon"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (AssetRecord) TableName() string {
	return "assets"
}

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db}
}

func (s *GormStore) Upsert(r *AssetRecord) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_query_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "code", "decimals", "icon", "updated_at"}),
	}).Create(r).Error
}

func (s *GormStore) List() ([]AssetRecord, error) {
	rr := []AssetRecord{}
	err := s.db.Order("token_query_id asc").Find(&rr).Error
	return rr, err
}

func (s *GormStore) Find(ids []string) ([]AssetRecord, error) {
	rr := []AssetRecord{}
	if len(ids) == 0 {
		return rr, nil
	}
	err := s.db.Where("token_query_id IN ?", ids).Find(&rr).Error
	return rr, err
}

func (s *GormStore) Remove(id string) error {
	return s.db.Delete(&AssetRecord{}, "token_query_id = ?", id).Error
}
