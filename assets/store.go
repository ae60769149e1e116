package assets

// Store manages the asset catalog records.
type Store interface {
	Upsert(*AssetRecord) error
	List() ([]AssetRecord, error)
	Find(ids []string) ([]AssetRecord, error)
	Remove(id string) error
}
