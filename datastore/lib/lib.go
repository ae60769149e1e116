package lib

import "gorm.io/gorm"

// GormTransaction runs fn inside a database transaction. The transaction is
// rolled back when fn returns an error or panics and committed otherwise.
func GormTransaction(db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.Transaction(fn)
}
