package db

import (
	"errors"

	"gorm.io/gorm"
)

// SyncSchema creates/updates tables and indexes from models. Table structure changes do not use versioned migrations.
func SyncSchema(db *gorm.DB) error {
	if db == nil {
		return errors.New("db is required")
	}
	if err := db.AutoMigrate(&StorageEntry{}); err != nil {
		return err
	}
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_storage_entries_updated_at ON storage_entries(updated_at DESC);`,
	} {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// MigrateUp is what `landform migrate up` and OpenSQLite run.
func MigrateUp(db *gorm.DB) error {
	return SyncSchema(db)
}
