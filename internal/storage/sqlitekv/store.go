// Package sqlitekv is a storage.Backend on the landform sqlite database.
package sqlitekv

import (
	"errors"
	"time"

	dbmodel "landform/internal/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db    *gorm.DB
	owned bool
}

// New wraps an already opened database. Close leaves it open.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	return &Store{db: db}, nil
}

// Open opens the database at path; Close closes it.
func Open(path string) (*Store, error) {
	gdb, err := dbmodel.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return &Store{db: gdb, owned: true}, nil
}

func (s *Store) Get(key string) (string, bool, error) {
	var row dbmodel.StorageEntry
	err := s.db.Model(&dbmodel.StorageEntry{}).Select("value").Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

func (s *Store) Set(key, value string) error {
	row := dbmodel.StorageEntry{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().UTC().Unix(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]any{
			"value":      row.Value,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error
}

func (s *Store) Delete(key string) error {
	return s.db.Where("key = ?", key).Delete(&dbmodel.StorageEntry{}).Error
}

func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return dbmodel.Close(s.db)
}
