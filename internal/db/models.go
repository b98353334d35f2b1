package db

// StorageEntry backs the sqlite key/value store used for autosave snapshots,
// submission markers and the consent flag.
type StorageEntry struct {
	Key       string `gorm:"column:key;primaryKey"`
	Value     string `gorm:"column:value;not null;default:''"`
	UpdatedAt int64  `gorm:"column:updated_at;not null;default:0"`
}

func (StorageEntry) TableName() string { return "storage_entries" }
