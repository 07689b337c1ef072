package model

import "time"

// ActivityRow is the persisted form of a record in the latest snapshot (hot table).
type ActivityRow struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	SnapshotID     string    `gorm:"index;size:36;not null"`
	Position       int       `gorm:"not null"`
	Key            string    `gorm:"column:record_key;index;size:512;not null"`
	ManagementUnit string    `gorm:"index;size:128"`
	Date           string    `gorm:"size:64"`
	StatusCode     *int      `gorm:"index"`
	Payload        string    `gorm:"type:text;not null"`
	FetchedAt      time.Time `gorm:"not null"`
}

// ActivityChange logs a record whose content changed between two snapshots (cold table).
type ActivityChange struct {
	ID             int64     `gorm:"primaryKey;autoIncrement"`
	Key            string    `gorm:"column:record_key;index;size:512;not null"`
	SnapshotID     string    `gorm:"index;size:36;not null"`
	ObservedAt     time.Time `gorm:"index;not null"`
	ManagementUnit string    `gorm:"size:128"`
	Payload        string    `gorm:"type:text;not null"`
}

// SnapshotMeta records when a snapshot was fetched.
type SnapshotMeta struct {
	ID              string    `gorm:"primaryKey;size:36"`
	FetchedAt       time.Time `gorm:"index;not null"`
	SourceUpdatedAt *time.Time
	RecordCount     int `gorm:"not null"`
}
