package users

import (
	"strings"
	"time"
)

// Reader maps a login (provider, subject) to the reader id used by reading and library records.
type Reader struct {
	Provider    string    `gorm:"column:provider;primaryKey;size:32;not null"`
	Subject     string    `gorm:"column:subject;primaryKey;size:190;not null"`
	ReaderID    string    `gorm:"column:reader_id;size:190;not null;index"`
	DisplayName string    `gorm:"column:display_name;size:320"`
	FirstSeenAt time.Time `gorm:"column:first_seen_at;not null"`
	LastSeenAt  time.Time `gorm:"column:last_seen_at;not null"`
}

// TableName exposes the table backing reader identities.
func (Reader) TableName() string {
	return "reader_identities"
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
