package model

import "time"

// Document is one stored JSON document. Collection is the full collection
// path (e.g. artifacts/app/users/u1/tasks) and DocID the last path segment.
type Document struct {
	ID         uint   `gorm:"primaryKey"`
	Collection string `gorm:"size:512;index:idx_document_path,unique"`
	DocID      string `gorm:"size:128;index:idx_document_path,unique"`
	Data       string `gorm:"type:text"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Identity maps an anonymous install key onto a stable user id.
type Identity struct {
	ID         uint   `gorm:"primaryKey"`
	InstallKey string `gorm:"uniqueIndex"`
	UID        string `gorm:"uniqueIndex"`
	CreatedAt  time.Time
}
