package model

import "time"

// User stores Telegram user metadata and the identity bound to the chat.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	ChatID     int64
	FirstName  string
	LastName   string
	Username   string
	// AuthToken is a custom sign-in token supplied through /login. Empty means
	// anonymous sign-in keyed by the Telegram id.
	AuthToken string
	CreatedAt time.Time
	UpdatedAt time.Time
}
