package users

import "time"

// User is one Telegram account known to the bot. ID is the internal
// UUID; TelegramID is the stable identifier assigned by Telegram.
type User struct {
	ID           string
	TelegramID   int64
	Username     string
	FirstName    string
	LanguageCode string
	CreatedAt    time.Time
	LastSeenAt   time.Time
}

// Profile is the identity data carried on every incoming update.
type Profile struct {
	TelegramID   int64
	Username     string
	FirstName    string
	LanguageCode string
}
