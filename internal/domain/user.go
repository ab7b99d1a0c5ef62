package domain

import "time"

type User struct {
	ID         int64
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	IsAdmin    bool
	IsBlocked  bool
	BlockedAt  *time.Time
	BlockedBy  *int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DisplayName returns the name shown in chat messages about this user.
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	return u.FirstName
}
