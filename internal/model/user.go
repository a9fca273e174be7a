package model

import "time"

// Role is the authorization role carried by a user record.
type Role string

const (
	RoleMember  Role = "member"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// CanReview reports whether the role may act on other users' reservations,
// checkouts and availability.
func (r Role) CanReview() bool {
	return r == RoleManager || r == RoleAdmin
}

// UserStatus is the account state of a user.
type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

// User is the identity record the auth layer resolves a request to.
type User struct {
	ID        int64      `gorm:"primaryKey"`
	Name      string     `gorm:"size:256;not null"`
	Email     string     `gorm:"size:256;uniqueIndex"`
	Role      Role       `gorm:"size:16;not null;default:member"`
	Status    UserStatus `gorm:"size:16;not null;default:active"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
