package models

import "time"

type UserRole string

const (
	UserRoleStaff      UserRole = "staff"
	UserRoleAdmin      UserRole = "admin"
	UserRoleSuperAdmin UserRole = "superadmin"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

type User struct {
	ID           string
	Username     string
	ContactNo    string
	Email        string
	PasswordHash []byte
	Role         UserRole
	Status       UserStatus
	BranchID     string
	AvatarID     *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) Active() bool {
	return u.Status == UserStatusActive
}
