package models

import "github.com/google/uuid"

type UserRole string

const (
	UserRoleAdmin      UserRole = "admin"
	UserRoleClubLeader UserRole = "club_leader"
	UserRoleMember     UserRole = "member"
)

type User struct {
	BaseModel
	Email        string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash string     `json:"-" gorm:"type:text;not null"`
	FirstName    string     `json:"firstName" gorm:"type:varchar(100);not null"`
	LastName     string     `json:"lastName" gorm:"type:varchar(100);not null"`
	Role         UserRole   `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	IsActive     bool       `json:"isActive" gorm:"not null;default:true"`
	ClubID       *uuid.UUID `json:"clubID,omitempty" gorm:"type:uuid;index"`
	AvatarURL    *string    `json:"avatarURL,omitempty" gorm:"type:text"`

	Memberships []Membership `json:"-" gorm:"foreignKey:UserID"`
}
