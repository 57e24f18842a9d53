package models

import (
	"time"

	"github.com/google/uuid"
)

type MembershipStatus string

const (
	MembershipStatusPending  MembershipStatus = "pending"
	MembershipStatusApproved MembershipStatus = "approved"
	MembershipStatusRejected MembershipStatus = "rejected"
)

// Membership ties a user to a club. The compound unique index guarantees
// at most one row per (user, club) pair; re-joining after a rejection
// mutates the existing row instead of inserting a second one.
type Membership struct {
	BaseModel
	UserID   uuid.UUID        `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_member_club"`
	ClubID   uuid.UUID        `json:"clubID" gorm:"type:uuid;not null;index;uniqueIndex:idx_member_club"`
	Status   MembershipStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	JoinedAt *time.Time       `json:"joinedAt,omitempty"`

	User User `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID"`
	Club Club `json:"club,omitempty" gorm:"foreignKey:ClubID;references:ID"`
}

func (Membership) TableName() string {
	return "memberships"
}
