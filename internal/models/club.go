package models

import "github.com/google/uuid"

type ClubStatus string

const (
	ClubStatusActive    ClubStatus = "active"
	ClubStatusInactive  ClubStatus = "inactive"
	ClubStatusSuspended ClubStatus = "suspended"
)

type Club struct {
	BaseModel
	Name        string     `json:"name" gorm:"type:varchar(150);uniqueIndex;not null"`
	Description *string    `json:"description,omitempty" gorm:"type:text"`
	Category    string     `json:"category" gorm:"type:varchar(50);not null;index"`
	Status      ClubStatus `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	LeaderID    uuid.UUID  `json:"leaderID" gorm:"type:uuid;not null;index"`
	LogoURL     *string    `json:"logoURL,omitempty" gorm:"type:text"`

	Leader      User         `json:"leader,omitempty" gorm:"foreignKey:LeaderID;references:ID"`
	Memberships []Membership `json:"-" gorm:"foreignKey:ClubID"`
}

func (Club) TableName() string {
	return "clubs"
}
