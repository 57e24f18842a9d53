package models

import (
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventStatusUpcoming  EventStatus = "upcoming"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

type RSVPStatus string

const (
	RSVPStatusGoing    RSVPStatus = "going"
	RSVPStatusNotGoing RSVPStatus = "not_going"
)

type Event struct {
	BaseModel
	ClubID      uuid.UUID   `json:"clubID" gorm:"type:uuid;not null;index"`
	Title       string      `json:"title" gorm:"type:varchar(150);not null"`
	Description *string     `json:"description,omitempty" gorm:"type:text"`
	Location    string      `json:"location" gorm:"type:varchar(255);not null"`
	StartsAt    time.Time   `json:"startsAt" gorm:"not null;index"`
	EndsAt      time.Time   `json:"endsAt" gorm:"not null"`
	Capacity    int         `json:"capacity" gorm:"not null;default:0"` // 0 means unlimited
	Status      EventStatus `json:"status" gorm:"type:varchar(20);not null;default:'upcoming';index"`
	BannerURL   *string     `json:"bannerURL,omitempty" gorm:"type:text"`

	Club  Club        `json:"club,omitempty" gorm:"foreignKey:ClubID;references:ID"`
	RSVPs []EventRSVP `json:"-" gorm:"foreignKey:EventID"`
}

func (Event) TableName() string {
	return "events"
}

type EventRSVP struct {
	BaseModel
	EventID uuid.UUID  `json:"eventID" gorm:"type:uuid;not null;index;uniqueIndex:idx_event_user"`
	UserID  uuid.UUID  `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_event_user"`
	Status  RSVPStatus `json:"status" gorm:"type:varchar(20);not null"`

	Event Event `json:"event,omitempty" gorm:"foreignKey:EventID;references:ID"`
	User  User  `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID"`
}

func (EventRSVP) TableName() string {
	return "event_rsvps"
}
