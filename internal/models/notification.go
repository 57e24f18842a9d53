package models

import "github.com/google/uuid"

type NotificationType string

const (
	NotificationTypeMembership   NotificationType = "membership"
	NotificationTypeAnnouncement NotificationType = "announcement"
	NotificationTypeEvent        NotificationType = "event"
	NotificationTypeMessage      NotificationType = "message"
)

// Notification is append-only from the workflows' perspective: rows are
// written by the notify service and only ever mutated (mark-read) or
// deleted by their recipient.
type Notification struct {
	BaseModel
	UserID  uuid.UUID        `json:"userID" gorm:"type:uuid;not null;index"`
	Title   string           `json:"title" gorm:"type:varchar(150);not null"`
	Message string           `json:"message" gorm:"type:text;not null"`
	Type    NotificationType `json:"type" gorm:"type:varchar(30);not null"`
	Link    *string          `json:"link,omitempty" gorm:"type:text"`
	IsRead  bool             `json:"isRead" gorm:"not null;default:false;index"`
}

func (Notification) TableName() string {
	return "notifications"
}
