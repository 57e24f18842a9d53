package models

import "github.com/google/uuid"

type Announcement struct {
	BaseModel
	ClubID   uuid.UUID `json:"clubID" gorm:"type:uuid;not null;index"`
	AuthorID uuid.UUID `json:"authorID" gorm:"type:uuid;not null"`
	Title    string    `json:"title" gorm:"type:varchar(150);not null"`
	Body     string    `json:"body" gorm:"type:text;not null"`
	Pinned   bool      `json:"pinned" gorm:"not null;default:false;index"`

	Club   Club `json:"club,omitempty" gorm:"foreignKey:ClubID;references:ID"`
	Author User `json:"author,omitempty" gorm:"foreignKey:AuthorID;references:ID"`
}

func (Announcement) TableName() string {
	return "announcements"
}
