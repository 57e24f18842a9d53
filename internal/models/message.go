package models

import "github.com/google/uuid"

type Message struct {
	BaseModel
	SenderID    uuid.UUID `json:"senderID" gorm:"type:uuid;not null;index"`
	RecipientID uuid.UUID `json:"recipientID" gorm:"type:uuid;not null;index"`
	Body        string    `json:"body" gorm:"type:text;not null"`
	IsRead      bool      `json:"isRead" gorm:"not null;default:false;index"`

	Sender    User `json:"sender,omitempty" gorm:"foreignKey:SenderID;references:ID"`
	Recipient User `json:"recipient,omitempty" gorm:"foreignKey:RecipientID;references:ID"`
}

func (Message) TableName() string {
	return "messages"
}
