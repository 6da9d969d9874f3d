// coach/sources/psql/models/chat_export.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatExport records one published chat log. The log itself lives in
// object storage; this row only points at it.
type ChatExport struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    int       `json:"user_id" gorm:"not null;index"`
	User      User      `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	SessionID string    `json:"session_id" gorm:"type:varchar(64);not null"`
	ObjectKey string    `json:"object_key" gorm:"type:varchar(512);not null"`
	URL       string    `json:"url" gorm:"type:text;not null"`
	Rows      int       `json:"rows" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (ChatExport) TableName() string {
	return "chat_exports"
}

func (e *ChatExport) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
