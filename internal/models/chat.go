// internal/models/chat.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChatThread is the conversation between exactly two users. It can carry messages for
// several jobs; UserLow/UserHigh hold the pair in canonical order and are unique together.
type ChatThread struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	UserLow  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_chat_threads_pair" json:"-"`
	UserHigh uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_chat_threads_pair" json:"-"`

	// as supplied by whoever created the thread
	PosterID       uuid.UUID `gorm:"type:uuid;index" json:"posterId"`
	AcceptedUserID uuid.UUID `gorm:"type:uuid;index" json:"acceptedUserId"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Poster       *User `gorm:"foreignKey:PosterID" json:"poster,omitempty"`
	AcceptedUser *User `gorm:"foreignKey:AcceptedUserID" json:"acceptedUser,omitempty"`
}

func (t *ChatThread) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}

// HasParty reports whether userID is one of the two thread members.
func (t *ChatThread) HasParty(userID uuid.UUID) bool {
	return t.UserLow == userID || t.UserHigh == userID
}

// ChatMessage is append-only; Seen is the only mutable field.
type ChatMessage struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ThreadID uuid.UUID `gorm:"type:uuid;not null;index" json:"threadId"`
	SenderID uuid.UUID `gorm:"type:uuid;not null;index" json:"senderId"`
	JobID    uuid.UUID `gorm:"type:uuid;not null;index" json:"jobId"`
	Text     string    `gorm:"type:text" json:"text"`
	File     string    `gorm:"type:text" json:"file"`
	FileType string    `gorm:"type:varchar(20)" json:"fileType"` // audio, image, video
	Seen     bool      `gorm:"not null;default:false" json:"seen"`

	CreatedAt time.Time `json:"createdAt"`
}

// All lists every model for auto-migration.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Job{},
		&JobPass{},
		&SavedJob{},
		&Bid{},
		&AssignedJob{},
		&Activity{},
		&ChatThread{},
		&ChatMessage{},
		&WalletTransaction{},
	}
}
