package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ActivityAction string

const (
	ActivityPosted    ActivityAction = "posted"
	ActivityAccepted  ActivityAction = "accepted"
	ActivityCompleted ActivityAction = "completed"
	ActivityRated     ActivityAction = "rated"
	ActivityPaid      ActivityAction = "paid"
)

// Activity is an append-only audit row written as a side effect of a lifecycle transition.
type Activity struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"userId"`
	JobID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"jobId"`
	JobName   string         `gorm:"not null" json:"jobName"`
	Action    ActivityAction `gorm:"type:varchar(20);not null" json:"action"`
	CreatedAt time.Time      `json:"createdAt"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (a *Activity) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}
