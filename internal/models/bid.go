package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BidStatus string

const (
	BidStatusPending  BidStatus = "pending"
	BidStatusAccepted BidStatus = "accepted"
	BidStatusRejected BidStatus = "rejected"
)

type Bid struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_bids_job_slot;index" json:"jobId"`
	StudentID uuid.UUID `gorm:"type:uuid;not null;index" json:"studentId"`
	BidAmount int64     `gorm:"not null" json:"bidAmount"`
	Message   string    `gorm:"type:text" json:"message,omitempty"`

	// Slot is the 1-based position handed out by the guarded job counter.
	Slot int `gorm:"not null;uniqueIndex:idx_bids_job_slot" json:"slot"`

	Status    BidStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Job     *Job  `gorm:"foreignKey:JobID" json:"job,omitempty"`
	Student *User `gorm:"foreignKey:StudentID" json:"student,omitempty"`
}

func (b *Bid) BeforeCreate(tx *gorm.DB) (err error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return
}
