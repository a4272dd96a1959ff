package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssignmentStatus string

const (
	AssignmentAccepted  AssignmentStatus = "accepted"
	AssignmentCompleted AssignmentStatus = "completed"
	AssignmentRated     AssignmentStatus = "rated"
	AssignmentPaid      AssignmentStatus = "paid"
)

// AssignedJob is the authoritative lifecycle record of a job once it has a student.
// Job.AcceptedBy is a denormalized pointer kept in sync with it.
type AssignedJob struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JobID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"jobId"`
	StudentID uuid.UUID `gorm:"type:uuid;not null;index" json:"studentId"`

	// snapshot at assignment time
	JobTitle     string `gorm:"not null" json:"jobTitle"`
	StudentName  string `gorm:"not null" json:"studentName"`
	StudentEmail string `gorm:"not null" json:"studentEmail"`
	BidAmount    int64  `gorm:"not null" json:"bidAmount"`

	Status     AssignmentStatus `gorm:"type:varchar(20);not null;default:'accepted';index" json:"status"`
	AssignedAt time.Time        `json:"assignedAt"`

	Rating *int    `json:"rating"`
	Review *string `gorm:"type:text" json:"review"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Job     *Job  `gorm:"foreignKey:JobID" json:"job,omitempty"`
	Student *User `gorm:"foreignKey:StudentID" json:"student,omitempty"`
}

func (a *AssignedJob) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}
	return
}
