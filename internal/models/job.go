// internal/models/job.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobStatus string

const (
	JobStatusOpen      JobStatus = "open"
	JobStatusAssigned  JobStatus = "assigned"
	JobStatusCompleted JobStatus = "completed"
	JobStatusRated     JobStatus = "rated"
	JobStatusPaid      JobStatus = "paid"
)

type PaymentStatus string

const (
	PaymentStatusNone     PaymentStatus = "NONE"
	PaymentStatusPending  PaymentStatus = "PENDING"  // held by the platform
	PaymentStatusReleased PaymentStatus = "RELEASED" // paid out to the student
)

// MaxBidsPerJob caps Bid rows per job, counted over every status.
const MaxBidsPerJob = 5

// PlatformFeePercent is the platform commission taken from a job price.
const PlatformFeePercent = 10

type JobPayment struct {
	OrderID      string        `gorm:"type:varchar(64);index" json:"orderId,omitempty"`
	PaymentID    string        `gorm:"type:varchar(64)" json:"paymentId,omitempty"`
	Currency     string        `gorm:"type:varchar(8)" json:"currency,omitempty"`
	HeldAmount   int64         `json:"heldAmount"`
	PlatformFee  int64         `json:"platformFee"`
	WorkerPayout int64         `json:"workerPayout"`
	Captured     bool          `gorm:"default:false" json:"captured"`
	Status       PaymentStatus `gorm:"type:varchar(20);default:'NONE'" json:"status"`
	ReleasedAt   *time.Time    `json:"releasedAt,omitempty"`
}

type Job struct {
	ID          uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string                      `gorm:"not null" json:"title"`
	Description string                      `gorm:"type:text" json:"description"`
	Category    string                      `gorm:"type:varchar(80);index" json:"category"`
	Skills      datatypes.JSONSlice[string] `json:"skills"`
	Price       int64                       `gorm:"not null" json:"price"`
	Deadline    *time.Time                  `json:"deadline,omitempty"`

	PostedBy   uuid.UUID  `gorm:"type:uuid;index;not null" json:"postedBy"`
	AcceptedBy *uuid.UUID `gorm:"type:uuid;index" json:"acceptedBy"`

	Status JobStatus `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`

	// BidCount is the number of bid slots handed out. It only grows.
	BidCount int `gorm:"not null;default:0" json:"bidCount"`

	Payment JobPayment `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Poster   *User `gorm:"foreignKey:PostedBy" json:"poster,omitempty"`
	Accepted *User `gorm:"foreignKey:AcceptedBy" json:"accepted,omitempty"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) (err error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return
}

// JobPass records that a user passed on a job. Passed jobs are hidden from the open listing.
type JobPass struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"userId"`
	JobID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"jobId"`
	CreatedAt time.Time `json:"createdAt"`
}

// SavedJob is a user's wishlist entry.
type SavedJob struct {
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"userId"`
	JobID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"jobId"`
	CreatedAt time.Time `json:"createdAt"`

	Job *Job `gorm:"foreignKey:JobID" json:"job,omitempty"`
}
