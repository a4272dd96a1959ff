package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Role string

const (
	RoleEmployer   Role = "employer"
	RoleFreelancer Role = "freelancer"
	RoleAdmin      Role = "admin"
)

// internal/models/user.go
type User struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name  string    `gorm:"not null" json:"name"`
	Email string    `gorm:"uniqueIndex;not null" json:"email"`

	Password  string `gorm:"not null" json:"-"`
	Role      Role   `gorm:"type:varchar(20);not null;index" json:"role"`
	CollegeID string `gorm:"type:varchar(60)" json:"collegeId"`
	Branch    string `gorm:"type:varchar(80)" json:"branch"`
	Year      string `gorm:"type:varchar(20)" json:"year"`
	Bio       string `gorm:"type:text" json:"bio"`
	IsActive  bool   `gorm:"default:true" json:"isActive"`

	Skills datatypes.JSONSlice[string] `json:"skills"`
	Badges datatypes.JSONSlice[string] `json:"badges"`

	// Rating is always the mean of Ratings, recomputed on every new rating.
	Ratings datatypes.JSONSlice[int] `json:"ratings"`
	Rating  float64                  `gorm:"not null;default:0" json:"rating"`

	// Cached counters, bumped by the lifecycle transitions.
	// stats.Aggregate recomputes the same values from jobs and assignments.
	JobsPosted   int `gorm:"not null;default:0" json:"jobsPosted"`
	JobsAccepted int `gorm:"not null;default:0" json:"jobsAccepted"`

	// Balance is the sum of the user's wallet ledger.
	Balance int64 `gorm:"not null;default:0" json:"balance"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

// MeanRating returns the arithmetic mean of ratings, 0 when empty.
func MeanRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings))
}
