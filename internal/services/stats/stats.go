// Package stats computes per-user job counters.
//
// The lifecycle transitions maintain jobs_posted and jobs_accepted on the user
// row; Aggregate recomputes the same numbers from jobs and assignments. The two
// must agree, and Reconcile writes the aggregate back when they do not.
package stats

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusgig/campusgig-backend/internal/apperr"
	"github.com/campusgig/campusgig-backend/internal/models"
)

type Counters struct {
	JobsPosted    int64   `json:"jobsPosted"`
	JobsAccepted  int64   `json:"jobsAccepted"`
	JobsCompleted int64   `json:"jobsCompleted"`
	TotalEarnings int64   `json:"totalEarnings"`
	Rating        float64 `json:"rating"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Cached reads the counters stored on the user row.
func (s *Service) Cached(ctx context.Context, userID uuid.UUID) (Counters, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", userID).Error; err != nil {
		return Counters{}, apperr.FromStore(err, "user")
	}
	return Counters{
		JobsPosted:   int64(u.JobsPosted),
		JobsAccepted: int64(u.JobsAccepted),
		Rating:       u.Rating,
	}, nil
}

var doneStatuses = []models.AssignmentStatus{
	models.AssignmentCompleted,
	models.AssignmentRated,
	models.AssignmentPaid,
}

// Aggregate recomputes the counters from jobs and assignments.
func (s *Service) Aggregate(ctx context.Context, userID uuid.UUID) (Counters, error) {
	db := s.db.WithContext(ctx)

	var u models.User
	if err := db.Select("id", "rating").First(&u, "id = ?", userID).Error; err != nil {
		return Counters{}, apperr.FromStore(err, "user")
	}
	c := Counters{Rating: u.Rating}

	if err := db.Model(&models.Job{}).Where("posted_by = ?", userID).Count(&c.JobsPosted).Error; err != nil {
		return Counters{}, fmt.Errorf("count posted jobs: %w", err)
	}
	if err := db.Model(&models.AssignedJob{}).Where("student_id = ?", userID).Count(&c.JobsAccepted).Error; err != nil {
		return Counters{}, fmt.Errorf("count accepted jobs: %w", err)
	}

	var done struct {
		N   int64
		Sum int64
	}
	err := db.Model(&models.AssignedJob{}).
		Select("COUNT(*) AS n, COALESCE(SUM(bid_amount), 0) AS sum").
		Where("student_id = ? AND status IN ?", userID, doneStatuses).
		Scan(&done).Error
	if err != nil {
		return Counters{}, fmt.Errorf("sum earnings: %w", err)
	}
	c.JobsCompleted = done.N
	c.TotalEarnings = done.Sum
	return c, nil
}

// Reconcile stores the aggregated counters on the user row and returns them.
func (s *Service) Reconcile(ctx context.Context, userID uuid.UUID) (Counters, error) {
	c, err := s.Aggregate(ctx, userID)
	if err != nil {
		return Counters{}, err
	}
	err = s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"jobs_posted":   c.JobsPosted,
			"jobs_accepted": c.JobsAccepted,
		}).Error
	if err != nil {
		return Counters{}, fmt.Errorf("reconcile counters: %w", err)
	}
	return c, nil
}

// Drifted reports whether the cached counters disagree with the aggregate.
func Drifted(cached, aggregated Counters) bool {
	return cached.JobsPosted != aggregated.JobsPosted || cached.JobsAccepted != aggregated.JobsAccepted
}
