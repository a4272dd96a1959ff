package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusgig/campusgig-backend/internal/apperr"
	"github.com/campusgig/campusgig-backend/internal/metrics"
	"github.com/campusgig/campusgig-backend/internal/models"
	"github.com/campusgig/campusgig-backend/internal/services/notify"
)

// AcceptJobDirectly assigns an open job to the student at the posted price.
// Pending bids on the job are rejected.
func (s *Service) AcceptJobDirectly(ctx context.Context, jobID, studentID uuid.UUID) (*models.AssignedJob, error) {
	var (
		job      *models.Job
		assigned *models.AssignedJob
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		job, err = LockJob(tx, jobID)
		if err != nil {
			return err
		}
		if job.PostedBy == studentID {
			return apperr.Forbidden("you cannot accept your own job")
		}
		if job.AcceptedBy != nil {
			return apperr.AlreadyAccepted("job has already been accepted")
		}

		var student models.User
		if err := tx.First(&student, "id = ?", studentID).Error; err != nil {
			return apperr.FromStore(err, "student")
		}

		if err := tx.Model(&models.Bid{}).
			Where("job_id = ? AND status = ?", job.ID, models.BidStatusPending).
			Update("status", models.BidStatusRejected).Error; err != nil {
			return fmt.Errorf("reject pending bids: %w", err)
		}

		assigned, err = Assign(tx, job, &student, job.Price)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.submit(notify.KindJobAccepted, job.PostedBy, map[string]string{
		"jobId":       job.ID.String(),
		"jobTitle":    job.Title,
		"studentName": assigned.StudentName,
	})
	return assigned, nil
}

// NotificationOutcome reports a synchronous notification attempt.
type NotificationOutcome struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type Completion struct {
	Assignment   *models.AssignedJob `json:"assignedJob"`
	Job          *models.Job         `json:"job"`
	Student      *models.User        `json:"student"`
	Notification NotificationOutcome `json:"notification"`
}

// CompleteJob marks the student's assignment completed. The identifier may be
// the assignment id or its job id. The poster is notified synchronously; a failed
// notification is reported in the result and never undoes the completion.
func (s *Service) CompleteJob(ctx context.Context, identifier, studentID uuid.UUID) (*Completion, error) {
	var assigned *models.AssignedJob
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		assigned, err = resolveAssignment(tx, identifier, true)
		if err != nil {
			return err
		}
		if assigned.StudentID != studentID {
			return apperr.Forbidden("only the assigned student can complete this job")
		}
		if !CanAdvance(assigned.Status, models.AssignmentCompleted) {
			return apperr.InvalidState("only accepted jobs can be marked as completed")
		}

		res := tx.Model(&models.AssignedJob{}).
			Where("id = ? AND status = ?", assigned.ID, models.AssignmentAccepted).
			Update("status", models.AssignmentCompleted)
		if res.Error != nil {
			return fmt.Errorf("complete assignment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidState("only accepted jobs can be marked as completed")
		}
		if err := tx.Model(&models.Job{}).Where("id = ?", assigned.JobID).
			Update("status", models.JobStatusCompleted).Error; err != nil {
			return fmt.Errorf("complete job: %w", err)
		}
		assigned.Status = models.AssignmentCompleted

		var job models.Job
		if err := tx.Select("id", "title").First(&job, "id = ?", assigned.JobID).Error; err != nil {
			return apperr.FromStore(err, "job")
		}
		return recordActivity(tx, studentID, &job, models.ActivityCompleted)
	})
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(models.JobStatusCompleted)).Inc()

	out := &Completion{Assignment: assigned}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var job models.Job
		if err := s.db.WithContext(gctx).First(&job, "id = ?", assigned.JobID).Error; err != nil {
			return apperr.FromStore(err, "job")
		}
		out.Job = &job
		return nil
	})
	g.Go(func() error {
		var student models.User
		if err := s.db.WithContext(gctx).First(&student, "id = ?", assigned.StudentID).Error; err != nil {
			return apperr.FromStore(err, "student")
		}
		out.Student = &student
		return nil
	})
	if err := g.Wait(); err != nil {
		s.log.Error("load completion snapshot", zap.Stringer("assignment", assigned.ID), zap.Error(err))
		out.Notification = NotificationOutcome{Error: err.Error()}
		return out, nil
	}

	out.Notification = s.deliver(ctx, notify.New(notify.KindJobCompleted, out.Job.PostedBy, map[string]string{
		"jobId":       out.Job.ID.String(),
		"jobTitle":    out.Job.Title,
		"studentName": out.Student.Name,
	}))
	return out, nil
}

func (s *Service) deliver(ctx context.Context, n notify.Notification) NotificationOutcome {
	if s.notifier == nil {
		return NotificationOutcome{Success: true}
	}
	if err := s.notifier.Deliver(ctx, n); err != nil {
		s.log.Warn("notification failed", zap.String("kind", string(n.Kind)), zap.Error(err))
		return NotificationOutcome{Error: err.Error()}
	}
	return NotificationOutcome{Success: true}
}

type RateInput struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

// RateJob records the poster's rating of a completed assignment and recomputes
// the student's mean rating from the full sequence.
func (s *Service) RateJob(ctx context.Context, identifier, raterID uuid.UUID, in RateInput) (*models.AssignedJob, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}
	review := strings.TrimSpace(in.Review)

	var (
		assigned *models.AssignedJob
		job      models.Job
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		assigned, err = resolveAssignment(tx, identifier, true)
		if err != nil {
			return err
		}
		if err := tx.First(&job, "id = ?", assigned.JobID).Error; err != nil {
			return apperr.FromStore(err, "job")
		}
		if job.PostedBy != raterID {
			return apperr.Forbidden("only the job poster can rate this job")
		}
		if !CanAdvance(assigned.Status, models.AssignmentRated) {
			return apperr.InvalidState("only completed jobs can be rated")
		}

		rating := in.Rating
		res := tx.Model(&models.AssignedJob{}).
			Where("id = ? AND status = ?", assigned.ID, models.AssignmentCompleted).
			Updates(map[string]interface{}{
				"status": models.AssignmentRated,
				"rating": rating,
				"review": review,
			})
		if res.Error != nil {
			return fmt.Errorf("rate assignment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidState("only completed jobs can be rated")
		}
		if err := tx.Model(&models.Job{}).Where("id = ?", job.ID).
			Update("status", models.JobStatusRated).Error; err != nil {
			return fmt.Errorf("rate job: %w", err)
		}

		var student models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&student, "id = ?", assigned.StudentID).Error; err != nil {
			return apperr.FromStore(err, "student")
		}
		ratings := append(datatypes.JSONSlice[int]{}, student.Ratings...)
		ratings = append(ratings, rating)
		if err := tx.Model(&models.User{}).Where("id = ?", student.ID).
			Updates(map[string]interface{}{
				"ratings": ratings,
				"rating":  models.MeanRating(ratings),
			}).Error; err != nil {
			return fmt.Errorf("update student rating: %w", err)
		}

		assigned.Status = models.AssignmentRated
		assigned.Rating = &rating
		assigned.Review = &review
		return recordActivity(tx, raterID, &job, models.ActivityRated)
	})
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(models.JobStatusRated)).Inc()

	s.submit(notify.KindJobRated, assigned.StudentID, map[string]string{
		"jobId":    job.ID.String(),
		"jobTitle": job.Title,
		"rating":   itoa(int64(in.Rating)),
	})
	return assigned, nil
}
