// Package lifecycle drives a job from posting through assignment, completion,
// rating and payment release.
package lifecycle

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusgig/campusgig-backend/internal/apperr"
	"github.com/campusgig/campusgig-backend/internal/metrics"
	"github.com/campusgig/campusgig-backend/internal/models"
	"github.com/campusgig/campusgig-backend/internal/services/notify"
)

// PaymentProvider creates gateway orders for held payments.
type PaymentProvider interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error)
}

type Service struct {
	db       *gorm.DB
	notifier notify.Sink
	payments PaymentProvider
	log      *zap.Logger
}

func NewService(db *gorm.DB, notifier notify.Sink, payments PaymentProvider, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, notifier: notifier, payments: payments, log: log.Named("lifecycle")}
}

// LockJob loads a job for update inside tx.
func LockJob(tx *gorm.DB, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&job, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "job")
	}
	return &job, nil
}

// Assign hands job to student at amount. It is the only code path that creates
// an AssignedJob, and must run inside the caller's transaction.
func Assign(tx *gorm.DB, job *models.Job, student *models.User, amount int64) (*models.AssignedJob, error) {
	if job.PostedBy == student.ID {
		return nil, apperr.Forbidden("you cannot take your own job")
	}

	res := tx.Model(&models.Job{}).
		Where("id = ? AND accepted_by IS NULL AND status = ?", job.ID, models.JobStatusOpen).
		Updates(map[string]interface{}{
			"accepted_by": student.ID,
			"status":      models.JobStatusAssigned,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("assign job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.AlreadyAccepted("job has already been accepted")
	}

	assigned := &models.AssignedJob{
		JobID:        job.ID,
		StudentID:    student.ID,
		JobTitle:     job.Title,
		StudentName:  student.Name,
		StudentEmail: student.Email,
		BidAmount:    amount,
		Status:       models.AssignmentAccepted,
	}
	if err := tx.Create(assigned).Error; err != nil {
		return nil, fmt.Errorf("create assignment: %w", err)
	}

	if err := tx.Model(&models.User{}).Where("id = ?", student.ID).
		UpdateColumn("jobs_accepted", gorm.Expr("jobs_accepted + 1")).Error; err != nil {
		return nil, fmt.Errorf("bump jobs_accepted: %w", err)
	}

	if err := recordActivity(tx, student.ID, job, models.ActivityAccepted); err != nil {
		return nil, err
	}

	job.AcceptedBy = &student.ID
	job.Status = models.JobStatusAssigned
	metrics.Transitions.WithLabelValues(string(models.JobStatusAssigned)).Inc()
	return assigned, nil
}

func recordActivity(tx *gorm.DB, userID uuid.UUID, job *models.Job, action models.ActivityAction) error {
	a := &models.Activity{UserID: userID, JobID: job.ID, JobName: job.Title, Action: action}
	if err := tx.Create(a).Error; err != nil {
		return fmt.Errorf("record %s activity: %w", action, err)
	}
	return nil
}

// resolveAssignment finds an assignment by its own id or by the id of its job.
func resolveAssignment(tx *gorm.DB, identifier uuid.UUID, lock bool) (*models.AssignedJob, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var a models.AssignedJob
	err := q.Where("id = ?", identifier).Limit(1).Find(&a).Error
	if err != nil {
		return nil, fmt.Errorf("load assignment: %w", err)
	}
	if a.ID != uuid.Nil {
		return &a, nil
	}
	q = tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(&a, "job_id = ?", identifier).Error; err != nil {
		return nil, apperr.FromStore(err, "assigned job")
	}
	return &a, nil
}

func (s *Service) submit(kind notify.Kind, recipient uuid.UUID, data map[string]string) {
	if s.notifier == nil {
		return
	}
	if !s.notifier.Submit(notify.New(kind, recipient, data)) {
		s.log.Warn("notification not queued", zap.String("kind", string(kind)), zap.Stringer("recipient", recipient))
	}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }
