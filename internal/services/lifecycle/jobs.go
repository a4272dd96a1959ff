package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/campusgig/campusgig-backend/internal/apperr"
	"github.com/campusgig/campusgig-backend/internal/models"
	"github.com/campusgig/campusgig-backend/internal/services/notify"
)

type PostJobInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Skills      []string   `json:"skills"`
	Price       int64      `json:"price"`
	Deadline    *time.Time `json:"deadline"`
}

func (in PostJobInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.Validation("title is required")
	}
	if in.Price <= 0 {
		return apperr.Validation("price must be greater than zero")
	}
	return nil
}

// PostJob creates an open job, bumps the poster's jobs_posted counter and
// records a posted activity.
func (s *Service) PostJob(ctx context.Context, posterID uuid.UUID, in PostJobInput) (*models.Job, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	skills := make([]string, 0, len(in.Skills))
	for _, sk := range in.Skills {
		if sk = strings.TrimSpace(sk); sk != "" {
			skills = append(skills, sk)
		}
	}

	job := &models.Job{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Category:    strings.TrimSpace(in.Category),
		Skills:      datatypes.JSONSlice[string](skills),
		Price:       in.Price,
		Deadline:    in.Deadline,
		PostedBy:    posterID,
		Status:      models.JobStatusOpen,
		Payment:     models.JobPayment{Status: models.PaymentStatusNone},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", posterID).
			UpdateColumn("jobs_posted", gorm.Expr("jobs_posted + 1"))
		if res.Error != nil {
			return fmt.Errorf("bump jobs_posted: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("poster not found")
		}
		if err := tx.Create(job).Error; err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		return recordActivity(tx, posterID, job, models.ActivityPosted)
	})
	if err != nil {
		return nil, err
	}

	s.submit(notify.KindJobPosted, posterID, map[string]string{
		"jobId":    job.ID.String(),
		"jobTitle": job.Title,
	})
	return job, nil
}

// GetJob returns a job with its poster and, when assigned, the accepted student.
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	err := s.db.WithContext(ctx).
		Preload("Poster").
		Preload("Accepted").
		First(&job, "id = ?", id).Error
	if err != nil {
		return nil, apperr.FromStore(err, "job")
	}
	return &job, nil
}

type ListFilter struct {
	Search   string
	Category string
	Limit    int
	Offset   int
}

// ListOpenJobs returns unassigned jobs the viewer neither posted nor passed on.
// Search matches title or description, category is a substring match; both
// ignore case.
func (s *Service) ListOpenJobs(ctx context.Context, viewerID uuid.UUID, f ListFilter) ([]models.Job, error) {
	passed := s.db.Model(&models.JobPass{}).Select("job_id").Where("user_id = ?", viewerID)

	q := s.db.WithContext(ctx).Model(&models.Job{}).
		Preload("Poster").
		Where("accepted_by IS NULL").
		Where("posted_by <> ?", viewerID).
		Where("id NOT IN (?)", passed)

	if term := strings.ToLower(strings.TrimSpace(f.Search)); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}
	if cat := strings.ToLower(strings.TrimSpace(f.Category)); cat != "" {
		q = q.Where("LOWER(category) LIKE ?", "%"+cat+"%")
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var jobs []models.Job
	if err := q.Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list open jobs: %w", err)
	}
	return jobs, nil
}

// ListMyPostedJobs returns the poster's jobs, newest first.
func (s *Service) ListMyPostedJobs(ctx context.Context, posterID uuid.UUID) ([]models.Job, error) {
	var jobs []models.Job
	err := s.db.WithContext(ctx).
		Preload("Accepted").
		Where("posted_by = ?", posterID).
		Order("created_at DESC").
		Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("list posted jobs: %w", err)
	}
	return jobs, nil
}

// ListAcceptedJobs returns the assignments held by a student.
func (s *Service) ListAcceptedJobs(ctx context.Context, studentID uuid.UUID) ([]models.AssignedJob, error) {
	var out []models.AssignedJob
	err := s.db.WithContext(ctx).
		Preload("Job").
		Preload("Job.Poster").
		Where("student_id = ?", studentID).
		Order("assigned_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list accepted jobs: %w", err)
	}
	return out, nil
}

// ListActivities returns a user's most recent activity entries.
func (s *Service) ListActivities(ctx context.Context, userID uuid.UUID, limit int) ([]models.Activity, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var out []models.Activity
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return out, nil
}

func (s *Service) ensureJob(ctx context.Context, jobID uuid.UUID) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Job{}).Where("id = ?", jobID).Count(&n).Error; err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("job not found")
	}
	return nil
}

// PassJob hides a job from the user's open listing. Passing twice is a no-op.
func (s *Service) PassJob(ctx context.Context, jobID, userID uuid.UUID) error {
	if err := s.ensureJob(ctx, jobID); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.JobPass{UserID: userID, JobID: jobID}).Error
	if err != nil {
		return fmt.Errorf("pass job: %w", err)
	}
	return nil
}

// SaveJob adds a job to the user's saved list. Saving twice is a no-op.
func (s *Service) SaveJob(ctx context.Context, jobID, userID uuid.UUID) error {
	if err := s.ensureJob(ctx, jobID); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.SavedJob{UserID: userID, JobID: jobID}).Error
	if err != nil {
		return fmt.Errorf("save job: %w", err)
	}
	return nil
}

func (s *Service) UnsaveJob(ctx context.Context, jobID, userID uuid.UUID) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND job_id = ?", userID, jobID).
		Delete(&models.SavedJob{}).Error
	if err != nil {
		return fmt.Errorf("unsave job: %w", err)
	}
	return nil
}

func (s *Service) ListSavedJobs(ctx context.Context, userID uuid.UUID) ([]models.Job, error) {
	var saved []models.SavedJob
	err := s.db.WithContext(ctx).
		Preload("Job").
		Preload("Job.Poster").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&saved).Error
	if err != nil {
		return nil, fmt.Errorf("list saved jobs: %w", err)
	}
	jobs := make([]models.Job, 0, len(saved))
	for _, sj := range saved {
		if sj.Job != nil {
			jobs = append(jobs, *sj.Job)
		}
	}
	return jobs, nil
}
