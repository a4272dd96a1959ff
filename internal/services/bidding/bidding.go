// Package bidding accepts student bids on open jobs and lets the poster pick a winner.
package bidding

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/campusgig/campusgig-backend/internal/apperr"
	"github.com/campusgig/campusgig-backend/internal/metrics"
	"github.com/campusgig/campusgig-backend/internal/models"
	"github.com/campusgig/campusgig-backend/internal/services/lifecycle"
	"github.com/campusgig/campusgig-backend/internal/services/notify"
)

type Service struct {
	db       *gorm.DB
	notifier notify.Sink
	log      *zap.Logger
}

func NewService(db *gorm.DB, notifier notify.Sink, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, notifier: notifier, log: log.Named("bidding")}
}

type PlaceBidInput struct {
	BidAmount int64  `json:"bidAmount"`
	Message   string `json:"message"`
}

// PlaceBid stores a bid in the next free slot of the job. The slot comes from a
// guarded increment of jobs.bid_count, so no more than MaxBidsPerJob bids can
// ever exist for a job, whatever their status.
func (s *Service) PlaceBid(ctx context.Context, jobID, studentID uuid.UUID, in PlaceBidInput) (*models.Bid, error) {
	if in.BidAmount <= 0 {
		return nil, apperr.Validation("bid amount is required and must be positive")
	}

	var (
		bid     *models.Bid
		job     models.Job
		student models.User
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
			return apperr.FromStore(err, "job")
		}
		if job.PostedBy == studentID {
			return apperr.Forbidden("you cannot bid on your own job")
		}
		if job.AcceptedBy != nil || job.Status != models.JobStatusOpen {
			return apperr.InvalidState("job is no longer open for bids")
		}
		if err := tx.First(&student, "id = ?", studentID).Error; err != nil {
			return apperr.FromStore(err, "student")
		}

		res := tx.Model(&models.Job{}).
			Where("id = ? AND bid_count < ? AND accepted_by IS NULL", jobID, models.MaxBidsPerJob).
			UpdateColumn("bid_count", gorm.Expr("bid_count + 1"))
		if res.Error != nil {
			return fmt.Errorf("reserve bid slot: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return s.slotRefusal(tx, jobID)
		}

		var slot int
		if err := tx.Model(&models.Job{}).Select("bid_count").Where("id = ?", jobID).Scan(&slot).Error; err != nil {
			return fmt.Errorf("read bid slot: %w", err)
		}

		bid = &models.Bid{
			JobID:     jobID,
			StudentID: studentID,
			BidAmount: in.BidAmount,
			Message:   in.Message,
			Slot:      slot,
			Status:    models.BidStatusPending,
		}
		if err := tx.Create(bid).Error; err != nil {
			return fmt.Errorf("create bid: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperr.ErrCapacityExceeded) {
			metrics.BidsRejected.WithLabelValues("capacity").Inc()
		}
		return nil, err
	}
	metrics.BidsPlaced.Inc()

	if s.notifier != nil {
		s.notifier.Submit(notify.New(notify.KindBidPlaced, job.PostedBy, map[string]string{
			"jobId":       job.ID.String(),
			"jobTitle":    job.Title,
			"studentName": student.Name,
			"bidAmount":   fmt.Sprint(in.BidAmount),
			"message":     in.Message,
		}))
	}
	return bid, nil
}

// slotRefusal explains why the guarded increment matched no row.
func (s *Service) slotRefusal(tx *gorm.DB, jobID uuid.UUID) error {
	var job models.Job
	if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
		return apperr.FromStore(err, "job")
	}
	if job.AcceptedBy != nil {
		return apperr.InvalidState("job is no longer open for bids")
	}
	return apperr.CapacityExceeded(fmt.Sprintf("maximum of %d bids reached for this job", models.MaxBidsPerJob))
}

// ListBids returns the job's bids, lowest amount first and ties in placement
// order. Only the poster may list them.
func (s *Service) ListBids(ctx context.Context, jobID, requesterID uuid.UUID) ([]models.Bid, error) {
	var job models.Job
	if err := s.db.WithContext(ctx).Select("id", "posted_by").First(&job, "id = ?", jobID).Error; err != nil {
		return nil, apperr.FromStore(err, "job")
	}
	if job.PostedBy != requesterID {
		return nil, apperr.Forbidden("only the job poster can view bids")
	}

	var bids []models.Bid
	err := s.db.WithContext(ctx).
		Preload("Student").
		Where("job_id = ?", jobID).
		Order("bid_amount ASC").
		Order("slot ASC").
		Find(&bids).Error
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	return bids, nil
}

type Selection struct {
	Bid        *models.Bid         `json:"bid"`
	Assignment *models.AssignedJob `json:"assignedJob"`
	// Replayed is set when the same bid had already been selected.
	Replayed bool `json:"replayed"`
}

// SelectBid accepts one bid, rejects its siblings and assigns the job to the
// bidder, all in one transaction. Selecting the already selected bid again
// returns the existing assignment.
func (s *Service) SelectBid(ctx context.Context, jobID, bidID, requesterID uuid.UUID) (*Selection, error) {
	var (
		out = &Selection{}
		job *models.Job
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		job, err = lifecycle.LockJob(tx, jobID)
		if err != nil {
			return err
		}
		if job.PostedBy != requesterID {
			return apperr.Forbidden("only the job poster can select a bid")
		}

		var bid models.Bid
		if err := tx.First(&bid, "id = ? AND job_id = ?", bidID, jobID).Error; err != nil {
			return apperr.FromStore(err, "bid")
		}
		out.Bid = &bid

		var existing models.AssignedJob
		if err := tx.Where("job_id = ?", jobID).Limit(1).Find(&existing).Error; err != nil {
			return fmt.Errorf("load assignment: %w", err)
		}
		if existing.ID != uuid.Nil {
			if bid.Status == models.BidStatusAccepted && existing.StudentID == bid.StudentID {
				out.Assignment = &existing
				out.Replayed = true
				return nil
			}
			return apperr.InvalidState("a bid has already been selected for this job")
		}

		res := tx.Model(&models.Bid{}).
			Where("id = ? AND status = ?", bid.ID, models.BidStatusPending).
			Update("status", models.BidStatusAccepted)
		if res.Error != nil {
			return fmt.Errorf("accept bid: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.InvalidState("bid is no longer pending")
		}
		bid.Status = models.BidStatusAccepted

		if err := tx.Model(&models.Bid{}).
			Where("job_id = ? AND id <> ?", jobID, bid.ID).
			Update("status", models.BidStatusRejected).Error; err != nil {
			return fmt.Errorf("reject sibling bids: %w", err)
		}

		var student models.User
		if err := tx.First(&student, "id = ?", bid.StudentID).Error; err != nil {
			return apperr.FromStore(err, "student")
		}
		out.Assignment, err = lifecycle.Assign(tx, job, &student, bid.BidAmount)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !out.Replayed && s.notifier != nil {
		s.notifier.Submit(notify.New(notify.KindBidAccepted, out.Bid.StudentID, map[string]string{
			"jobId":     job.ID.String(),
			"jobTitle":  job.Title,
			"bidAmount": fmt.Sprint(out.Bid.BidAmount),
		}))
	}
	return out, nil
}

type MyBid struct {
	models.Bid
	AssignedJob *models.AssignedJob `json:"assignedJob"`
}

// ListMyBids returns the student's bids, newest first, each with the assignment
// it led to, plus total earnings over all of the student's assignments.
func (s *Service) ListMyBids(ctx context.Context, studentID uuid.UUID) ([]MyBid, int64, error) {
	var bids []models.Bid
	err := s.db.WithContext(ctx).
		Preload("Job").
		Preload("Job.Poster").
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&bids).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list my bids: %w", err)
	}

	var assigned []models.AssignedJob
	if err := s.db.WithContext(ctx).Where("student_id = ?", studentID).Find(&assigned).Error; err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}

	byJob := make(map[uuid.UUID]*models.AssignedJob, len(assigned))
	var total int64
	for i := range assigned {
		byJob[assigned[i].JobID] = &assigned[i]
		total += assigned[i].BidAmount
	}

	out := make([]MyBid, 0, len(bids))
	for _, b := range bids {
		out = append(out, MyBid{Bid: b, AssignedJob: byJob[b.JobID]})
	}
	return out, total, nil
}
