package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/campusgig/campusgig-backend/internal/apperr"
	"github.com/campusgig/campusgig-backend/internal/metrics"
	"github.com/campusgig/campusgig-backend/internal/models"
	"github.com/campusgig/campusgig-backend/internal/services/notify"
	"github.com/campusgig/campusgig-backend/internal/services/wallet"
)

const DefaultCurrency = "INR"

// PlatformFee is the commission kept from price, rounded to the nearest unit.
func PlatformFee(price int64) int64 {
	return (price*models.PlatformFeePercent + 50) / 100
}

// CreatePaymentOrder opens a gateway order for an assigned job and records the
// payment as held (PENDING). Calling it again while the order is still pending
// returns the existing order.
func (s *Service) CreatePaymentOrder(ctx context.Context, jobID, posterID uuid.UUID) (*models.Job, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.PostedBy != posterID {
		return nil, apperr.Forbidden("only the job poster can pay for this job")
	}
	if job.AcceptedBy == nil {
		return nil, apperr.InvalidState("no bid accepted yet")
	}
	switch job.Payment.Status {
	case models.PaymentStatusPending:
		if job.Payment.OrderID != "" {
			return job, nil
		}
	case models.PaymentStatusReleased:
		return nil, apperr.InvalidState("payment already released")
	}
	if s.payments == nil {
		return nil, fmt.Errorf("payment provider not configured")
	}

	orderID, err := s.payments.CreateOrder(ctx, job.Price, DefaultCurrency, "job_"+job.ID.String())
	if err != nil {
		return nil, fmt.Errorf("create payment order: %w", err)
	}
	if err := s.AttachPaymentOrder(ctx, job, orderID, DefaultCurrency); err != nil {
		return nil, err
	}
	return job, nil
}

// AttachPaymentOrder records orderID as the job's held payment.
func (s *Service) AttachPaymentOrder(ctx context.Context, job *models.Job, orderID, currency string) error {
	fee := PlatformFee(job.Price)
	payment := models.JobPayment{
		OrderID:      orderID,
		Currency:     currency,
		HeldAmount:   job.Price,
		PlatformFee:  fee,
		WorkerPayout: job.Price - fee,
		Status:       models.PaymentStatusPending,
	}
	res := s.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND payment_status <> ?", job.ID, models.PaymentStatusReleased).
		Updates(map[string]interface{}{
			"payment_order_id":      payment.OrderID,
			"payment_currency":      payment.Currency,
			"payment_held_amount":   payment.HeldAmount,
			"payment_platform_fee":  payment.PlatformFee,
			"payment_worker_payout": payment.WorkerPayout,
			"payment_captured":      false,
			"payment_status":        payment.Status,
		})
	if res.Error != nil {
		return fmt.Errorf("attach payment order: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.InvalidState("payment already released")
	}
	job.Payment = payment
	return nil
}

// CapturePayment marks the order's payment as captured by the gateway. The money
// stays held until the poster releases it. Unknown orders are ignored.
func (s *Service) CapturePayment(ctx context.Context, orderID, paymentID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Job{}).
		Where("payment_order_id = ? AND payment_status = ?", orderID, models.PaymentStatusPending).
		Updates(map[string]interface{}{
			"payment_payment_id": paymentID,
			"payment_captured":   true,
		})
	if res.Error != nil {
		return false, fmt.Errorf("capture payment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		s.log.Warn("capture for unknown or settled order", zap.String("order_id", orderID))
		return false, nil
	}
	return true, nil
}

// ReleasePayment pays the held amount out to the student, crediting the worker
// payout to their wallet. It needs a PENDING payment and a completed or rated
// assignment.
func (s *Service) ReleasePayment(ctx context.Context, jobID, posterID uuid.UUID) (*models.Job, error) {
	var (
		job      *models.Job
		assigned models.AssignedJob
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		job, err = LockJob(tx, jobID)
		if err != nil {
			return err
		}
		if job.PostedBy != posterID {
			return apperr.Forbidden("only the job poster can release payment")
		}
		if err := tx.First(&assigned, "job_id = ?", job.ID).Error; err != nil {
			return apperr.FromStore(err, "assigned job")
		}
		if job.Payment.Status != models.PaymentStatusPending {
			return apperr.NoPendingPayment("no pending payment to release")
		}
		if !CanAdvance(assigned.Status, models.AssignmentPaid) {
			return apperr.InvalidState("job must be completed before payment is released")
		}

		now := time.Now()
		res := tx.Model(&models.Job{}).
			Where("id = ? AND payment_status = ?", job.ID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"payment_status":      models.PaymentStatusReleased,
				"payment_released_at": now,
				"status":              models.JobStatusPaid,
			})
		if res.Error != nil {
			return fmt.Errorf("release payment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.NoPendingPayment("no pending payment to release")
		}
		if err := tx.Model(&models.AssignedJob{}).Where("id = ?", assigned.ID).
			Update("status", models.AssignmentPaid).Error; err != nil {
			return fmt.Errorf("mark assignment paid: %w", err)
		}
		if job.Payment.WorkerPayout > 0 {
			if err := wallet.CreditPayout(tx, assigned.StudentID, job.Payment.WorkerPayout, job.ID, "payout: "+job.Title); err != nil {
				return err
			}
		}

		job.Payment.Status = models.PaymentStatusReleased
		job.Payment.ReleasedAt = &now
		job.Status = models.JobStatusPaid
		return recordActivity(tx, posterID, job, models.ActivityPaid)
	})
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(models.JobStatusPaid)).Inc()

	s.submit(notify.KindPaymentReleased, assigned.StudentID, map[string]string{
		"jobId":    job.ID.String(),
		"jobTitle": job.Title,
		"amount":   itoa(job.Payment.WorkerPayout),
	})
	return job, nil
}

func (s *Service) loadJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := s.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "job")
	}
	return &job, nil
}
