// Package wallet keeps the payout ledger and the balance it backs.
package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusgig/campusgig-backend/internal/models"
)

type WalletService struct {
	DB *gorm.DB
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{DB: db}
}

// CreditPayout adds amount to the student's balance and writes the ledger
// entry for jobID. It must run inside the caller's transaction.
func CreditPayout(tx *gorm.DB, userID uuid.UUID, amount int64, jobID uuid.UUID, description string) error {
	if amount <= 0 {
		return errors.New("amount to credit must be greater than zero")
	}

	result := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Update("balance", gorm.Expr("balance + ?", amount))
	if result.Error != nil {
		return fmt.Errorf("credit balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user not found for id %s", userID)
	}

	ledger := models.WalletTransaction{
		UserID:      userID,
		Amount:      amount,
		Type:        models.WalletTrxPayout,
		Description: description,
		JobID:       jobID,
	}
	if err := tx.Create(&ledger).Error; err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return nil
}

type Summary struct {
	Balance      int64                      `json:"balance"`
	Transactions []models.WalletTransaction `json:"transactions"`
}

// Summary returns the stored balance with the ledger, newest first.
func (s *WalletService) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	db := s.DB.WithContext(ctx)

	var u models.User
	if err := db.Select("id", "balance").First(&u, "id = ?", userID).Error; err != nil {
		return nil, fmt.Errorf("load balance: %w", err)
	}

	out := &Summary{Balance: u.Balance, Transactions: []models.WalletTransaction{}}
	if err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&out.Transactions).Error; err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	return out, nil
}

// LedgerTotal sums the ledger; it equals the stored balance unless a write was lost.
func (s *WalletService) LedgerTotal(ctx context.Context, userID uuid.UUID) (int64, error) {
	var total int64
	err := s.DB.WithContext(ctx).Model(&models.WalletTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return total, nil
}
