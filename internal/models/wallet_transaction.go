package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WalletTrxType string

const (
	WalletTrxPayout WalletTrxType = "payout" // worker payout on payment release
)

// WalletTransaction is the append-only ledger behind User.Balance. A job pays
// out at most once.
type WalletTransaction struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      uuid.UUID     `gorm:"type:uuid;index;not null" json:"userId"`
	Amount      int64         `gorm:"not null" json:"amount"`
	Type        WalletTrxType `gorm:"type:varchar(20);not null;uniqueIndex:idx_wallet_ref_type" json:"type"`
	Description string        `gorm:"type:text" json:"description"`
	JobID       uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex:idx_wallet_ref_type" json:"jobId"`
	CreatedAt   time.Time     `json:"createdAt"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
}

func (w *WalletTransaction) BeforeCreate(tx *gorm.DB) (err error) {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return
}
