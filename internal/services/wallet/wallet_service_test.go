package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/campusgig/campusgig-backend/internal/models"
	"github.com/campusgig/campusgig-backend/internal/testutil"
)

func TestCreditPayout(t *testing.T) {
	gdb := testutil.NewDB(t)
	ctx := context.Background()
	student := testutil.CreateUser(t, gdb, "Student", models.RoleFreelancer)
	jobA, jobB := uuid.New(), uuid.New()

	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		return CreditPayout(tx, student.ID, 450, jobA, "payout: poster design")
	}))
	require.NoError(t, gdb.Transaction(func(tx *gorm.DB) error {
		return CreditPayout(tx, student.ID, 90, jobB, "payout: notes")
	}))

	svc := NewWalletService(gdb)
	sum, err := svc.Summary(ctx, student.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 540, sum.Balance)
	require.Len(t, sum.Transactions, 2)

	total, err := svc.LedgerTotal(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, sum.Balance, total)
}

func TestCreditPayout_Rejections(t *testing.T) {
	gdb := testutil.NewDB(t)
	student := testutil.CreateUser(t, gdb, "Student", models.RoleFreelancer)
	job := uuid.New()

	assert.Error(t, CreditPayout(gdb, student.ID, 0, job, "zero"))
	assert.Error(t, CreditPayout(gdb, uuid.New(), 10, job, "ghost"))

	require.NoError(t, CreditPayout(gdb, student.ID, 10, job, "first"))
	err := gdb.Transaction(func(tx *gorm.DB) error {
		return CreditPayout(tx, student.ID, 10, job, "again")
	})
	assert.Error(t, err, "a job pays out once")

	total, err := NewWalletService(gdb).LedgerTotal(context.Background(), student.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 10, total)

	var u models.User
	require.NoError(t, gdb.First(&u, "id = ?", student.ID).Error)
	assert.EqualValues(t, 10, u.Balance, "failed credit rolled back")
}
