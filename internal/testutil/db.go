// Package testutil holds fixtures shared by the service and handler tests.
package testutil

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/campusgig/campusgig-backend/internal/models"
)

// NewDB opens a private in-memory SQLite database with every table migrated.
// The pool holds a single connection so concurrent transactions serialize the way
// row locks do on postgres.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(models.All()...))
	return gdb
}

// CreateUser inserts a user with a unique email.
func CreateUser(t testing.TB, gdb *gorm.DB, name string, role models.Role) *models.User {
	t.Helper()

	u := &models.User{
		Name:     name,
		Email:    fmt.Sprintf("%s-%s@campus.test", name, uuid.NewString()[:8]),
		Password: "x",
		Role:     role,
		IsActive: true,
	}
	require.NoError(t, gdb.Create(u).Error)
	return u
}

// CreateJob inserts an open job posted by poster. It does not touch the poster's counters.
func CreateJob(t testing.TB, gdb *gorm.DB, poster *models.User, title string, price int64) *models.Job {
	t.Helper()

	j := &models.Job{
		Title:       title,
		Description: title + " description",
		Category:    "design",
		Price:       price,
		PostedBy:    poster.ID,
		Status:      models.JobStatusOpen,
		Payment:     models.JobPayment{Status: models.PaymentStatusNone},
	}
	require.NoError(t, gdb.Create(j).Error)
	return j
}
