package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/campusgig/campusgig-backend/internal/models"
)

type CategoryHandler struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewCategoryHandler(db *gorm.DB, log *zap.Logger) *CategoryHandler {
	return &CategoryHandler{DB: db, Log: log}
}

// GetCategories lists the distinct categories of jobs still open for bids.
func (h *CategoryHandler) GetCategories(c *fiber.Ctx) error {
	categories := []string{}

	err := h.DB.WithContext(c.UserContext()).
		Model(&models.Job{}).
		Where("status = ? AND category <> ''", models.JobStatusOpen).
		Distinct("category").
		Order("category").
		Pluck("category", &categories).
		Error
	if err != nil {
		return fail(c, h.Log, err)
	}

	return ok(c, categories)
}
