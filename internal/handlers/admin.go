package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/campusgig/campusgig-backend/internal/apperr"
	"github.com/campusgig/campusgig-backend/internal/models"
	"github.com/campusgig/campusgig-backend/internal/services/stats"
)

// AdminHandler serves read-only reporting views. Counters shown here are
// recomputed by aggregation, not read from the cached columns.
type AdminHandler struct {
	DB    *gorm.DB
	Stats *stats.Service
	Log   *zap.Logger
}

func NewAdminHandler(db *gorm.DB, st *stats.Service, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{DB: db, Stats: st, Log: log.Named("admin")}
}

func (h *AdminHandler) Routes(r fiber.Router, guard fiber.Handler) {
	g := r.Group("/admin", guard)
	g.Get("/users", h.Users)
	g.Get("/jobs", h.Jobs)
	g.Get("/user/:id", h.User)
	g.Get("/user/:id/jobs", h.UserJobs)
	g.Post("/user/:id/reconcile", h.Reconcile)
}

func (h *AdminHandler) Users(c *fiber.Ctx) error {
	users := []models.User{}
	if err := h.DB.WithContext(c.UserContext()).Order("created_at DESC").Find(&users).Error; err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, users)
}

type adminJob struct {
	models.Job
	AssignmentStatus models.AssignmentStatus `json:"assignmentStatus"`
	AssignedJobID    *uuid.UUID              `json:"assignedJobId"`
}

// Jobs lists every job with its assignment status; unassigned jobs report
// "pending".
func (h *AdminHandler) Jobs(c *fiber.Ctx) error {
	db := h.DB.WithContext(c.UserContext())

	var jobs []models.Job
	if err := db.Preload("Poster").Preload("Accepted").Order("created_at DESC").Find(&jobs).Error; err != nil {
		return fail(c, h.Log, err)
	}

	ids := make([]uuid.UUID, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	var assigned []models.AssignedJob
	if len(ids) > 0 {
		if err := db.Where("job_id IN ?", ids).Find(&assigned).Error; err != nil {
			return fail(c, h.Log, err)
		}
	}
	byJob := make(map[uuid.UUID]models.AssignedJob, len(assigned))
	for _, a := range assigned {
		byJob[a.JobID] = a
	}

	out := make([]adminJob, 0, len(jobs))
	for _, j := range jobs {
		row := adminJob{Job: j, AssignmentStatus: "pending"}
		if a, found := byJob[j.ID]; found {
			id := a.ID
			row.AssignmentStatus = a.Status
			row.AssignedJobID = &id
		}
		out = append(out, row)
	}
	return ok(c, out)
}

func (h *AdminHandler) loadUser(c *fiber.Ctx) (*models.User, error) {
	id, err := uuidParam(c, "id")
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := h.DB.WithContext(c.UserContext()).First(&u, "id = ?", id).Error; err != nil {
		return nil, apperr.FromStore(err, "user")
	}
	return &u, nil
}

func (h *AdminHandler) User(c *fiber.Ctx) error {
	u, err := h.loadUser(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx := c.UserContext()
	agg, err := h.Stats.Aggregate(ctx, u.ID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	cached, err := h.Stats.Cached(ctx, u.ID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, fiber.Map{
		"user":    u,
		"stats":   agg,
		"drifted": stats.Drifted(cached, agg),
	})
}

// UserJobs groups the user's jobs into posted, accepted (in progress) and
// completed (completed, rated or paid).
func (h *AdminHandler) UserJobs(c *fiber.Ctx) error {
	u, err := h.loadUser(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	db := h.DB.WithContext(c.UserContext())

	posted := []models.Job{}
	if err := db.Preload("Accepted").Where("posted_by = ?", u.ID).Order("created_at DESC").Find(&posted).Error; err != nil {
		return fail(c, h.Log, err)
	}

	var assigned []models.AssignedJob
	if err := db.Preload("Job").Preload("Job.Poster").Where("student_id = ?", u.ID).Order("assigned_at DESC").Find(&assigned).Error; err != nil {
		return fail(c, h.Log, err)
	}

	accepted := []models.AssignedJob{}
	completed := []models.AssignedJob{}
	for _, a := range assigned {
		if a.Status == models.AssignmentAccepted {
			accepted = append(accepted, a)
		} else {
			completed = append(completed, a)
		}
	}

	return ok(c, fiber.Map{
		"posted":    posted,
		"accepted":  accepted,
		"completed": completed,
	})
}

// Reconcile overwrites the user's cached counters with the aggregate.
func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	u, err := h.loadUser(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	counters, err := h.Stats.Reconcile(c.UserContext(), u.ID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.Log.Info("counters reconciled", zap.Stringer("user", u.ID))
	return ok(c, counters)
}
