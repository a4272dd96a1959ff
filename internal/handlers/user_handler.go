package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/campusgig/campusgig-backend/internal/apperr"
	"github.com/campusgig/campusgig-backend/internal/models"
	"github.com/campusgig/campusgig-backend/internal/services/lifecycle"
	"github.com/campusgig/campusgig-backend/internal/services/stats"
	"github.com/campusgig/campusgig-backend/internal/services/wallet"
)

type UserHandler struct {
	DB     *gorm.DB
	Jobs   *lifecycle.Service
	Stats  *stats.Service
	Wallet *wallet.WalletService
	Log    *zap.Logger
}

func NewUserHandler(db *gorm.DB, jobs *lifecycle.Service, st *stats.Service, w *wallet.WalletService, log *zap.Logger) *UserHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserHandler{DB: db, Jobs: jobs, Stats: st, Wallet: w, Log: log.Named("users")}
}

func (h *UserHandler) Register(r fiber.Router) {
	users := r.Group("/users")

	users.Post("/save-job/:jobId", h.SaveJob)
	users.Delete("/unsave-job/:jobId", h.UnsaveJob)
	users.Get("/saved-jobs", h.SavedJobs)
	users.Get("/stats", h.MyStats)
	users.Get("/wallet", h.MyWallet)
	users.Get("/profile", h.Profile)
	users.Patch("/profile", h.UpdateProfile)
}

func (h *UserHandler) SaveJob(c *fiber.Ctx) error {
	uid, jobID, err := authAndParam(c, "jobId")
	if err != nil {
		return fail(c, h.Log, err)
	}
	if err := h.Jobs.SaveJob(c.UserContext(), jobID, uid); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Job saved"})
}

func (h *UserHandler) UnsaveJob(c *fiber.Ctx) error {
	uid, jobID, err := authAndParam(c, "jobId")
	if err != nil {
		return fail(c, h.Log, err)
	}
	if err := h.Jobs.UnsaveJob(c.UserContext(), jobID, uid); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Job removed from saved"})
}

func (h *UserHandler) SavedJobs(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	jobs, err := h.Jobs.ListSavedJobs(c.UserContext(), uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, jobs)
}

func (h *UserHandler) MyStats(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	agg, err := h.Stats.Aggregate(c.UserContext(), uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, agg)
}

func (h *UserHandler) MyWallet(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	sum, err := h.Wallet.Summary(c.UserContext(), uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, sum)
}

func (h *UserHandler) Profile(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	var u models.User
	if err := h.DB.WithContext(c.UserContext()).First(&u, "id = ?", uid).Error; err != nil {
		return fail(c, h.Log, apperr.FromStore(err, "user"))
	}
	return ok(c, u)
}

type UpdateProfileReq struct {
	Name      *string  `json:"name"`
	CollegeID *string  `json:"collegeId"`
	Branch    *string  `json:"branch"`
	Year      *string  `json:"year"`
	Bio       *string  `json:"bio"`
	Skills    []string `json:"skills"`
}

// UpdateProfile applies only the fields present in the body. Counters, ratings
// and role are never writable here.
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}

	var req UpdateProfileReq
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	errs := FieldErrors{}
	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			errs.Add("name", "name is required")
		}
		updates["name"] = name
	}
	if req.Bio != nil {
		if len(*req.Bio) > 2000 {
			errs.Add("bio", "bio must be at most 2000 characters")
		}
		updates["bio"] = strings.TrimSpace(*req.Bio)
	}
	if req.CollegeID != nil {
		updates["college_id"] = strings.TrimSpace(*req.CollegeID)
	}
	if req.Branch != nil {
		updates["branch"] = strings.TrimSpace(*req.Branch)
	}
	if req.Year != nil {
		updates["year"] = strings.TrimSpace(*req.Year)
	}
	if req.Skills != nil {
		skills := make([]string, 0, len(req.Skills))
		for _, s := range req.Skills {
			if s = strings.TrimSpace(s); s != "" {
				skills = append(skills, s)
			}
		}
		updates["skills"] = datatypes.NewJSONSlice(skills)
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	db := h.DB.WithContext(c.UserContext())
	if len(updates) > 0 {
		if err := db.Model(&models.User{}).Where("id = ?", uid).Updates(updates).Error; err != nil {
			return fail(c, h.Log, err)
		}
	}

	var u models.User
	if err := db.First(&u, "id = ?", uid).Error; err != nil {
		return fail(c, h.Log, apperr.FromStore(err, "user"))
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Profile updated",
		"data":    u,
	})
}
