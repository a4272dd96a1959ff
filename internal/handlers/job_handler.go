package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campusgig/campusgig-backend/internal/services/bidding"
	"github.com/campusgig/campusgig-backend/internal/services/lifecycle"
	"github.com/campusgig/campusgig-backend/internal/services/stats"
)

type JobHandler struct {
	Jobs  *lifecycle.Service
	Bids  *bidding.Service
	Stats *stats.Service
	Log   *zap.Logger
}

func NewJobHandler(jobs *lifecycle.Service, bids *bidding.Service, st *stats.Service, log *zap.Logger) *JobHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &JobHandler{Jobs: jobs, Bids: bids, Stats: st, Log: log.Named("jobs")}
}

// Register mounts the job routes on an authenticated router.
func (h *JobHandler) Register(r fiber.Router) {
	jobs := r.Group("/jobs")

	jobs.Post("/", h.Create)
	jobs.Get("/", h.ListOpen)
	jobs.Get("/my", h.ListMine)
	jobs.Get("/accepted", h.ListAccepted)
	jobs.Get("/my-bids", h.ListMyBids)
	jobs.Get("/me", h.MyStats)
	jobs.Get("/activities/me", h.MyActivities)

	jobs.Get("/:id", h.Get)
	jobs.Post("/:id/bid", h.PlaceBid)
	jobs.Get("/:id/bids", h.ListBids)
	jobs.Put("/:jobId/select/:bidId", h.SelectBid)
	jobs.Put("/:id/accept", h.Accept)
	jobs.Put("/:id/complete", h.Complete)
	jobs.Post("/:id/rate", h.Rate)
	jobs.Post("/:id/pass", h.Pass)
	jobs.Post("/:jobId/release-payment", h.ReleasePayment)
}

func (h *JobHandler) Create(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}

	var req lifecycle.PostJobInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	job, err := h.Jobs.PostJob(c.UserContext(), uid, req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return created(c, "Job posted", job)
}

func (h *JobHandler) ListOpen(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}

	category := c.Query("category")
	if category == "" {
		category = c.Query("role")
	}
	jobs, err := h.Jobs.ListOpenJobs(c.UserContext(), uid, lifecycle.ListFilter{
		Search:   c.Query("search"),
		Category: category,
		Limit:    c.QueryInt("limit", 50),
		Offset:   c.QueryInt("offset", 0),
	})
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, jobs)
}

func (h *JobHandler) ListMine(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	jobs, err := h.Jobs.ListMyPostedJobs(c.UserContext(), uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, jobs)
}

func (h *JobHandler) ListAccepted(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	assigned, err := h.Jobs.ListAcceptedJobs(c.UserContext(), uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, assigned)
}

func (h *JobHandler) ListMyBids(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	bids, earnings, err := h.Bids.ListMyBids(c.UserContext(), uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, fiber.Map{
		"bids":          bids,
		"totalEarnings": earnings,
	})
}

// MyStats answers with the aggregated counters. A mismatch with the cached
// counters is logged; the aggregate is what the caller sees.
func (h *JobHandler) MyStats(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	ctx := c.UserContext()

	agg, err := h.Stats.Aggregate(ctx, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	if cached, err := h.Stats.Cached(ctx, uid); err == nil && stats.Drifted(cached, agg) {
		h.Log.Warn("cached counters drifted",
			zap.Stringer("user", uid),
			zap.Int64("cached_posted", cached.JobsPosted),
			zap.Int64("cached_accepted", cached.JobsAccepted),
			zap.Int64("posted", agg.JobsPosted),
			zap.Int64("accepted", agg.JobsAccepted))
	}
	return ok(c, agg)
}

func (h *JobHandler) MyActivities(c *fiber.Ctx) error {
	uid, err := getUserUUID(c)
	if err != nil {
		return fail(c, h.Log, err)
	}
	acts, err := h.Jobs.ListActivities(c.UserContext(), uid, c.QueryInt("limit", 20))
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, acts)
}

func (h *JobHandler) Get(c *fiber.Ctx) error {
	if _, err := getUserUUID(c); err != nil {
		return fail(c, h.Log, err)
	}
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	job, err := h.Jobs.GetJob(c.UserContext(), id)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, job)
}

func (h *JobHandler) PlaceBid(c *fiber.Ctx) error {
	uid, jobID, err := authAndParam(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}

	var req bidding.PlaceBidInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	bid, err := h.Bids.PlaceBid(c.UserContext(), jobID, uid, req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return created(c, "Bid placed", bid)
}

func (h *JobHandler) ListBids(c *fiber.Ctx) error {
	uid, jobID, err := authAndParam(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	bids, err := h.Bids.ListBids(c.UserContext(), jobID, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, bids)
}

func (h *JobHandler) SelectBid(c *fiber.Ctx) error {
	uid, jobID, err := authAndParam(c, "jobId")
	if err != nil {
		return fail(c, h.Log, err)
	}
	bidID, err := uuidParam(c, "bidId")
	if err != nil {
		return fail(c, h.Log, err)
	}

	sel, err := h.Bids.SelectBid(c.UserContext(), jobID, bidID, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, sel)
}

func (h *JobHandler) Accept(c *fiber.Ctx) error {
	uid, jobID, err := authAndParam(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	assigned, err := h.Jobs.AcceptJobDirectly(c.UserContext(), jobID, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, assigned)
}

// Complete accepts either an assignment id or a job id. A failed notification
// still answers 200 with notification.success=false.
func (h *JobHandler) Complete(c *fiber.Ctx) error {
	uid, id, err := authAndParam(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	done, err := h.Jobs.CompleteJob(c.UserContext(), id, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, done)
}

func (h *JobHandler) Rate(c *fiber.Ctx) error {
	uid, id, err := authAndParam(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}

	var req lifecycle.RateInput
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	assigned, err := h.Jobs.RateJob(c.UserContext(), id, uid, req)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return ok(c, assigned)
}

func (h *JobHandler) Pass(c *fiber.Ctx) error {
	uid, jobID, err := authAndParam(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}
	if err := h.Jobs.PassJob(c.UserContext(), jobID, uid); err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Job passed",
	})
}

func (h *JobHandler) ReleasePayment(c *fiber.Ctx) error {
	uid, jobID, err := authAndParam(c, "jobId")
	if err != nil {
		return fail(c, h.Log, err)
	}
	job, err := h.Jobs.ReleasePayment(c.UserContext(), jobID, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Payment released",
		"data":    job,
	})
}
