package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/campusgig/campusgig-backend/internal/services/lifecycle"
	"github.com/campusgig/campusgig-backend/internal/services/razorpay"
)

type PaymentHandler struct {
	Jobs     *lifecycle.Service
	Razorpay *razorpay.RazorpayService
	Log      *zap.Logger
}

func NewPaymentHandler(jobs *lifecycle.Service, rz *razorpay.RazorpayService, log *zap.Logger) *PaymentHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PaymentHandler{Jobs: jobs, Razorpay: rz, Log: log.Named("payments")}
}

// CreatePayment opens (or returns the pending) gateway order for an assigned
// job. The response carries what the checkout widget needs.
func (h *PaymentHandler) CreatePayment(c *fiber.Ctx) error {
	uid, jobID, err := authAndParam(c, "id")
	if err != nil {
		return fail(c, h.Log, err)
	}

	job, err := h.Jobs.CreatePaymentOrder(c.UserContext(), jobID, uid)
	if err != nil {
		return fail(c, h.Log, err)
	}

	keyID := ""
	if h.Razorpay != nil {
		keyID = h.Razorpay.KeyID
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"orderId":      job.Payment.OrderID,
			"amount":       job.Payment.HeldAmount,
			"currency":     job.Payment.Currency,
			"platformFee":  job.Payment.PlatformFee,
			"workerPayout": job.Payment.WorkerPayout,
			"keyId":        keyID,
			"job":          job,
		},
	})
}

// HandleWebhook verifies the gateway signature over the raw body before
// looking at the payload. Events other than payment.captured are acknowledged
// and ignored.
func (h *PaymentHandler) HandleWebhook(c *fiber.Ctx) error {
	signature := c.Get("X-Razorpay-Signature")
	if signature == "" {
		return badRequest(c, "Missing signature")
	}

	body := c.Body()
	if h.Razorpay == nil || !h.Razorpay.ValidateSignature(signature, body) {
		return badRequest(c, "Invalid signature")
	}

	ev, err := razorpay.ParseWebhook(body)
	if err != nil {
		return badRequest(c, "Invalid payload")
	}

	if ev.Event != razorpay.EventPaymentCaptured {
		h.Log.Debug("webhook ignored", zap.String("event", ev.Event))
		return c.JSON(fiber.Map{"success": true})
	}

	entity := ev.Payload.Payment.Entity
	captured, err := h.Jobs.CapturePayment(c.UserContext(), entity.OrderID, entity.ID)
	if err != nil {
		return fail(c, h.Log, err)
	}
	h.Log.Info("payment captured",
		zap.String("order_id", entity.OrderID),
		zap.String("payment_id", entity.ID),
		zap.Bool("matched", captured))

	return c.JSON(fiber.Map{"success": true})
}
