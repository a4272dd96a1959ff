package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

type RazorpayService struct {
	Client        *http.Client
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
}

func NewRazorpayService(keyID, keySecret, webhookSecret, baseURL string) *RazorpayService {
	if baseURL == "" {
		baseURL = "https://api.razorpay.com/v1"
	}
	return &RazorpayService{
		Client:        &http.Client{Timeout: 15 * time.Second},
		KeyID:         keyID,
		KeySecret:     keySecret,
		WebhookSecret: webhookSecret,
		BaseURL:       baseURL,
	}
}

type OrderRequest struct {
	Amount         int64  `json:"amount"` // smallest currency unit (paise)
	Currency       string `json:"currency"`
	Receipt        string `json:"receipt"`
	PartialPayment bool   `json:"partial_payment"`
}

type OrderResponse struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder opens an order for amount whole currency units and returns its id.
func (s *RazorpayService) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (string, error) {
	order, err := s.createOrder(ctx, OrderRequest{
		Amount:   amount * 100,
		Currency: currency,
		Receipt:  receipt,
	})
	if err != nil {
		return "", err
	}
	return order.ID, nil
}

func (s *RazorpayService) createOrder(ctx context.Context, body OrderRequest) (*OrderResponse, error) {
	if s.KeyID == "" || s.KeySecret == "" {
		return nil, errors.New("razorpay credentials not configured")
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/orders", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(s.KeyID, s.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var apiErr errorResponse
		if json.Unmarshal(bodyBytes, &apiErr) == nil && apiErr.Error.Description != "" {
			return nil, fmt.Errorf("razorpay error: %s", apiErr.Error.Description)
		}
		return nil, fmt.Errorf("razorpay error: status %d", resp.StatusCode)
	}

	var order OrderResponse
	if err := json.Unmarshal(bodyBytes, &order); err != nil {
		return nil, fmt.Errorf("failed to parse response: %v", err)
	}
	if order.ID == "" {
		return nil, errors.New("razorpay error: order id missing")
	}
	return &order, nil
}

// ValidateSignature checks the X-Razorpay-Signature header: hex HMAC-SHA256 of
// the raw body keyed with the webhook secret.
func (s *RazorpayService) ValidateSignature(incomingSig string, rawBody []byte) bool {
	if s.WebhookSecret == "" || incomingSig == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(s.WebhookSecret, rawBody)), []byte(incomingSig))
}

func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Amount  int64  `json:"amount"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

const EventPaymentCaptured = "payment.captured"

func ParseWebhook(rawBody []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(rawBody, &ev); err != nil {
		return nil, fmt.Errorf("failed to parse webhook: %v", err)
	}
	return &ev, nil
}
