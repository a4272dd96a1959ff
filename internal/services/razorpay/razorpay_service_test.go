package razorpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)

		var body OrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 50000, body.Amount, "amount is sent in paise")
		assert.Equal(t, "INR", body.Currency)
		assert.Equal(t, "job_1", body.Receipt)

		_ = json.NewEncoder(w).Encode(OrderResponse{ID: "order_abc", Amount: body.Amount, Status: "created"})
	}))
	defer srv.Close()

	s := NewRazorpayService("key", "secret", "whsec", srv.URL)
	id, err := s.CreateOrder(context.Background(), 500, "INR", "job_1")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", id)
}

func TestCreateOrder_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too low"}}`))
	}))
	defer srv.Close()

	s := NewRazorpayService("key", "secret", "", srv.URL)
	_, err := s.CreateOrder(context.Background(), 0, "INR", "job_1")
	assert.ErrorContains(t, err, "amount too low")
}

func TestCreateOrder_MissingCredentials(t *testing.T) {
	_, err := NewRazorpayService("", "", "", "").CreateOrder(context.Background(), 10, "INR", "r")
	assert.Error(t, err)
}

func TestCreateOrder_Canceled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRazorpayService("key", "secret", "", srv.URL).CreateOrder(ctx, 10, "INR", "r")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestValidateSignature(t *testing.T) {
	s := NewRazorpayService("key", "secret", "whsec", "")
	body := []byte(`{"event":"payment.captured"}`)

	assert.True(t, s.ValidateSignature(Sign("whsec", body), body))
	assert.False(t, s.ValidateSignature(Sign("other", body), body))
	assert.False(t, s.ValidateSignature("", body))
	assert.False(t, s.ValidateSignature(Sign("whsec", body), []byte(`{"event":"tampered"}`)))

	unset := NewRazorpayService("key", "secret", "", "")
	assert.False(t, unset.ValidateSignature(Sign("", body), body))
}

func TestParseWebhook(t *testing.T) {
	ev, err := ParseWebhook([]byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","amount":100}}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventPaymentCaptured, ev.Event)
	assert.Equal(t, "pay_1", ev.Payload.Payment.Entity.ID)
	assert.Equal(t, "order_1", ev.Payload.Payment.Entity.OrderID)

	_, err = ParseWebhook([]byte(`not json`))
	assert.Error(t, err)
}
