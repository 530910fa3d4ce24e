package app

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

const testWebhookSecret = "whsec_test_secret"

func newWebhookRouter() *gin.Engine {
	router := gin.New()
	router.POST("/api/stripe/webhook", StripeWebhook)
	return router
}

// signWebhookPayload produces a Stripe-Signature header the same way Stripe
// does: v1 = HMAC-SHA256(secret, "<timestamp>.<payload>").
func signWebhookPayload(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func webhookEvent(t *testing.T, eventType string, object map[string]any) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          "evt_test_1",
		"object":      "event",
		"api_version": "2024-06-20",
		"type":        eventType,
		"data": map[string]any{
			"object": object,
		},
	})
	if err != nil {
		t.Fatalf("failed to marshal event: %v", err)
	}
	return payload
}

func postWebhook(router *gin.Engine, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook", bytes.NewReader(payload))
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestWebhookInvalidSignature(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	router := newWebhookRouter()

	payload := webhookEvent(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_test_1",
		"client_reference_id": "user-1",
		"metadata":            map[string]string{"credits": "25"},
		"amount_total":        1000,
	})

	resp := postWebhook(router, payload, signWebhookPayload(payload, "whsec_wrong_secret", time.Now()))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature, got %d", resp.Code)
	}
}

func TestWebhookMissingSignature(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	router := newWebhookRouter()

	payload := webhookEvent(t, "checkout.session.completed", map[string]any{
		"id": "cs_test_1",
	})

	resp := postWebhook(router, payload, "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing signature, got %d", resp.Code)
	}
}

func TestWebhookStaleTimestamp(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	router := newWebhookRouter()

	payload := webhookEvent(t, "checkout.session.completed", map[string]any{
		"id": "cs_test_1",
	})

	resp := postWebhook(router, payload, signWebhookPayload(payload, testWebhookSecret, time.Now().Add(-time.Hour)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for stale timestamp, got %d", resp.Code)
	}
}

func TestWebhookUnhandledEventAcknowledged(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	router := newWebhookRouter()

	payload := webhookEvent(t, "payment_intent.succeeded", map[string]any{
		"id": "pi_test_1",
	})

	resp := postWebhook(router, payload, signWebhookPayload(payload, testWebhookSecret, time.Now()))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for unhandled event, got %d", resp.Code)
	}
}

func TestWebhookCompletedMissingUser(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	router := newWebhookRouter()

	payload := webhookEvent(t, "checkout.session.completed", map[string]any{
		"id":           "cs_test_1",
		"metadata":     map[string]string{"credits": "25"},
		"amount_total": 1000,
	})

	resp := postWebhook(router, payload, signWebhookPayload(payload, testWebhookSecret, time.Now()))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing client_reference_id, got %d", resp.Code)
	}
}

func TestWebhookCompletedInvalidCredits(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	router := newWebhookRouter()

	cases := map[string]map[string]string{
		"missing":  {},
		"not int":  {"credits": "lots"},
		"zero":     {"credits": "0"},
		"negative": {"credits": "-5"},
	}

	for name, metadata := range cases {
		t.Run(name, func(t *testing.T) {
			payload := webhookEvent(t, "checkout.session.completed", map[string]any{
				"id":                  "cs_test_1",
				"client_reference_id": "user-1",
				"metadata":            metadata,
				"amount_total":        1000,
			})

			resp := postWebhook(router, payload, signWebhookPayload(payload, testWebhookSecret, time.Now()))
			if resp.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 for %s credits, got %d", name, resp.Code)
			}
		})
	}
}

func TestWebhookCompletedAcknowledged(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	router := newWebhookRouter()

	payload := webhookEvent(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_test_25",
		"client_reference_id": "user-25",
		"metadata":            map[string]string{"credits": "25"},
		"amount_total":        1000,
	})

	resp := postWebhook(router, payload, signWebhookPayload(payload, testWebhookSecret, time.Now()))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid completed event, got %d", resp.Code)
	}
}

func TestWebhookRefundMissingPaymentIntent(t *testing.T) {
	t.Setenv("STRIPE_WEBHOOK_SECRET", testWebhookSecret)
	router := newWebhookRouter()

	payload := webhookEvent(t, "charge.refunded", map[string]any{
		"id": "ch_test_1",
	})

	resp := postWebhook(router, payload, signWebhookPayload(payload, testWebhookSecret, time.Now()))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for refund without payment intent, got %d", resp.Code)
	}
}
