package app

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/NemoPS/youtube-comments-analyzer/app/config"
	"github.com/NemoPS/youtube-comments-analyzer/app/models"
	"github.com/NemoPS/youtube-comments-analyzer/auth"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/product"
	"github.com/stripe/stripe-go/v79/webhook"
)

// GetProducts returns the purchasable credit packs from the cached catalog.
func GetProducts(c *gin.Context) {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("products config load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}

	products, err := catalog.Products()
	if err != nil {
		log.Printf("product catalog fetch failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load products"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products":       products,
		"publishableKey": cfg.Stripe.PublishableKey,
	})
}

type checkoutRequest struct {
	ProductID string `json:"productId"`
}

// CreateCheckoutSession starts a Stripe Checkout Session for the authenticated
// user. The purchased credit count rides along in the session metadata and the
// user id in client_reference_id; the webhook reads both back.
func CreateCheckoutSession(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ProductID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing product id"})
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("stripe checkout config load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}

	frontendURL := strings.TrimRight(cfg.Stripe.FrontendURL, "/")
	if cfg.Stripe.SecretKey == "" || frontendURL == "" {
		log.Printf("missing Stripe config: secret=%t frontend_url=%t", cfg.Stripe.SecretKey != "", frontendURL != "")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
		return
	}

	stripeCustomerID, err := ensureStripeCustomer(c.Request.Context(), claims.Subject)
	if err != nil {
		log.Printf("ensureStripeCustomer failed for user=%s: %v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare billing"})
		return
	}

	prod, err := product.Get(req.ProductID, nil)
	if err != nil {
		log.Printf("stripe product lookup failed id=%s: %v", req.ProductID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to load product"})
		return
	}
	if prod.DefaultPrice == nil {
		log.Printf("stripe product missing default price id=%s", req.ProductID)
		c.JSON(http.StatusBadGateway, gin.H{"error": "product not purchasable"})
		return
	}

	params := &stripe.CheckoutSessionParams{
		Mode:     stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer: stripe.String(stripeCustomerID),
		PaymentMethodTypes: []*string{
			stripe.String("card"),
		},
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(prod.DefaultPrice.ID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(frontendURL + "/pending-credits?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(frontendURL + "/buy-credits?canceled=true"),
		ClientReferenceID: stripe.String(claims.Subject),
		Metadata: map[string]string{
			"credits": prod.Metadata["credits"],
		},
	}

	sess, err := session.New(params)
	if err != nil {
		log.Printf("stripe checkout session failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": sess.ID, "url": sess.URL})
}

// CheckPaymentStatus answers the pending-payment poller: has the webhook
// landed for this session yet? It never mutates credits; the Stripe session
// read is for diagnostic logging only.
func CheckPaymentStatus(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	sessionID := c.Query("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing session id"})
		return
	}

	if sess, err := session.Get(sessionID, nil); err != nil {
		log.Printf("payment status: stripe session lookup failed session=%s err=%v", sessionID, err)
	} else {
		log.Printf("payment status: user=%s session=%s payment_status=%s", claims.Subject, sessionID, sess.PaymentStatus)
	}

	processed, err := paymentProcessed(c.Request.Context(), sessionID)
	if err != nil {
		log.Printf("payment status lookup failed session=%s err=%v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check payment"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"webhookProcessed": processed})
}

// ListPurchases returns the authenticated user's purchase history.
func ListPurchases(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	purchases, err := listPurchases(c.Request.Context(), claims.Subject)
	if err != nil {
		log.Printf("list purchases failed user=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch purchases"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

// StripeWebhook handles asynchronous payment events. It is the authority for
// crediting: a checkout is only worth credits once this handler records it.
func StripeWebhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		log.Printf("stripe webhook read failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("stripe webhook config load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
		return
	}

	endpointSecret := cfg.Stripe.WebhookSecret
	if endpointSecret == "" {
		log.Printf("stripe webhook secret missing")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		body,
		sigHeader,
		endpointSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		log.Printf("stripe webhook signature failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		handleCheckoutCompleted(c, event)
	case "charge.refunded":
		handleChargeRefunded(c, event)
	default:
		// Intentionally ignore unhandled events.
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}

func handleCheckoutCompleted(c *gin.Context, event stripe.Event) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		log.Printf("stripe session unmarshal failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session payload"})
		return
	}

	userID := sess.ClientReferenceID
	if userID == "" {
		log.Printf("stripe session missing client_reference_id session=%s", sess.ID)
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing user id"})
		return
	}

	credits, err := strconv.Atoi(sess.Metadata["credits"])
	if err != nil || credits <= 0 {
		log.Printf("stripe session has invalid credits metadata session=%s value=%q", sess.ID, sess.Metadata["credits"])
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credits metadata"})
		return
	}

	applied, err := creditPurchase(c.Request.Context(), models.ProcessedPayment{
		SessionID:        sess.ID,
		UserID:           userID,
		CreditsPurchased: credits,
		Amount:           float64(sess.AmountTotal) / 100,
	})
	if err != nil {
		// 5xx so Stripe retries the delivery.
		log.Printf("credit purchase failed session=%s user=%s err=%v", sess.ID, userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record payment"})
		return
	}
	if !applied {
		log.Printf("duplicate webhook delivery ignored session=%s", sess.ID)
	} else {
		log.Printf("credited %d credits user=%s session=%s", credits, userID, sess.ID)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func handleChargeRefunded(c *gin.Context, event stripe.Event) {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		log.Printf("stripe charge unmarshal failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid charge payload"})
		return
	}
	if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
		log.Printf("stripe charge missing payment intent charge=%s", charge.ID)
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing payment intent"})
		return
	}

	sessionID, err := sessionIDForPaymentIntent(charge.PaymentIntent.ID)
	if err != nil {
		log.Printf("refund: session lookup failed intent=%s err=%v", charge.PaymentIntent.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve session"})
		return
	}

	payment, err := refundPurchase(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, errPaymentNotFound) {
			// Either never credited or already refunded; nothing to undo.
			log.Printf("refund: no completed payment for session=%s", sessionID)
			c.JSON(http.StatusOK, gin.H{"received": true})
			return
		}
		log.Printf("refund failed session=%s err=%v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record refund"})
		return
	}

	log.Printf("refunded %d credits user=%s session=%s", payment.CreditsPurchased, payment.UserID, sessionID)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// sessionIDForPaymentIntent resolves the checkout session that produced a
// payment intent. Refund events only carry the intent, not the session.
func sessionIDForPaymentIntent(paymentIntentID string) (string, error) {
	params := &stripe.CheckoutSessionListParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	iter := session.List(params)
	for iter.Next() {
		return iter.CheckoutSession().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", err
	}
	return "", errors.New("no checkout session for payment intent")
}
