// Package app implements the HTTP API: billing, credit ledger, YouTube comment
// analysis, search history and profiles.
package app

import (
	"os"
	"time"

	"github.com/NemoPS/youtube-comments-analyzer/auth"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter builds the shared HTTP router for both local and Lambda execution.
func NewRouter() (*gin.Engine, error) {
	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/health", Health)
	router.POST("/api/stripe/webhook", StripeWebhook)

	verifier, err := auth.NewVerifierFromEnv()
	if err != nil && !auth.AuthDisabled() {
		return nil, err
	}

	protected := router.Group("/")
	protected.Use(auth.Middleware(verifier, auth.MiddlewareConfig{
		OnAuthenticated: func(c *gin.Context, claims *auth.Claims) error {
			return UpsertProfileFromClaims(c.Request.Context(), claims)
		},
	}))
	protected.GET("/me", Me)
	protected.GET("/api/billing/products", GetProducts)
	protected.POST("/api/billing/create-checkout-session", CreateCheckoutSession)
	protected.GET("/api/billing/status", CheckPaymentStatus)
	protected.GET("/api/billing/purchases", ListPurchases)
	protected.POST("/api/searches", AnalyzeVideo)
	protected.GET("/api/searches", ListSearches)
	protected.GET("/api/searches/:searchid", GetSearch)
	if os.Getenv("QUEUE_URL") != "" {
		protected.POST("/api/searches/async", EnqueueAnalysis)
		protected.GET("/jobs/:jobid", GetJobStatus)
	}

	return router, nil
}
