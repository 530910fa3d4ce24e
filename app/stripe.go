package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/NemoPS/youtube-comments-analyzer/app/config"
	"github.com/NemoPS/youtube-comments-analyzer/app/models"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/product"
)

// InitStripe wires the Stripe API key from the environment.
func InitStripe() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config for stripe: %v", err)
	}
	stripe.Key = cfg.Stripe.SecretKey
}

// ensureStripeCustomer finds or creates a Stripe Customer for the given user.
// It uses profiles.stripe_customer_id when present, otherwise creates a new
// customer with metadata user_id = <userID>, then stores that in the profile.
func ensureStripeCustomer(ctx context.Context, userID string) (string, error) {
	if db == nil {
		return "", errors.New("db not initialized")
	}
	if userID == "" {
		return "", errors.New("missing user id")
	}

	var stripeID sql.NullString
	err := db.QueryRowContext(
		ctx,
		`
			SELECT stripe_customer_id
			FROM profiles
			WHERE id = $1;
		`,
		userID,
	).Scan(&stripeID)
	if err != nil {
		return "", err
	}

	if stripeID.Valid && stripeID.String != "" {
		return stripeID.String, nil
	}

	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			"user_id": userID,
		},
	}
	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}

	_, err = db.ExecContext(
		ctx,
		`
			UPDATE profiles
			SET stripe_customer_id = $1
			WHERE id = $2;
		`,
		cust.ID,
		userID,
	)
	if err != nil {
		return "", err
	}

	return cust.ID, nil
}

// productCatalog caches the Stripe credit-pack catalog. Stripe owns the
// products; we only re-read them once per TTL window.
type productCatalog struct {
	mu        sync.Mutex
	ttl       time.Duration
	fetch     func() ([]models.Product, error)
	now       func() time.Time
	products  []models.Product
	fetchedAt time.Time
}

var catalog = &productCatalog{
	ttl:   time.Hour,
	fetch: fetchStripeProducts,
	now:   time.Now,
}

// Products returns the cached catalog, refreshing lazily after the TTL.
func (pc *productCatalog) Products() ([]models.Product, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.products != nil && pc.now().Sub(pc.fetchedAt) < pc.ttl {
		return pc.products, nil
	}

	products, err := pc.fetch()
	if err != nil {
		// Serve the stale copy if we have one rather than failing the page.
		if pc.products != nil {
			log.Printf("product catalog refresh failed, serving stale: %v", err)
			return pc.products, nil
		}
		return nil, err
	}

	pc.products = products
	pc.fetchedAt = pc.now()
	return pc.products, nil
}

func fetchStripeProducts() ([]models.Product, error) {
	params := &stripe.ProductListParams{
		Active: stripe.Bool(true),
	}
	params.AddExpand("data.default_price")

	out := []models.Product{}
	iter := product.List(params)
	for iter.Next() {
		p := iter.Product()
		if p.DefaultPrice == nil {
			continue
		}
		credits, _ := strconv.Atoi(p.Metadata["credits"])
		out = append(out, models.Product{
			ID:      p.ID,
			Name:    p.Name,
			Price:   float64(p.DefaultPrice.UnitAmount) / 100,
			Credits: credits,
		})
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
