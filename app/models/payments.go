package models

import "time"

type PaymentStatus string

const (
	PaymentCompleted PaymentStatus = "completed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// ProcessedPayment is the idempotency/audit row for one checkout session.
// SessionID is unique; a duplicate webhook delivery never creates a second row.
type ProcessedPayment struct {
	ID               int64         `json:"id"`
	SessionID        string        `json:"session_id"`
	UserID           string        `json:"user_id"`
	CreditsPurchased int           `json:"credits_purchased"`
	Amount           float64       `json:"amount"`
	Status           PaymentStatus `json:"status"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Product is a purchasable credit pack from the Stripe catalog.
type Product struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Price   float64 `json:"price"`
	Credits int     `json:"credits"`
}
