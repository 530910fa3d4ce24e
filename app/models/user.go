// Package models defines profile, payment and search records.
package models

import "time"

// Profile is the per-user row holding the credit balance.
type Profile struct {
	ID               string    `json:"id" db:"id"`
	Username         string    `json:"username" db:"username"`
	Email            string    `json:"email" db:"email"`
	AvatarURL        string    `json:"avatar_url" db:"avatar_url"`
	Credits          int       `json:"credits" db:"credits"`
	StripeCustomerID string    `json:"-" db:"stripe_customer_id"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
