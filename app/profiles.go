package app

import (
	"context"
	"database/sql"
	"strings"

	"github.com/NemoPS/youtube-comments-analyzer/app/config"
	"github.com/NemoPS/youtube-comments-analyzer/app/models"
	"github.com/NemoPS/youtube-comments-analyzer/auth"
)

// UpsertProfileFromClaims creates a profile row with starter credits if one
// does not already exist. An existing row is left untouched, so starter
// credits are only ever granted once.
func UpsertProfileFromClaims(ctx context.Context, claims *auth.Claims) error {
	if db == nil {
		return nil
	}
	if claims == nil || claims.Subject == "" {
		return nil
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	email := claims.Email()
	username := readStringClaim(claims.Raw, "name")
	if username == "" {
		username = email
	}
	avatar := readStringClaim(claims.Raw, "avatar_url")

	const q = `
		INSERT INTO profiles (id, username, email, avatar_url, credits)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING;
	`

	_, err = db.ExecContext(
		ctx,
		q,
		claims.Subject,
		nullIfEmpty(username),
		nullIfEmpty(email),
		nullIfEmpty(avatar),
		cfg.Credits.StarterCredits,
	)
	return err
}

func getProfileByID(ctx context.Context, userID string) (models.Profile, error) {
	var (
		p         models.Profile
		username  sql.NullString
		email     sql.NullString
		avatarURL sql.NullString
		stripeID  sql.NullString
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, username, email, avatar_url, credits, stripe_customer_id, created_at
		FROM profiles
		WHERE id = $1;
	`, userID).Scan(&p.ID, &username, &email, &avatarURL, &p.Credits, &stripeID, &p.CreatedAt)
	if err != nil {
		return models.Profile{}, err
	}
	p.Username = username.String
	p.Email = email.String
	p.AvatarURL = avatarURL.String
	p.StripeCustomerID = stripeID.String
	return p, nil
}

func readStringClaim(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	val, ok := raw[key]
	if !ok {
		return ""
	}
	if s, ok := val.(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
