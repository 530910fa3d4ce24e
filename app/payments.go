// Processed-payment records are the idempotency boundary for Stripe webhook
// deliveries.

package app

import (
	"context"
	"database/sql"
	"errors"

	"github.com/NemoPS/youtube-comments-analyzer/app/models"
)

var errPaymentNotFound = errors.New("processed payment not found")

// creditPurchase records a completed checkout session and adds the purchased
// credits in one transaction. The session id is the unique key: a duplicate
// delivery inserts nothing and returns applied=false without touching the
// ledger, so redelivery is provably a no-op. If the credit update fails the
// insert rolls back and Stripe's retry gets a clean slate.
func creditPurchase(ctx context.Context, p models.ProcessedPayment) (applied bool, err error) {
	if db == nil {
		return true, nil
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO processed_payments (session_id, user_id, credits_purchased, amount, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO NOTHING;
	`, p.SessionID, p.UserID, p.CreditsPurchased, p.Amount, models.PaymentCompleted)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows == 0 {
		// Already processed; commit nothing.
		return false, tx.Commit()
	}

	if err := addCreditsExec(ctx, tx, p.UserID, p.CreditsPurchased); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// refundPurchase flips a completed payment to refunded and deducts the
// originally purchased credits. Only a row currently in the completed state
// transitions, so duplicate refund events deduct once. Returns the refunded
// record for logging.
func refundPurchase(ctx context.Context, sessionID string) (models.ProcessedPayment, error) {
	if db == nil {
		return models.ProcessedPayment{SessionID: sessionID}, nil
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return models.ProcessedPayment{}, err
	}
	defer tx.Rollback()

	var p models.ProcessedPayment
	err = tx.QueryRowContext(ctx, `
		UPDATE processed_payments
		SET status = $1
		WHERE session_id = $2 AND status = $3
		RETURNING id, session_id, user_id, credits_purchased, amount, status, created_at;
	`, models.PaymentRefunded, sessionID, models.PaymentCompleted).Scan(
		&p.ID,
		&p.SessionID,
		&p.UserID,
		&p.CreditsPurchased,
		&p.Amount,
		&p.Status,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ProcessedPayment{}, errPaymentNotFound
		}
		return models.ProcessedPayment{}, err
	}

	if err := deductCreditsExec(ctx, tx, p.UserID, p.CreditsPurchased); err != nil {
		return models.ProcessedPayment{}, err
	}

	return p, tx.Commit()
}

// paymentProcessed reports whether the webhook has landed for a session.
func paymentProcessed(ctx context.Context, sessionID string) (bool, error) {
	if db == nil {
		return false, nil
	}

	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM processed_payments WHERE session_id = $1
		);
	`, sessionID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// listPurchases reads the user's purchase history, newest first.
func listPurchases(ctx context.Context, userID string) ([]models.ProcessedPayment, error) {
	if db == nil {
		return []models.ProcessedPayment{}, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, session_id, user_id, credits_purchased, amount, status, created_at
		FROM processed_payments
		WHERE user_id = $1
		ORDER BY created_at DESC;
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ProcessedPayment{}
	for rows.Next() {
		var p models.ProcessedPayment
		if err := rows.Scan(
			&p.ID,
			&p.SessionID,
			&p.UserID,
			&p.CreditsPurchased,
			&p.Amount,
			&p.Status,
			&p.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
