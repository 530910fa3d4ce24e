// Credit ledger. The balance is only ever mutated through the atomic
// statements below; nothing reads-then-writes profiles.credits.

package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
)

// ErrInsufficientCredits is returned when a spend finds no credit to consume.
var ErrInsufficientCredits = errors.New("insufficient credits")

// AddCredits increments the user's balance by amount.
func AddCredits(ctx context.Context, userID string, amount int) error {
	if db == nil {
		return nil
	}
	return addCreditsExec(ctx, db, userID, amount)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func addCreditsExec(ctx context.Context, ex execer, userID string, amount int) error {
	if amount < 0 {
		return errors.New("amount must be non-negative")
	}
	res, err := ex.ExecContext(ctx, `
		UPDATE profiles
		SET credits = credits + $1
		WHERE id = $2;
	`, amount, userID)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeductCredits decrements the user's balance by amount, clamped at zero so the
// non-negative invariant holds even when a refund outruns the remaining balance.
func DeductCredits(ctx context.Context, userID string, amount int) error {
	if db == nil {
		return nil
	}
	return deductCreditsExec(ctx, db, userID, amount)
}

func deductCreditsExec(ctx context.Context, ex execer, userID string, amount int) error {
	if amount < 0 {
		return errors.New("amount must be non-negative")
	}
	res, err := ex.ExecContext(ctx, `
		UPDATE profiles
		SET credits = GREATEST(credits - $1, 0)
		WHERE id = $2;
	`, amount, userID)
	if err != nil {
		return err
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SpendCredit consumes exactly one credit if the balance allows it, in a single
// statement so concurrent searches cannot double-spend the last credit.
func SpendCredit(ctx context.Context, userID string) error {
	if db == nil {
		// Allow test runs without a backing DB.
		return nil
	}

	res, err := db.ExecContext(ctx, `
		UPDATE profiles
		SET credits = credits - 1
		WHERE id = $1 AND credits >= 1;
	`, userID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInsufficientCredits
	}
	return nil
}

// refundCredit compensates a spend after a failed analysis. Best effort: the
// failure path already reports an error to the caller, so a refund failure is
// only logged for manual reconciliation.
func refundCredit(ctx context.Context, userID string) {
	if err := AddCredits(ctx, userID, 1); err != nil {
		log.Printf("refundCredit failed user=%s err=%v", userID, err)
	}
}
