// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/go-auth-api/internal/models"
)

// ReplaceResetToken stores token as the only reset token of the user.
// Older tokens are deleted in the same transaction.
func (r *Repository) ReplaceResetToken(ctx context.Context, userID, token string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM reset_tokens WHERE user_id = ?`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reset_tokens (user_id, token, created_at) VALUES (?, ?, ?)`,
		userID, token, time.Now().UTC()); err != nil {
		return wrapError(err)
	}

	return tx.Commit()
}

// GetResetToken retrieves the live reset token of a user. Used by tests.
func (r *Repository) GetResetToken(ctx context.Context, userID string) (*models.ResetToken, error) {
	var token models.ResetToken
	err := r.db.GetContext(ctx, &token,
		`SELECT user_id, token, created_at FROM reset_tokens WHERE user_id = ?`, userID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &token, nil
}

// ConsumeResetToken deletes the reset token matching both userID and token.
// Returns ErrNotFound if there is no such token, so a token can be consumed once.
func (r *Repository) ConsumeResetToken(ctx context.Context, userID, token string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM reset_tokens WHERE user_id = ? AND token = ?`, userID, token)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteUserResetTokens deletes all reset tokens of a user.
func (r *Repository) DeleteUserResetTokens(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM reset_tokens WHERE user_id = ?`, userID)
	return err
}

// CountResetTokens returns the number of reset tokens stored for a user.
// Used by tests.
func (r *Repository) CountResetTokens(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count,
		`SELECT count(*) FROM reset_tokens WHERE user_id = ?`, userID); err != nil {
		return 0, err
	}
	return count, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
