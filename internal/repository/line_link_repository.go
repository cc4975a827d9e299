package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/heartlog/rehab-api/internal/domain"
)

// LineLinkRepository stores codes that bind a user's own LINE account.
type LineLinkRepository interface {
	Create(ctx context.Context, code *domain.SelfLinkCode) error
	// Consume marks code used and attaches lineUserID to its user in one transaction.
	Consume(ctx context.Context, code, lineUserID string, now time.Time) (link *domain.SelfLinkCode, applied bool, err error)
}

type lineLinkRepository struct {
	db DBTX
}

// NewLineLinkRepository constructs repository.
func NewLineLinkRepository(db DBTX) LineLinkRepository {
	return &lineLinkRepository{db: db}
}

func (r *lineLinkRepository) Create(ctx context.Context, c *domain.SelfLinkCode) error {
	const query = `
        INSERT INTO line_link_codes (code, user_id, expires_at)
        VALUES ($1,$2,$3)
        RETURNING created_at`
	return r.db.QueryRow(ctx, query, c.Code, c.UserID, c.ExpiresAt).Scan(&c.CreatedAt)
}

func (r *lineLinkRepository) Consume(ctx context.Context, code, lineUserID string, now time.Time) (*domain.SelfLinkCode, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const consume = `
        UPDATE line_link_codes SET consumed_at=$3, line_user_id=$2
        WHERE code=$1 AND consumed_at IS NULL AND expires_at > $3
        RETURNING code, user_id, expires_at, consumed_at, line_user_id, created_at`
	var link domain.SelfLinkCode
	err = tx.QueryRow(ctx, consume, code, lineUserID, now).Scan(
		&link.Code,
		&link.UserID,
		&link.ExpiresAt,
		&link.ConsumedAt,
		&link.LineUserID,
		&link.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET line_user_id=$1, updated_at=$2 WHERE id=$3`, lineUserID, now, link.UserID); err != nil {
		return nil, false, fmt.Errorf("attach line user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return &link, true, nil
}
