package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/heartlog/rehab-api/internal/domain"
)

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	ClearLineUserID(ctx context.Context, lineUserID string) (int64, error)
	ListReminderTargets(ctx context.Context, since time.Time) ([]domain.ReminderTarget, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

const userColumns = `id, email, password_hash, role, display_name, line_user_id, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.DisplayName,
		&user.LineUserID,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, password_hash, role, display_name)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.DisplayName,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET password_hash=$1, updated_at=NOW() WHERE id=$2`, passwordHash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) ClearLineUserID(ctx context.Context, lineUserID string) (int64, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE users SET line_user_id=NULL, updated_at=NOW() WHERE line_user_id=$1`, lineUserID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// ListReminderTargets returns linked patients with no vitals recorded since the given instant.
func (r *userRepository) ListReminderTargets(ctx context.Context, since time.Time) ([]domain.ReminderTarget, error) {
	const query = `
        SELECT u.id, u.display_name, u.line_user_id
        FROM users u
        WHERE u.role = 'patient'
          AND u.line_user_id IS NOT NULL
          AND NOT EXISTS (
              SELECT 1 FROM vitals v WHERE v.patient_id = u.id AND v.recorded_at >= $1
          )
        ORDER BY u.created_at`

	rows, err := r.db.Query(ctx, query, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []domain.ReminderTarget
	for rows.Next() {
		var t domain.ReminderTarget
		if err := rows.Scan(&t.UserID, &t.DisplayName, &t.LineUserID); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}
