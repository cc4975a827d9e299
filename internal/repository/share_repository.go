package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/heartlog/rehab-api/internal/domain"
)

// ShareRepository records which providers may read a patient's vitals.
type ShareRepository interface {
	Create(ctx context.Context, patientID, providerID string) error
	Delete(ctx context.Context, patientID, providerID string) error
	Exists(ctx context.Context, patientID, providerID string) (bool, error)
	ListPatients(ctx context.Context, providerID string) ([]domain.User, error)
}

type shareRepository struct {
	db DBTX
}

// NewShareRepository constructs repository.
func NewShareRepository(db DBTX) ShareRepository {
	return &shareRepository{db: db}
}

func (r *shareRepository) Create(ctx context.Context, patientID, providerID string) error {
	_, err := r.db.Exec(ctx, `INSERT INTO medical_shares (patient_id, provider_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`, patientID, providerID)
	return err
}

func (r *shareRepository) Delete(ctx context.Context, patientID, providerID string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM medical_shares WHERE patient_id=$1 AND provider_id=$2`, patientID, providerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *shareRepository) Exists(ctx context.Context, patientID, providerID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM medical_shares WHERE patient_id=$1 AND provider_id=$2)`,
		patientID, providerID,
	).Scan(&exists)
	return exists, err
}

func (r *shareRepository) ListPatients(ctx context.Context, providerID string) ([]domain.User, error) {
	query := `SELECT u.id, u.email, u.password_hash, u.role, u.display_name, u.line_user_id, u.created_at, u.updated_at
        FROM medical_shares s JOIN users u ON u.id = s.patient_id
        WHERE s.provider_id=$1
        ORDER BY u.display_name`
	rows, err := r.db.Query(ctx, query, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}
