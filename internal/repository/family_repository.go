package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/heartlog/rehab-api/internal/domain"
)

// FamilyRepository manages family members and their invite codes.
type FamilyRepository interface {
	Create(ctx context.Context, member *domain.FamilyMember) error
	GetByID(ctx context.Context, patientID, id string) (*domain.FamilyMember, error)
	ListByPatient(ctx context.Context, patientID string) ([]domain.FamilyMember, error)
	ListNotifiable(ctx context.Context, patientID string) ([]domain.FamilyMember, error)
	Update(ctx context.Context, member *domain.FamilyMember) error
	Delete(ctx context.Context, patientID, id string) error
	SetLinkCode(ctx context.Context, patientID, id, code string, expiresAt time.Time) error
	GetInvite(ctx context.Context, code string, now time.Time) (*domain.Invite, error)
	// ConsumeLinkCode attaches lineUserID to the member holding code in a single
	// conditional update. applied is false when the code is unknown, expired or
	// already used.
	ConsumeLinkCode(ctx context.Context, code, lineUserID string, now time.Time) (member *domain.FamilyMember, applied bool, err error)
	ClearLineUserID(ctx context.Context, lineUserID string) (int64, error)
}

type familyRepository struct {
	db DBTX
}

// NewFamilyRepository constructs repository.
func NewFamilyRepository(db DBTX) FamilyRepository {
	return &familyRepository{db: db}
}

const familyColumns = `id, patient_id, name, relationship, notify_enabled, link_code, link_code_expires_at,
            line_user_id, linked_at, created_at, updated_at`

func scanFamilyMember(row pgx.Row) (*domain.FamilyMember, error) {
	var m domain.FamilyMember
	if err := row.Scan(
		&m.ID,
		&m.PatientID,
		&m.Name,
		&m.Relationship,
		&m.NotifyEnabled,
		&m.LinkCode,
		&m.LinkCodeExpiresAt,
		&m.LineUserID,
		&m.LinkedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *familyRepository) Create(ctx context.Context, m *domain.FamilyMember) error {
	const query = `
        INSERT INTO family_members (patient_id, name, relationship, notify_enabled, link_code, link_code_expires_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		m.PatientID,
		m.Name,
		m.Relationship,
		m.NotifyEnabled,
		m.LinkCode,
		m.LinkCodeExpiresAt,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
}

func (r *familyRepository) GetByID(ctx context.Context, patientID, id string) (*domain.FamilyMember, error) {
	query := `SELECT ` + familyColumns + ` FROM family_members WHERE id=$1 AND patient_id=$2`
	return scanFamilyMember(r.db.QueryRow(ctx, query, id, patientID))
}

func (r *familyRepository) ListByPatient(ctx context.Context, patientID string) ([]domain.FamilyMember, error) {
	query := `SELECT ` + familyColumns + ` FROM family_members WHERE patient_id=$1 ORDER BY created_at`
	return r.list(ctx, query, patientID)
}

func (r *familyRepository) ListNotifiable(ctx context.Context, patientID string) ([]domain.FamilyMember, error) {
	query := `SELECT ` + familyColumns + ` FROM family_members
        WHERE patient_id=$1 AND notify_enabled AND line_user_id IS NOT NULL
        ORDER BY created_at`
	return r.list(ctx, query, patientID)
}

func (r *familyRepository) list(ctx context.Context, query string, args ...any) ([]domain.FamilyMember, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.FamilyMember
	for rows.Next() {
		m, err := scanFamilyMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (r *familyRepository) Update(ctx context.Context, m *domain.FamilyMember) error {
	const query = `
        UPDATE family_members SET name=$1, relationship=$2, notify_enabled=$3, updated_at=NOW()
        WHERE id=$4 AND patient_id=$5
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query,
		m.Name,
		m.Relationship,
		m.NotifyEnabled,
		m.ID,
		m.PatientID,
	).Scan(&m.UpdatedAt)
}

func (r *familyRepository) Delete(ctx context.Context, patientID, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM family_members WHERE id=$1 AND patient_id=$2`, id, patientID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *familyRepository) SetLinkCode(ctx context.Context, patientID, id, code string, expiresAt time.Time) error {
	const query = `
        UPDATE family_members SET link_code=$1, link_code_expires_at=$2, updated_at=NOW()
        WHERE id=$3 AND patient_id=$4 AND line_user_id IS NULL`
	cmd, err := r.db.Exec(ctx, query, code, expiresAt, id, patientID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *familyRepository) GetInvite(ctx context.Context, code string, now time.Time) (*domain.Invite, error) {
	const query = `
        SELECT f.link_code, u.display_name, f.name, f.link_code_expires_at
        FROM family_members f
        JOIN users u ON u.id = f.patient_id
        WHERE f.link_code=$1 AND f.line_user_id IS NULL AND f.link_code_expires_at > $2`
	var inv domain.Invite
	if err := r.db.QueryRow(ctx, query, code, now).Scan(
		&inv.Code,
		&inv.PatientDisplayName,
		&inv.MemberName,
		&inv.ExpiresAt,
	); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *familyRepository) ConsumeLinkCode(ctx context.Context, code, lineUserID string, now time.Time) (*domain.FamilyMember, bool, error) {
	// Postgres re-checks the WHERE clause after waiting on a concurrent writer's row
	// lock, so only one of two racing deliveries can match.
	query := `
        UPDATE family_members
        SET line_user_id=$2, linked_at=$3, link_code=NULL, link_code_expires_at=NULL, updated_at=$3
        WHERE link_code=$1 AND line_user_id IS NULL AND link_code_expires_at > $3
        RETURNING ` + familyColumns
	member, err := scanFamilyMember(r.db.QueryRow(ctx, query, code, lineUserID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return member, true, nil
}

func (r *familyRepository) ClearLineUserID(ctx context.Context, lineUserID string) (int64, error) {
	const query = `
        UPDATE family_members SET line_user_id=NULL, linked_at=NULL, updated_at=NOW()
        WHERE line_user_id=$1`
	cmd, err := r.db.Exec(ctx, query, lineUserID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
