package repository

import (
	"context"

	"github.com/heartlog/rehab-api/internal/domain"
)

// ProfileRepository stores per-user clinical profiles.
type ProfileRepository interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Upsert(ctx context.Context, profile *domain.Profile) error
}

type profileRepository struct {
	db DBTX
}

// NewProfileRepository constructs repository.
func NewProfileRepository(db DBTX) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	const query = `
        SELECT user_id, birth_date, sex, diagnosis, target_heart_rate, phone, updated_at
        FROM profiles WHERE user_id=$1`
	var p domain.Profile
	if err := r.db.QueryRow(ctx, query, userID).Scan(
		&p.UserID,
		&p.BirthDate,
		&p.Sex,
		&p.Diagnosis,
		&p.TargetHeartRate,
		&p.Phone,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *profileRepository) Upsert(ctx context.Context, p *domain.Profile) error {
	const query = `
        INSERT INTO profiles (user_id, birth_date, sex, diagnosis, target_heart_rate, phone)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (user_id) DO UPDATE SET
            birth_date=EXCLUDED.birth_date,
            sex=EXCLUDED.sex,
            diagnosis=EXCLUDED.diagnosis,
            target_heart_rate=EXCLUDED.target_heart_rate,
            phone=EXCLUDED.phone,
            updated_at=NOW()
        RETURNING updated_at`
	return r.db.QueryRow(ctx, query,
		p.UserID,
		p.BirthDate,
		p.Sex,
		p.Diagnosis,
		p.TargetHeartRate,
		p.Phone,
	).Scan(&p.UpdatedAt)
}
