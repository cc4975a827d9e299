package repository

import (
	"context"

	"github.com/heartlog/rehab-api/internal/domain"
)

// VitalRepository persists vitals records.
type VitalRepository interface {
	Create(ctx context.Context, vital *domain.Vital) error
	ListByPatient(ctx context.Context, patientID string, limit int) ([]domain.Vital, error)
}

type vitalRepository struct {
	db DBTX
}

// NewVitalRepository constructs repository.
func NewVitalRepository(db DBTX) VitalRepository {
	return &vitalRepository{db: db}
}

func (r *vitalRepository) Create(ctx context.Context, v *domain.Vital) error {
	const query = `
        INSERT INTO vitals (patient_id, systolic, diastolic, heart_rate, weight_kg, note, recorded_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		v.PatientID,
		v.Systolic,
		v.Diastolic,
		v.HeartRate,
		v.WeightKg,
		v.Note,
		v.RecordedAt,
	).Scan(&v.ID, &v.CreatedAt)
}

func (r *vitalRepository) ListByPatient(ctx context.Context, patientID string, limit int) ([]domain.Vital, error) {
	const query = `
        SELECT id, patient_id, systolic, diastolic, heart_rate, weight_kg::float8, note, recorded_at, created_at
        FROM vitals WHERE patient_id=$1
        ORDER BY recorded_at DESC
        LIMIT $2`
	rows, err := r.db.Query(ctx, query, patientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vitals []domain.Vital
	for rows.Next() {
		var v domain.Vital
		if err := rows.Scan(
			&v.ID,
			&v.PatientID,
			&v.Systolic,
			&v.Diastolic,
			&v.HeartRate,
			&v.WeightKg,
			&v.Note,
			&v.RecordedAt,
			&v.CreatedAt,
		); err != nil {
			return nil, err
		}
		vitals = append(vitals, v)
	}
	return vitals, rows.Err()
}
