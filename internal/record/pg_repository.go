package record

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const recordColumns = `id, appointment_id, patient_id, doctor_id, symptoms, diagnosis, prescription, notes, blood_pressure, temperature, weight, created_at, updated_at`

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var r MedicalRecord

	err := row.Scan(
		&r.ID,
		&r.AppointmentID,
		&r.PatientID,
		&r.DoctorID,
		&r.Symptoms,
		&r.Diagnosis,
		&r.Prescription,
		&r.Notes,
		&r.BloodPressure,
		&r.Temperature,
		&r.Weight,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &r, nil
}

func (p *PgRepository) CreateRecord(ctx context.Context, rec *MedicalRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO medical_records (`+recordColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, rec.ID, rec.AppointmentID, rec.PatientID, rec.DoctorID,
		rec.Symptoms, rec.Diagnosis, rec.Prescription, rec.Notes,
		rec.BloodPressure, rec.Temperature, rec.Weight,
		rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// unique violation on appointment_id
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrRecordExists
		}
		return fmt.Errorf("insert medical record: %w", err)
	}

	return nil
}

func (p *PgRepository) GetRecordByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT `+recordColumns+`
		FROM medical_records
		WHERE id = $1
	`, id)
	return scanRecord(row)
}

func (p *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, doctorID *uuid.UUID) ([]MedicalRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM medical_records WHERE patient_id = $1`
	args := []any{patientID}

	if doctorID != nil {
		query += ` AND doctor_id = $2`
		args = append(args, *doctorID)
	}

	query += ` ORDER BY created_at ASC`

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MedicalRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
