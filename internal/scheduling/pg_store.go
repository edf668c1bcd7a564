package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore implements Repository and CalendarStore on Postgres. Appointment
// writes and their calendar entries share one transaction; the
// calendar_entries exclusion constraint backstops the application-level
// conflict check.
type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.Reason,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

const appointmentColumns = `id, patient_id, doctor_id, start_time, end_time, status, reason, notes, created_at, updated_at`

// isOverlapViolation detects the calendar_entries exclusion constraint.
func isOverlapViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

// Interface methods

func (s *PgStore) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (s *PgStore) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (s *PgStore) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (s *PgStore) CreateAppointment(ctx context.Context, appt *Appointment) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, appt.ID, appt.PatientID, appt.DoctorID, appt.StartTime, appt.EndTime,
		appt.Status, appt.Reason, appt.Notes, appt.CreatedAt, appt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	if err := insertCalendarEntry(ctx, tx, appt); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func insertCalendarEntry(ctx context.Context, tx pgx.Tx, appt *Appointment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO calendar_entries (appointment_id, doctor_id, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5)
	`, appt.ID, appt.DoctorID, appt.StartTime, appt.EndTime, appt.Status)
	if err != nil {
		if isOverlapViolation(err) {
			return ErrDoubleBooking
		}
		return fmt.Errorf("insert calendar entry: %w", err)
	}
	return nil
}

func (s *PgStore) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	switch {
	case to.IsTerminal():
		// release; no-op when the entry is already gone
		if _, err := tx.Exec(ctx, `
			DELETE FROM calendar_entries WHERE appointment_id = $1
		`, id); err != nil {
			return nil, fmt.Errorf("release calendar entry: %w", err)
		}
	case to == StatusConfirmed:
		if _, err := tx.Exec(ctx, `
			UPDATE calendar_entries SET status = $2 WHERE appointment_id = $1
		`, id, StatusConfirmed); err != nil {
			if isOverlapViolation(err) {
				return nil, ErrDoubleBooking
			}
			return nil, fmt.Errorf("confirm calendar entry: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return appt, nil
}

func (s *PgStore) RescheduleAppointment(ctx context.Context, id uuid.UUID, from Status, newRange TimeRange) (*Appointment, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
		    end_time = $3,
		    status = $4,
		    updated_at = now()
		WHERE id = $1
		  AND status = $5
		RETURNING `+appointmentColumns+`
	`, id, newRange.Start, newRange.End, StatusPending, from)

	appt, err := scanAppointment(row)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM calendar_entries WHERE appointment_id = $1
	`, id); err != nil {
		return nil, fmt.Errorf("release old calendar entry: %w", err)
	}

	if err := insertCalendarEntry(ctx, tx, appt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return appt, nil
}

func (s *PgStore) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE true`
	args := []any{}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.PatientID != nil {
		query += ` AND patient_id = ` + arg(*f.PatientID)
	}
	if f.DoctorID != nil {
		query += ` AND doctor_id = ` + arg(*f.DoctorID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			statuses[i] = string(st)
		}
		query += ` AND status = ANY(` + arg(statuses) + `)`
	}
	if f.StartsAfter != nil {
		query += ` AND start_time > ` + arg(*f.StartsAfter)
	}
	if f.StartsIn != nil {
		query += ` AND start_time >= ` + arg(f.StartsIn.Start)
		query += ` AND start_time < ` + arg(f.StartsIn.End)
	}

	query += ` ORDER BY start_time ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) DoctorTreatedPatient(ctx context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND patient_id = $2
		)
	`, doctorID, patientID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PgStore) FindLapsedPending(ctx context.Context, before time.Time) ([]Appointment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND end_time < $1
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (s *PgStore) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func (s *PgStore) QueryBusy(ctx context.Context, doctorID uuid.UUID, window TimeRange) ([]CalendarEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT appointment_id, doctor_id, start_time, end_time, status
		FROM calendar_entries
		WHERE doctor_id = $1
		  AND start_time < $2
		  AND end_time > $3
		ORDER BY start_time ASC
	`, doctorID, window.End, window.Start)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []CalendarEntry
	for rows.Next() {
		var e CalendarEntry
		if err := rows.Scan(&e.AppointmentID, &e.DoctorID, &e.StartTime, &e.EndTime, &e.Status); err != nil {
			return nil, err
		}
		result = append(result, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
