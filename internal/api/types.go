package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/openclinic/ehr-scheduling/internal/record"
	"github.com/openclinic/ehr-scheduling/internal/scheduling"
)

type BookAppointmentRequest struct {
	PatientID string    `json:"patient_id"`
	DoctorID  string    `json:"doctor_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Reason    string    `json:"reason,omitempty"`
}

type RescheduleRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AppointmentResponse struct {
	ID        uuid.UUID `json:"id"`
	PatientID uuid.UUID `json:"patient_id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Notes     string    `json:"notes,omitempty"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		Start:     a.StartTime,
		End:       a.EndTime,
		Status:    string(a.Status),
		Reason:    a.Reason,
		Notes:     a.Notes,
	}
}

func toAppointmentListResponse(appts []scheduling.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		out = append(out, toAppointmentResponse(&appts[i]))
	}
	return out
}

type CreateRecordRequest struct {
	AppointmentID string   `json:"appointment_id"`
	Symptoms      string   `json:"symptoms"`
	Diagnosis     string   `json:"diagnosis"`
	Prescription  string   `json:"prescription,omitempty"`
	Notes         string   `json:"notes,omitempty"`
	BloodPressure *string  `json:"blood_pressure,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	Weight        *float64 `json:"weight,omitempty"`
}

type RecordResponse struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	Symptoms      string    `json:"symptoms"`
	Diagnosis     string    `json:"diagnosis"`
	Prescription  string    `json:"prescription,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	BloodPressure *string   `json:"blood_pressure,omitempty"`
	Temperature   *float64  `json:"temperature,omitempty"`
	Weight        *float64  `json:"weight,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toRecordResponse(r *record.MedicalRecord) RecordResponse {
	return RecordResponse{
		ID:            r.ID,
		AppointmentID: r.AppointmentID,
		PatientID:     r.PatientID,
		DoctorID:      r.DoctorID,
		Symptoms:      r.Symptoms,
		Diagnosis:     r.Diagnosis,
		Prescription:  r.Prescription,
		Notes:         r.Notes,
		BloodPressure: r.BloodPressure,
		Temperature:   r.Temperature,
		Weight:        r.Weight,
		CreatedAt:     r.CreatedAt,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
