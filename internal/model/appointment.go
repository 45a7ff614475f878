package model

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentStatusBooked    AppointmentStatus = "booked"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

type Appointment struct {
	Base
	PatientID uuid.UUID         `db:"patient_id" json:"patient_id"`
	DoctorID  uuid.UUID         `db:"doctor_id" json:"doctor_id"`
	Slot      time.Time         `db:"slot" json:"slot"`
	Status    AppointmentStatus `db:"status" json:"status"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

// Open reports whether the interview session may still accept turns.
func (a *Appointment) Open() bool {
	return a.Status == AppointmentStatusBooked
}

// Involves reports whether the user is the patient or the doctor of record.
func (a *Appointment) Involves(userID uuid.UUID) bool {
	return a.PatientID == userID || a.DoctorID == userID
}

type BookAppointmentRequest struct {
	DoctorID uuid.UUID `json:"doctor_id" binding:"required"`
	Slot     time.Time `json:"slot" binding:"required"`
}

// DoctorAppointment is an appointment enriched for the doctor dashboard.
type DoctorAppointment struct {
	*Appointment
	Patient *PublicProfile `json:"patient"`
	Summary *Summary       `json:"summary"`
}
