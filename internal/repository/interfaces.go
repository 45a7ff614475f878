package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medicure-api/internal/model"
)

// Repository-level sentinels. Adapters translate driver errors into these.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		ListDoctors(ctx context.Context, filter model.DoctorFilter) ([]*model.User, error)
	}

	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error)
		ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Appointment, error)
		// UpdateStatus moves an appointment from one status to another and
		// fails with ErrNotFound when the current status does not match from.
		UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.AppointmentStatus) error
	}

	// TranscriptRepository is the append-only store of interview turns.
	TranscriptRepository interface {
		Append(ctx context.Context, turn *model.Turn) error
		List(ctx context.Context, appointmentID uuid.UUID) ([]*model.Turn, error)
		// LastTimestamp returns the newest turn time, or the zero time.
		LastTimestamp(ctx context.Context, appointmentID uuid.UUID) (time.Time, error)
	}

	SummaryRepository interface {
		// Create fails with ErrDuplicate when the appointment already has a summary.
		Create(ctx context.Context, summary *model.Summary) error
		Get(ctx context.Context, id uuid.UUID) (*model.Summary, error)
		GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Summary, error)
	}

	// Pinger reports store health for readiness probes.
	Pinger interface {
		PingContext(ctx context.Context) error
	}
)
