// Package consultation runs the AI pre-consultation interview: it normalizes
// voice and image input, drives the conversation, and turns the finished
// transcript into a summary for the doctor.
package consultation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/internal/repository"
	"github.com/jwalitptl/medicure-api/pkg/ai"
	"github.com/jwalitptl/medicure-api/pkg/clock"
	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
	"github.com/jwalitptl/medicure-api/pkg/lock"
	"github.com/jwalitptl/medicure-api/pkg/logger"
	"github.com/jwalitptl/medicure-api/pkg/messaging"
	"github.com/jwalitptl/medicure-api/pkg/metrics"
	"github.com/jwalitptl/medicure-api/pkg/storage"
)

type Config struct {
	// TempDir holds voice uploads while they are transcribed. Empty means os.TempDir.
	TempDir string
	// PublicBaseURL prefixes stored media names, e.g. /api/files.
	PublicBaseURL string
}

type Dependencies struct {
	Appointments repository.AppointmentRepository
	Transcripts  repository.TranscriptRepository
	Summaries    repository.SummaryRepository
	Users        repository.UserRepository
	Model        ai.Provider
	Media        storage.MediaStore
	Locker       lock.Locker
	Clock        clock.Clock
	// Broker receives a SummaryCreatedEvent per new summary. Optional.
	Broker  messaging.Broker
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

type Service struct {
	appointments repository.AppointmentRepository
	transcripts  repository.TranscriptRepository
	summaries    repository.SummaryRepository
	users        repository.UserRepository
	model        ai.Provider
	media        storage.MediaStore
	locker       lock.Locker
	clock        clock.Clock
	broker       messaging.Broker
	metrics      *metrics.Metrics
	logger       *logger.Logger
	synth        *Synthesizer
	cfg          Config
}

func NewService(deps Dependencies, cfg Config) *Service {
	if deps.Locker == nil {
		deps.Locker = lock.NewLocal()
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "/api/files"
	}

	return &Service{
		appointments: deps.Appointments,
		transcripts:  deps.Transcripts,
		summaries:    deps.Summaries,
		users:        deps.Users,
		model:        deps.Model,
		media:        deps.Media,
		locker:       deps.Locker,
		clock:        deps.Clock,
		broker:       deps.Broker,
		metrics:      deps.Metrics,
		logger:       deps.Logger.WithComponent("consultation"),
		synth:        NewSynthesizer(deps.Model),
		cfg:          cfg,
	}
}

// acquire serialises turn appends and finalization for one appointment.
func (s *Service) acquire(ctx context.Context, appointmentID uuid.UUID) (func(), error) {
	start := time.Now()
	release, err := s.locker.Acquire(ctx, appointmentID.String())
	s.metrics.LockWait.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to lock appointment: %w", err))
	}
	return release, nil
}

func (s *Service) loadAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.appointments.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("appointment", err)
		}
		return nil, apperrors.NewInternal(fmt.Errorf("failed to get appointment: %w", err))
	}
	return appt, nil
}

// patientAppointment loads an appointment the caller must own as its patient.
func (s *Service) patientAppointment(ctx context.Context, caller model.Caller, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.loadAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.Role != model.RolePatient || appt.PatientID != caller.ID {
		return nil, apperrors.NewForbidden("not your appointment")
	}
	return appt, nil
}

// participantAppointment admits the owning patient and the doctor of record.
func (s *Service) participantAppointment(ctx context.Context, caller model.Caller, id uuid.UUID) (*model.Appointment, error) {
	appt, err := s.loadAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case caller.Role == model.RolePatient && appt.PatientID == caller.ID:
	case caller.Role == model.RoleDoctor && appt.DoctorID == caller.ID:
	default:
		return nil, apperrors.NewForbidden("not your appointment")
	}
	return appt, nil
}

func requireOpen(appt *model.Appointment) error {
	if !appt.Open() {
		return apperrors.NewConflict("session closed")
	}
	return nil
}

func (s *Service) mediaURL(name string) string {
	return strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/" + name
}

// History returns the ordered transcript to a participant of the appointment.
func (s *Service) History(ctx context.Context, caller model.Caller, appointmentID uuid.UUID) ([]*model.Turn, error) {
	if _, err := s.participantAppointment(ctx, caller, appointmentID); err != nil {
		return nil, err
	}
	turns, err := s.transcripts.List(ctx, appointmentID)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to list transcript: %w", err))
	}
	return turns, nil
}

// upstream keeps AppErrors produced by the guarded provider and wraps anything else.
func upstream(op string, err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}
	return apperrors.NewUpstream(op, err)
}
