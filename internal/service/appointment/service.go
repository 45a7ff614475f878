package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/internal/repository"
	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
	"github.com/jwalitptl/medicure-api/pkg/lock"
)

// Booking rules
const (
	MaxAdvanceBooking = 90 * 24 * time.Hour
	// slots a little in the past are accepted to absorb client clock skew
	slotGrace = 5 * time.Minute
)

type Service struct {
	repo   repository.AppointmentRepository
	users  repository.UserRepository
	locker lock.Locker
	now    func() time.Time
}

// NewService shares locker with the consultation service so a cancel cannot
// interleave with ending the same session.
func NewService(repo repository.AppointmentRepository, users repository.UserRepository, locker lock.Locker) *Service {
	if locker == nil {
		locker = lock.NewLocal()
	}
	return &Service{
		repo:   repo,
		users:  users,
		locker: locker,
		now:    time.Now,
	}
}

func (s *Service) validateSlot(slot time.Time) error {
	now := s.now()
	if slot.Before(now.Add(-slotGrace)) {
		return apperrors.NewBadRequest("appointment cannot be scheduled in the past", nil)
	}
	if slot.After(now.Add(MaxAdvanceBooking)) {
		return apperrors.NewBadRequest(fmt.Sprintf("appointment cannot be booked more than %d days ahead", int(MaxAdvanceBooking.Hours()/24)), nil)
	}
	return nil
}

// ListDoctors returns doctors in the caller's region, best rated first.
func (s *Service) ListDoctors(ctx context.Context, callerID uuid.UUID, specialization string) ([]*model.PublicProfile, error) {
	caller, err := s.users.Get(ctx, callerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", err)
		}
		return nil, apperrors.NewInternal(fmt.Errorf("failed to get user: %w", err))
	}

	doctors, err := s.users.ListDoctors(ctx, model.DoctorFilter{Region: caller.Region, Specialization: specialization})
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to list doctors: %w", err))
	}

	res := make([]*model.PublicProfile, 0, len(doctors))
	for _, d := range doctors {
		res = append(res, d.Public())
	}
	return res, nil
}

func (s *Service) Book(ctx context.Context, patientID uuid.UUID, req *model.BookAppointmentRequest) (*model.Appointment, error) {
	if err := s.validateSlot(req.Slot); err != nil {
		return nil, err
	}

	doctor, err := s.users.Get(ctx, req.DoctorID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to get doctor: %w", err))
	}
	if err != nil || doctor.Role != model.RoleDoctor {
		return nil, apperrors.NewNotFound("doctor", err)
	}

	apt := &model.Appointment{
		PatientID: patientID,
		DoctorID:  doctor.ID,
		Slot:      req.Slot.UTC(),
		Status:    model.AppointmentStatusBooked,
	}
	apt.ID = uuid.New()

	if err := s.repo.Create(ctx, apt); err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to create appointment: %w", err))
	}
	return apt, nil
}

func (s *Service) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	apts, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to list appointments: %w", err))
	}
	return apts, nil
}

// Cancel withdraws a booked appointment. Appointments of other patients are
// reported as missing.
func (s *Service) Cancel(ctx context.Context, patientID, appointmentID uuid.UUID) (*model.Appointment, error) {
	release, err := s.locker.Acquire(ctx, appointmentID.String())
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to lock appointment: %w", err))
	}
	defer release()

	apt, err := s.repo.Get(ctx, appointmentID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to get appointment: %w", err))
	}
	if err != nil || apt.PatientID != patientID {
		return nil, apperrors.NewNotFound("appointment", err)
	}
	if apt.Status != model.AppointmentStatusBooked {
		return nil, apperrors.NewConflict(fmt.Sprintf("appointment is already %s", apt.Status))
	}

	if err := s.repo.UpdateStatus(ctx, appointmentID, model.AppointmentStatusBooked, model.AppointmentStatusCancelled); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewConflict("appointment status changed")
		}
		return nil, apperrors.NewInternal(fmt.Errorf("failed to cancel appointment: %w", err))
	}

	apt.Status = model.AppointmentStatusCancelled
	apt.UpdatedAt = s.now().UTC()
	return apt, nil
}
