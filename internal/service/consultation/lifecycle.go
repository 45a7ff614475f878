package consultation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/internal/repository"
	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
	"github.com/jwalitptl/medicure-api/pkg/messaging"
)

const publishTimeout = 2 * time.Second

// End closes the interview: it synthesizes and stores the summary and marks
// the appointment completed. Calling End again returns the stored summary
// without another model call, and completes the status flip if an earlier
// call stored the summary but failed to update the appointment.
func (s *Service) End(ctx context.Context, caller model.Caller, appointmentID uuid.UUID) (*model.Summary, error) {
	release, err := s.acquire(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	defer release()

	appt, err := s.participantAppointment(ctx, caller, appointmentID)
	if err != nil {
		return nil, err
	}
	if appt.Status == model.AppointmentStatusCancelled {
		return nil, apperrors.NewConflict("appointment is cancelled")
	}

	existing, err := s.summaries.GetByAppointment(ctx, appointmentID)
	switch {
	case err == nil:
		if appt.Status == model.AppointmentStatusBooked {
			if err := s.complete(ctx, appointmentID); err != nil {
				return nil, err
			}
			s.logger.Info("appointment status repaired from existing summary",
				"appointment_id", appointmentID.String())
		}
		return existing, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.NewInternal(fmt.Errorf("failed to look up summary: %w", err))
	}

	if appt.Status != model.AppointmentStatusBooked {
		return nil, apperrors.NewInconsistent("appointment is completed but has no summary", nil)
	}

	transcript, err := s.transcripts.List(ctx, appointmentID)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to list transcript: %w", err))
	}

	summary, err := s.synth.Synthesize(ctx, appt, transcript)
	if err != nil {
		s.logger.Warn(err, "summary synthesis failed, appointment left booked",
			"appointment_id", appointmentID.String())
		return nil, err
	}

	if err := s.summaries.Create(ctx, summary); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewInternal(fmt.Errorf("failed to save summary: %w", err))
		}
		// another replica finished first without a shared lock
		if summary, err = s.summaries.GetByAppointment(ctx, appointmentID); err != nil {
			return nil, apperrors.NewInternal(fmt.Errorf("failed to load concurrent summary: %w", err))
		}
	} else {
		s.metrics.SummariesCreated.WithLabelValues(string(summary.ParseStatus)).Inc()
		s.publishCreated(ctx, summary)
	}

	if err := s.complete(ctx, appointmentID); err != nil {
		return nil, err
	}

	s.logger.Info("consultation ended",
		"appointment_id", appointmentID.String(),
		"summary_id", summary.ID.String(),
		"parse_status", string(summary.ParseStatus),
		"turns", len(transcript))
	return summary, nil
}

// complete flips booked to completed. The summary already exists when this
// runs, so a failure leaves the pair inconsistent until End is retried.
func (s *Service) complete(ctx context.Context, appointmentID uuid.UUID) error {
	err := s.appointments.UpdateStatus(ctx, appointmentID, model.AppointmentStatusBooked, model.AppointmentStatusCompleted)
	if err != nil {
		s.logger.Error(err, "summary stored but appointment not completed",
			"appointment_id", appointmentID.String())
		return apperrors.NewInconsistent("summary saved but appointment status not updated; retry ending the session", err)
	}
	return nil
}

func (s *Service) publishCreated(ctx context.Context, summary *model.Summary) {
	if s.broker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	evt := model.SummaryCreatedEvent{
		SummaryID:     summary.ID,
		AppointmentID: summary.AppointmentID,
		PatientID:     summary.PatientID,
		DoctorID:      summary.DoctorID,
		ParseStatus:   summary.ParseStatus,
	}
	if err := s.broker.Publish(ctx, messaging.ChannelSummaries, evt); err != nil {
		s.logger.Warn(err, "failed to publish summary event", "summary_id", summary.ID.String())
	}
}

// GetSummaryForDoctor returns a summary to its doctor of record together with
// the patient's public profile.
func (s *Service) GetSummaryForDoctor(ctx context.Context, summaryID, doctorID uuid.UUID) (*model.SummaryView, error) {
	summary, err := s.summaries.Get(ctx, summaryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("summary", err)
		}
		return nil, apperrors.NewInternal(fmt.Errorf("failed to get summary: %w", err))
	}
	if summary.DoctorID != doctorID {
		return nil, apperrors.NewForbidden("not your patient")
	}

	view := &model.SummaryView{Summary: summary}
	patient, err := s.users.Get(ctx, summary.PatientID)
	switch {
	case err == nil:
		view.Patient = patient.Public()
	case errors.Is(err, repository.ErrNotFound):
		s.logger.Warn(err, "summary patient missing", "summary_id", summaryID.String())
	default:
		return nil, apperrors.NewInternal(fmt.Errorf("failed to get patient: %w", err))
	}
	return view, nil
}
