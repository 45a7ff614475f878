// Package notification tells doctors that a pre-consultation summary is ready.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jwalitptl/medicure-api/internal/email"
	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/internal/repository"
	"github.com/jwalitptl/medicure-api/internal/service/report"
	"github.com/jwalitptl/medicure-api/pkg/logger"
	"github.com/jwalitptl/medicure-api/pkg/metrics"
)

// ErrPermanent marks failures that a retry cannot fix.
var ErrPermanent = errors.New("permanent notification failure")

type Service struct {
	users     repository.UserRepository
	summaries repository.SummaryRepository
	email     email.Service
	metrics   *metrics.Metrics
	log       *logger.Logger
}

func NewService(
	users repository.UserRepository,
	summaries repository.SummaryRepository,
	emailSvc email.Service,
	m *metrics.Metrics,
	log *logger.Logger,
) *Service {
	if m == nil {
		m = metrics.NewNop()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		users:     users,
		summaries: summaries,
		email:     emailSvc,
		metrics:   m,
		log:       log.WithComponent("notification"),
	}
}

// SummaryCreated emails the doctor of record with the PDF report attached.
func (s *Service) SummaryCreated(ctx context.Context, evt *model.SummaryCreatedEvent) error {
	err := s.summaryCreated(ctx, evt)
	switch {
	case err == nil:
		s.metrics.NotificationsTotal.WithLabelValues("sent").Inc()
	case errors.Is(err, ErrPermanent):
		s.metrics.NotificationsTotal.WithLabelValues("dropped").Inc()
	default:
		s.metrics.NotificationsTotal.WithLabelValues("failed").Inc()
	}
	return err
}

func (s *Service) summaryCreated(ctx context.Context, evt *model.SummaryCreatedEvent) error {
	summary, err := s.summaries.Get(ctx, evt.SummaryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("summary %s: %w", evt.SummaryID, ErrPermanent)
		}
		return fmt.Errorf("failed to get summary: %w", err)
	}

	doctor, err := s.users.Get(ctx, summary.DoctorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("doctor %s: %w", summary.DoctorID, ErrPermanent)
		}
		return fmt.Errorf("failed to get doctor: %w", err)
	}

	view := &model.SummaryView{Summary: summary}
	if patient, err := s.users.Get(ctx, summary.PatientID); err == nil {
		view.Patient = patient.Public()
	} else {
		s.log.Warn(err, "patient not loaded for notification", "summary_id", summary.ID.String())
	}

	pdf, err := report.Render(view)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrPermanent)
	}

	msg := email.Message{
		To:          doctor.Email,
		Subject:     "Pre-consultation summary ready",
		Body:        body(doctor, view),
		Attachments: []email.Attachment{{Name: report.Filename(summary), Data: pdf}},
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send summary email: %w", err)
	}

	s.log.Info("summary notification sent",
		"summary_id", summary.ID.String(),
		"doctor_id", doctor.ID.String())
	return nil
}

func body(doctor *model.User, view *model.SummaryView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dear Dr. %s,\n\n", doctor.Name)
	patient := "your patient"
	if view.Patient != nil {
		patient = view.Patient.Name
	}
	fmt.Fprintf(&b, "The AI pre-consultation interview with %s has finished.\n", patient)
	fmt.Fprintf(&b, "The summary for appointment %s is attached and available on your dashboard.\n\n", view.AppointmentID)
	b.WriteString("MediCure")
	return b.String()
}
