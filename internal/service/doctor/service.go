package doctor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/internal/repository"
	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
	"github.com/jwalitptl/medicure-api/pkg/logger"
)

type Config struct {
	// ProfileTTL bounds how stale a cached patient profile may be.
	ProfileTTL      time.Duration
	CleanupInterval time.Duration
	// Concurrency caps parallel enrichment lookups per request.
	Concurrency int
}

func DefaultConfig() Config {
	return Config{
		ProfileTTL:      5 * time.Minute,
		CleanupInterval: 10 * time.Minute,
		Concurrency:     8,
	}
}

// Service backs the doctor dashboard.
type Service struct {
	appointments repository.AppointmentRepository
	summaries    repository.SummaryRepository
	users        repository.UserRepository
	profiles     *cache.Cache
	concurrency  int
	log          *logger.Logger
}

func NewService(
	appointments repository.AppointmentRepository,
	summaries repository.SummaryRepository,
	users repository.UserRepository,
	cfg Config,
	log *logger.Logger,
) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		appointments: appointments,
		summaries:    summaries,
		users:        users,
		profiles:     cache.New(cfg.ProfileTTL, cfg.CleanupInterval),
		concurrency:  cfg.Concurrency,
		log:          log.WithComponent("doctor"),
	}
}

// Appointments lists the doctor's appointments, each enriched with the
// patient profile and the summary when one exists. Order follows the store.
func (s *Service) Appointments(ctx context.Context, doctorID uuid.UUID) ([]*model.DoctorAppointment, error) {
	apts, err := s.appointments.ListByDoctor(ctx, doctorID)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to list appointments: %w", err))
	}

	out := make([]*model.DoctorAppointment, len(apts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, apt := range apts {
		i, apt := i, apt
		g.Go(func() error {
			enriched, err := s.enrich(gctx, apt)
			if err != nil {
				return err
			}
			out[i] = enriched
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return out, nil
}

func (s *Service) enrich(ctx context.Context, apt *model.Appointment) (*model.DoctorAppointment, error) {
	res := &model.DoctorAppointment{Appointment: apt}

	patient, err := s.profile(ctx, apt.PatientID)
	if err != nil {
		return nil, err
	}
	res.Patient = patient

	summary, err := s.summaries.GetByAppointment(ctx, apt.ID)
	switch {
	case err == nil:
		res.Summary = summary
	case errors.Is(err, repository.ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to get summary for appointment %s: %w", apt.ID, err)
	}
	return res, nil
}

// profile returns a cached public profile. A deleted patient yields nil.
func (s *Service) profile(ctx context.Context, id uuid.UUID) (*model.PublicProfile, error) {
	key := id.String()
	if v, ok := s.profiles.Get(key); ok {
		return v.(*model.PublicProfile), nil
	}

	user, err := s.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Warn(err, "patient missing for appointment", "patient_id", key)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get patient %s: %w", id, err)
	}

	p := user.Public()
	s.profiles.SetDefault(key, p)
	return p, nil
}
