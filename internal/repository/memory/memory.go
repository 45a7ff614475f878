// Package memory keeps records in-process. It backs tests and local runs
// without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/internal/repository"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]model.User
	email map[string]uuid.UUID
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users: make(map[uuid.UUID]model.User),
		email: make(map[string]uuid.UUID),
	}
}

func (r *UserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := r.email[key]; exists {
		return fmt.Errorf("failed to create user: %w", repository.ErrDuplicate)
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Email = key
	user.CreatedAt = time.Now().UTC()
	r.users[user.ID] = *user
	r.email[key] = user.ID
	return nil
}

func (r *UserRepository) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("failed to get user: %w", repository.ErrNotFound)
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.email[strings.ToLower(email)]
	if !ok {
		return nil, fmt.Errorf("failed to get user by email: %w", repository.ErrNotFound)
	}
	u := r.users[id]
	return &u, nil
}

func (r *UserRepository) ListDoctors(_ context.Context, filter model.DoctorFilter) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]*model.User, 0)
	for _, u := range r.users {
		if u.Role != model.RoleDoctor {
			continue
		}
		if filter.Region != "" && u.Region != filter.Region {
			continue
		}
		if filter.Specialization != "" && (u.Specialization == nil || !strings.EqualFold(*u.Specialization, filter.Specialization)) {
			continue
		}
		u := u
		res = append(res, &u)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Rating != res[j].Rating {
			return res[i].Rating > res[j].Rating
		}
		return res[i].Name < res[j].Name
	})
	return res, nil
}

type AppointmentRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]model.Appointment
	// FailStatusUpdate makes UpdateStatus fail, for exercising partial writes.
	FailStatusUpdate error
}

func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{appointments: make(map[uuid.UUID]model.Appointment)}
}

func (r *AppointmentRepository) Create(_ context.Context, appointment *model.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if appointment.ID == uuid.Nil {
		appointment.ID = uuid.New()
	}
	appointment.CreatedAt = time.Now().UTC()
	appointment.UpdatedAt = appointment.CreatedAt
	r.appointments[appointment.ID] = *appointment
	return nil
}

func (r *AppointmentRepository) Get(_ context.Context, id uuid.UUID) (*model.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, fmt.Errorf("failed to get appointment: %w", repository.ErrNotFound)
	}
	return &a, nil
}

func (r *AppointmentRepository) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*model.Appointment, error) {
	return r.filter(func(a model.Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *AppointmentRepository) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*model.Appointment, error) {
	return r.filter(func(a model.Appointment) bool { return a.DoctorID == doctorID }), nil
}

func (r *AppointmentRepository) filter(keep func(model.Appointment) bool) []*model.Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]*model.Appointment, 0)
	for _, a := range r.appointments {
		if keep(a) {
			a := a
			res = append(res, &a)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Slot.After(res[j].Slot) })
	return res
}

func (r *AppointmentRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.AppointmentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailStatusUpdate != nil {
		return fmt.Errorf("failed to update appointment status: %w", r.FailStatusUpdate)
	}
	a, ok := r.appointments[id]
	if !ok || a.Status != from {
		return fmt.Errorf("appointment %s not in status %s: %w", id, from, repository.ErrNotFound)
	}
	a.Status = to
	a.UpdatedAt = time.Now().UTC()
	r.appointments[id] = a
	return nil
}

type TranscriptRepository struct {
	mu    sync.RWMutex
	turns map[uuid.UUID][]model.Turn
}

func NewTranscriptRepository() *TranscriptRepository {
	return &TranscriptRepository{turns: make(map[uuid.UUID][]model.Turn)}
}

func (r *TranscriptRepository) Append(_ context.Context, turn *model.Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}
	r.turns[turn.AppointmentID] = append(r.turns[turn.AppointmentID], *turn)
	return nil
}

func (r *TranscriptRepository) List(_ context.Context, appointmentID uuid.UUID) ([]*model.Turn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.turns[appointmentID]
	res := make([]*model.Turn, 0, len(stored))
	for i := range stored {
		t := stored[i]
		res = append(res, &t)
	}
	// stable keeps insertion order for equal timestamps
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.Before(res[j].Timestamp) })
	return res, nil
}

func (r *TranscriptRepository) LastTimestamp(_ context.Context, appointmentID uuid.UUID) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var last time.Time
	for _, t := range r.turns[appointmentID] {
		if t.Timestamp.After(last) {
			last = t.Timestamp
		}
	}
	return last, nil
}

type SummaryRepository struct {
	mu            sync.RWMutex
	summaries     map[uuid.UUID]model.Summary
	byAppointment map[uuid.UUID]uuid.UUID
	// FailCreate makes Create fail, for exercising storage errors.
	FailCreate error
}

func NewSummaryRepository() *SummaryRepository {
	return &SummaryRepository{
		summaries:     make(map[uuid.UUID]model.Summary),
		byAppointment: make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *SummaryRepository) Create(_ context.Context, summary *model.Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.FailCreate != nil {
		return fmt.Errorf("failed to create summary: %w", r.FailCreate)
	}
	if _, exists := r.byAppointment[summary.AppointmentID]; exists {
		return fmt.Errorf("failed to create summary: %w", repository.ErrDuplicate)
	}
	if summary.ID == uuid.Nil {
		summary.ID = uuid.New()
	}
	r.summaries[summary.ID] = *summary
	r.byAppointment[summary.AppointmentID] = summary.ID
	return nil
}

func (r *SummaryRepository) Get(_ context.Context, id uuid.UUID) (*model.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.summaries[id]
	if !ok {
		return nil, fmt.Errorf("failed to get summary: %w", repository.ErrNotFound)
	}
	return &s, nil
}

func (r *SummaryRepository) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*model.Summary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byAppointment[appointmentID]
	if !ok {
		return nil, fmt.Errorf("failed to get summary by appointment: %w", repository.ErrNotFound)
	}
	s := r.summaries[id]
	return &s, nil
}

// Count returns the number of stored summaries.
func (r *SummaryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.summaries)
}

var (
	_ repository.UserRepository        = (*UserRepository)(nil)
	_ repository.AppointmentRepository = (*AppointmentRepository)(nil)
	_ repository.TranscriptRepository  = (*TranscriptRepository)(nil)
	_ repository.SummaryRepository     = (*SummaryRepository)(nil)
)
