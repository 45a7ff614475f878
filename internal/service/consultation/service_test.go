package consultation

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/internal/repository/memory"
	"github.com/jwalitptl/medicure-api/pkg/ai/aitest"
	"github.com/jwalitptl/medicure-api/pkg/messaging"
	"github.com/jwalitptl/medicure-api/pkg/metrics"
	"github.com/jwalitptl/medicure-api/pkg/storage"
)

type harness struct {
	svc      *Service
	fake     *aitest.Fake
	users    *memory.UserRepository
	appts    *memory.AppointmentRepository
	turns    *memory.TranscriptRepository
	sums     *memory.SummaryRepository
	media    *storage.LocalStore
	broker   *messaging.MemoryBroker
	tempDir  string
	mediaDir string

	patient *model.User
	doctor  *model.User
	appt    *model.Appointment
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mediaDir := t.TempDir()
	media, err := storage.NewLocalStore(mediaDir)
	require.NoError(t, err)

	h := &harness{
		fake:     aitest.New(),
		users:    memory.NewUserRepository(),
		appts:    memory.NewAppointmentRepository(),
		turns:    memory.NewTranscriptRepository(),
		sums:     memory.NewSummaryRepository(),
		media:    media,
		broker:   messaging.NewMemoryBroker(10),
		tempDir:  t.TempDir(),
		mediaDir: mediaDir,
	}
	t.Cleanup(func() { h.broker.Close() })

	h.svc = NewService(Dependencies{
		Appointments: h.appts,
		Transcripts:  h.turns,
		Summaries:    h.sums,
		Users:        h.users,
		Model:        h.fake,
		Media:        h.media,
		Broker:       h.broker,
		Metrics:      metrics.NewNop(),
	}, Config{TempDir: h.tempDir, PublicBaseURL: "/api/files"})

	h.patient = h.addUser(t, "Pat Patient", model.RolePatient)
	h.doctor = h.addUser(t, "Dr Who", model.RoleDoctor)
	h.appt = h.addAppointment(t, h.patient.ID, h.doctor.ID)
	return h
}

func (h *harness) addUser(t *testing.T, name string, role model.Role) *model.User {
	t.Helper()
	u := &model.User{
		Name:         name,
		Email:        strings.ReplaceAll(strings.ToLower(name), " ", ".") + "@example.com",
		PasswordHash: "$2a$10$hash",
		Role:         role,
		Region:       "north",
	}
	u.ID = uuid.New()
	require.NoError(t, h.users.Create(context.Background(), u))
	return u
}

func (h *harness) addAppointment(t *testing.T, patientID, doctorID uuid.UUID) *model.Appointment {
	t.Helper()
	a := &model.Appointment{
		PatientID: patientID,
		DoctorID:  doctorID,
		Slot:      time.Now().Add(24 * time.Hour),
		Status:    model.AppointmentStatusBooked,
	}
	a.ID = uuid.New()
	require.NoError(t, h.appts.Create(context.Background(), a))
	return a
}

func (h *harness) patientCaller() model.Caller {
	return model.Caller{ID: h.patient.ID, Role: model.RolePatient}
}

func (h *harness) doctorCaller() model.Caller {
	return model.Caller{ID: h.doctor.ID, Role: model.RoleDoctor}
}

func (h *harness) transcript(t *testing.T) []*model.Turn {
	t.Helper()
	turns, err := h.turns.List(context.Background(), h.appt.ID)
	require.NoError(t, err)
	return turns
}

func (h *harness) status(t *testing.T) model.AppointmentStatus {
	t.Helper()
	a, err := h.appts.Get(context.Background(), h.appt.ID)
	require.NoError(t, err)
	return a.Status
}

// storedName maps a media URL back to its name in the store.
func storedName(url string) string {
	return strings.TrimPrefix(url, "/api/files/")
}

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}
