package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medicure-api/internal/email"
	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/internal/repository/memory"
	"github.com/jwalitptl/medicure-api/pkg/metrics"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fixture struct {
	svc     *Service
	mailer  *recordingMailer
	metrics *metrics.Metrics
	event   *model.SummaryCreatedEvent
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	users := memory.NewUserRepository()
	sums := memory.NewSummaryRepository()

	doctor := &model.User{Name: "House", Email: "house@example.com", Role: model.RoleDoctor}
	patient := &model.User{Name: "Pat", Email: "pat@example.com", Role: model.RolePatient}
	require.NoError(t, users.Create(ctx, doctor))
	require.NoError(t, users.Create(ctx, patient))

	summary := &model.Summary{AppointmentID: uuid.New(), PatientID: patient.ID, DoctorID: doctor.ID, SummaryText: "cough", ParseStatus: model.ParseStatusParsed}
	require.NoError(t, sums.Create(ctx, summary))

	f := &fixture{
		mailer:  &recordingMailer{},
		metrics: metrics.NewMetrics("test", prometheus.NewRegistry()),
		event:   &model.SummaryCreatedEvent{SummaryID: summary.ID, AppointmentID: summary.AppointmentID, DoctorID: doctor.ID},
	}
	f.svc = NewService(users, sums, f.mailer, f.metrics, nil)
	return f
}

func TestSummaryCreatedSendsReport(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.SummaryCreated(context.Background(), f.event))

	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	assert.Equal(t, "house@example.com", msg.To)
	assert.Contains(t, msg.Body, "Dr. House")
	assert.Contains(t, msg.Body, "Pat")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "summary_"+f.event.AppointmentID.String()+".pdf", msg.Attachments[0].Name)
	assert.NotEmpty(t, msg.Attachments[0].Data)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NotificationsTotal.WithLabelValues("sent")))
}

func TestSummaryCreatedUnknownSummaryIsPermanent(t *testing.T) {
	f := newFixture(t)
	err := f.svc.SummaryCreated(context.Background(), &model.SummaryCreatedEvent{SummaryID: uuid.New()})
	assert.ErrorIs(t, err, ErrPermanent)
	assert.Empty(t, f.mailer.sent)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NotificationsTotal.WithLabelValues("dropped")))
}

func TestSummaryCreatedMailFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.err = errors.New("relay down")
	err := f.svc.SummaryCreated(context.Background(), f.event)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPermanent)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NotificationsTotal.WithLabelValues("failed")))
}
