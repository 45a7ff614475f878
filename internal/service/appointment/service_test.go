package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
)

type fixture struct {
	svc     *Service
	users   *memory.UserRepository
	appts   *memory.AppointmentRepository
	patient *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		users: memory.NewUserRepository(),
		appts: memory.NewAppointmentRepository(),
	}
	f.svc = NewService(f.appts, f.users, nil)
	f.patient = f.addUser(t, "Pat", "pat@example.com", model.RolePatient, "north", "")
	return f
}

func (f *fixture) addUser(t *testing.T, name, email string, role model.Role, region, spec string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: email, Role: role, Region: region}
	if spec != "" {
		u.Specialization = &spec
		u.Rating = model.DefaultDoctorRating
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func TestListDoctorsByRegion(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "Dr North", "n@example.com", model.RoleDoctor, "north", "Cardiology")
	f.addUser(t, "Dr Derm", "d@example.com", model.RoleDoctor, "north", "Dermatology")
	f.addUser(t, "Dr South", "s@example.com", model.RoleDoctor, "south", "Cardiology")

	doctors, err := f.svc.ListDoctors(context.Background(), f.patient.ID, "")
	require.NoError(t, err)
	require.Len(t, doctors, 2)
	for _, d := range doctors {
		assert.Equal(t, "north", d.Region)
		assert.Equal(t, model.RoleDoctor, d.Role)
	}

	doctors, err = f.svc.ListDoctors(context.Background(), f.patient.ID, "cardiology")
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, "Dr North", doctors[0].Name)
}

func TestBook(t *testing.T) {
	f := newFixture(t)
	doc := f.addUser(t, "Dr North", "n@example.com", model.RoleDoctor, "north", "Cardiology")
	slot := time.Now().Add(48 * time.Hour)

	apt, err := f.svc.Book(context.Background(), f.patient.ID, &model.BookAppointmentRequest{DoctorID: doc.ID, Slot: slot})
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusBooked, apt.Status)
	assert.Equal(t, f.patient.ID, apt.PatientID)
	assert.Equal(t, doc.ID, apt.DoctorID)

	list, err := f.svc.ListForPatient(context.Background(), f.patient.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, apt.ID, list[0].ID)
}

func TestBookRejectsNonDoctorAndBadSlots(t *testing.T) {
	f := newFixture(t)
	doc := f.addUser(t, "Dr North", "n@example.com", model.RoleDoctor, "north", "Cardiology")
	other := f.addUser(t, "Other", "o@example.com", model.RolePatient, "north", "")
	ctx := context.Background()

	_, err := f.svc.Book(ctx, f.patient.ID, &model.BookAppointmentRequest{DoctorID: other.ID, Slot: time.Now().Add(time.Hour)})
	assert.ErrorIs(t, err, apperrors.NotFoundError)

	_, err = f.svc.Book(ctx, f.patient.ID, &model.BookAppointmentRequest{DoctorID: uuid.New(), Slot: time.Now().Add(time.Hour)})
	assert.ErrorIs(t, err, apperrors.NotFoundError)

	_, err = f.svc.Book(ctx, f.patient.ID, &model.BookAppointmentRequest{DoctorID: doc.ID, Slot: time.Now().Add(-time.Hour)})
	assert.ErrorIs(t, err, apperrors.BadRequestError)

	_, err = f.svc.Book(ctx, f.patient.ID, &model.BookAppointmentRequest{DoctorID: doc.ID, Slot: time.Now().Add(MaxAdvanceBooking + time.Hour)})
	assert.ErrorIs(t, err, apperrors.BadRequestError)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	doc := f.addUser(t, "Dr North", "n@example.com", model.RoleDoctor, "north", "Cardiology")
	stranger := f.addUser(t, "Other", "o@example.com", model.RolePatient, "north", "")
	ctx := context.Background()

	apt, err := f.svc.Book(ctx, f.patient.ID, &model.BookAppointmentRequest{DoctorID: doc.ID, Slot: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, stranger.ID, apt.ID)
	assert.ErrorIs(t, err, apperrors.NotFoundError)

	cancelled, err := f.svc.Cancel(ctx, f.patient.ID, apt.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(ctx, f.patient.ID, apt.ID)
	assert.ErrorIs(t, err, apperrors.ConflictError)

	_, err = f.svc.Cancel(ctx, f.patient.ID, uuid.New())
	assert.ErrorIs(t, err, apperrors.NotFoundError)
}
