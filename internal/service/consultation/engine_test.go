package consultation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/pkg/ai"
	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
)

func assertAlternating(t *testing.T, turns []*model.Turn) {
	t.Helper()
	for i, turn := range turns {
		want := model.SenderPatient
		if i%2 == 1 {
			want = model.SenderAI
		}
		assert.Equal(t, want, turn.Sender, "turn %d", i)
		if i > 0 {
			assert.True(t, turn.Timestamp.After(turns[i-1].Timestamp), "turn %d not after turn %d", i, i-1)
		}
	}
}

func TestAppendTurnBuildsOrderedTranscript(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.fake.ChatReplies = []string{"How long have you had it?", "Any allergies?", "Any medications?"}

	const n = 5
	for i := 0; i < n; i++ {
		ex, err := h.svc.SendMessage(ctx, h.patientCaller(), h.appt.ID, fmt.Sprintf("answer %d", i))
		require.NoError(t, err)
		assert.Equal(t, model.SenderPatient, ex.PatientTurn.Sender)
		assert.Equal(t, model.OriginTyped, ex.PatientTurn.Origin)
		assert.Equal(t, model.SenderAI, ex.AITurn.Sender)
		assert.True(t, ex.AITurn.Timestamp.After(ex.PatientTurn.Timestamp))
	}

	turns := h.transcript(t)
	require.Len(t, turns, 2*n)
	assertAlternating(t, turns)
	assert.Equal(t, "answer 0", turns[0].Text)
	assert.Equal(t, "How long have you had it?", turns[1].Text)
	assert.Equal(t, "Any medications?", turns[9].Text)

	require.Len(t, h.fake.ChatCalls, n)
	for i, call := range h.fake.ChatCalls {
		assert.Equal(t, model.SessionKey(h.appt.ID, model.SessionInterview), call.SessionKey)
		// directive plus every stored turn up to and including the new patient turn
		require.Len(t, call.Messages, 2*i+2)
		assert.Equal(t, ai.RoleSystem, call.Messages[0].Role)
		assert.Contains(t, call.Messages[0].Content, "ONE clear question")
		last := call.Messages[len(call.Messages)-1]
		assert.Equal(t, ai.RoleUser, last.Role)
		assert.Equal(t, fmt.Sprintf("answer %d", i), last.Content)
	}
	assert.Equal(t, ai.RoleAssistant, h.fake.ChatCalls[1].Messages[2].Role)
	assert.Equal(t, model.AppointmentStatusBooked, h.status(t))
}

func TestAppendTurnUnknownAppointment(t *testing.T) {
	h := newHarness(t)
	missing := uuid.New()

	_, err := h.svc.SendMessage(context.Background(), h.patientCaller(), missing, "hello")
	assert.ErrorIs(t, err, apperrors.NotFoundError)

	turns, err := h.turns.List(context.Background(), missing)
	require.NoError(t, err)
	assert.Empty(t, turns)
	assert.Zero(t, h.fake.ChatCallCount())
}

func TestAppendTurnByNonOwner(t *testing.T) {
	h := newHarness(t)
	stranger := h.addUser(t, "Other Patient", model.RolePatient)

	callers := []model.Caller{
		{ID: stranger.ID, Role: model.RolePatient},
		h.doctorCaller(),
	}
	for _, caller := range callers {
		_, err := h.svc.SendMessage(context.Background(), caller, h.appt.ID, "hello")
		assert.ErrorIs(t, err, apperrors.ForbiddenError)
	}

	assert.Empty(t, h.transcript(t))
	assert.Zero(t, h.fake.ChatCallCount())
}

func TestAppendTurnModelFailureKeepsPatientTurn(t *testing.T) {
	h := newHarness(t)
	h.fake.ChatErr = errors.New("connection reset")

	_, err := h.svc.SendMessage(context.Background(), h.patientCaller(), h.appt.ID, "my head hurts")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.UpstreamError)

	turns := h.transcript(t)
	require.Len(t, turns, 1)
	assert.Equal(t, model.SenderPatient, turns[0].Sender)
	assert.Equal(t, "my head hurts", turns[0].Text)

	// a resubmission after recovery continues the same transcript
	h.fake.ChatErr = nil
	_, err = h.svc.SendMessage(context.Background(), h.patientCaller(), h.appt.ID, "my head hurts")
	require.NoError(t, err)
	assert.Len(t, h.transcript(t), 3)
}

func TestAppendTurnEmptyModelReply(t *testing.T) {
	h := newHarness(t)
	h.fake.ChatReplies = []string{"   "}

	_, err := h.svc.SendMessage(context.Background(), h.patientCaller(), h.appt.ID, "hi")
	assert.ErrorIs(t, err, apperrors.UpstreamError)
	assert.Len(t, h.transcript(t), 1)
}

func TestAppendTurnRejectsBlankMessage(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.SendMessage(context.Background(), h.patientCaller(), h.appt.ID, "  \n ")
	assert.ErrorIs(t, err, apperrors.BadRequestError)

	_, err = h.svc.AppendTurn(context.Background(), h.patientCaller(), h.appt.ID, "hi", model.OriginImage)
	assert.ErrorIs(t, err, apperrors.BadRequestError)
	assert.Empty(t, h.transcript(t))
}

func TestAppendTurnOnClosedSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.End(context.Background(), h.patientCaller(), h.appt.ID)
	require.NoError(t, err)
	calls := h.fake.ChatCallCount()

	_, err = h.svc.SendMessage(context.Background(), h.patientCaller(), h.appt.ID, "one more thing")
	assert.ErrorIs(t, err, apperrors.ConflictError)
	assert.Empty(t, h.transcript(t))
	assert.Equal(t, calls, h.fake.ChatCallCount())
}

func TestClosingPhraseDoesNotCloseSession(t *testing.T) {
	h := newHarness(t)
	h.fake.ChatReplies = []string{ClosingPhrase}

	_, err := h.svc.SendMessage(context.Background(), h.patientCaller(), h.appt.ID, "that's all")
	require.NoError(t, err)
	assert.Equal(t, model.AppointmentStatusBooked, h.status(t))

	_, err = h.svc.SendMessage(context.Background(), h.patientCaller(), h.appt.ID, "actually, one more")
	assert.NoError(t, err)
}

func TestConcurrentAppendTurnsAreSerialised(t *testing.T) {
	h := newHarness(t)

	const n = 12
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.svc.SendMessage(context.Background(), h.patientCaller(), h.appt.ID, fmt.Sprintf("message %d", i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	turns := h.transcript(t)
	require.Len(t, turns, 2*n)
	assertAlternating(t, turns)
}

func TestAppointmentsDoNotShareTranscripts(t *testing.T) {
	h := newHarness(t)
	other := h.addAppointment(t, h.patient.ID, h.doctor.ID)

	_, err := h.svc.SendMessage(context.Background(), h.patientCaller(), h.appt.ID, "first")
	require.NoError(t, err)
	_, err = h.svc.SendMessage(context.Background(), h.patientCaller(), other.ID, "second")
	require.NoError(t, err)

	assert.Len(t, h.transcript(t), 2)
	require.Len(t, h.fake.ChatCalls, 2)
	assert.Len(t, h.fake.ChatCalls[1].Messages, 2)
	assert.Equal(t, model.SessionKey(other.ID, model.SessionInterview), h.fake.ChatCalls[1].SessionKey)
}

func TestHistoryAccess(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.SendMessage(context.Background(), h.patientCaller(), h.appt.ID, "hello")
	require.NoError(t, err)

	turns, err := h.svc.History(context.Background(), h.patientCaller(), h.appt.ID)
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	turns, err = h.svc.History(context.Background(), h.doctorCaller(), h.appt.ID)
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	otherDoctor := h.addUser(t, "Dr No", model.RoleDoctor)
	_, err = h.svc.History(context.Background(), model.Caller{ID: otherDoctor.ID, Role: model.RoleDoctor}, h.appt.ID)
	assert.ErrorIs(t, err, apperrors.ForbiddenError)

	_, err = h.svc.History(context.Background(), h.patientCaller(), uuid.New())
	assert.ErrorIs(t, err, apperrors.NotFoundError)
}
