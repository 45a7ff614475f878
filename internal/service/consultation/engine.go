package consultation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/pkg/ai"
	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
)

// SendMessage appends a typed patient message and the interviewer's reply.
func (s *Service) SendMessage(ctx context.Context, caller model.Caller, appointmentID uuid.UUID, text string) (*model.Exchange, error) {
	return s.AppendTurn(ctx, caller, appointmentID, text, model.OriginTyped)
}

// AppendTurn persists the patient turn, asks the model for the next
// interview question with the full transcript as context, and persists the
// reply. If the model fails the patient turn stays stored and the caller gets
// a retryable upstream error.
func (s *Service) AppendTurn(ctx context.Context, caller model.Caller, appointmentID uuid.UUID, text string, origin model.Origin) (*model.Exchange, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewBadRequest("message is required", nil)
	}
	if origin != model.OriginTyped && origin != model.OriginVoice {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("origin %q cannot start an exchange", origin), nil)
	}

	release, err := s.acquire(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	defer release()

	appt, err := s.patientAppointment(ctx, caller, appointmentID)
	if err != nil {
		return nil, err
	}
	if err := requireOpen(appt); err != nil {
		return nil, err
	}

	ts, err := s.nextAfter(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	patientTurn := &model.Turn{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		Sender:        model.SenderPatient,
		Origin:        origin,
		Text:          text,
		Timestamp:     ts,
	}
	if err := s.appendTurn(ctx, patientTurn); err != nil {
		return nil, err
	}

	transcript, err := s.transcripts.List(ctx, appointmentID)
	if err != nil {
		return nil, apperrors.NewInternal(fmt.Errorf("failed to list transcript: %w", err))
	}

	reply, err := s.model.Complete(ctx, model.SessionKey(appointmentID, model.SessionInterview), interviewMessages(transcript))
	if err != nil {
		s.logger.Warn(err, "interview reply failed, patient turn kept",
			"appointment_id", appointmentID.String())
		return nil, upstream(ai.OpChat, err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return nil, apperrors.NewUpstream(ai.OpChat, fmt.Errorf("empty reply"))
	}

	aiTurn := &model.Turn{
		ID:            uuid.New(),
		AppointmentID: appointmentID,
		Sender:        model.SenderAI,
		Origin:        model.OriginTyped,
		Text:          reply,
		Timestamp:     s.clock.Next(patientTurn.Timestamp),
	}
	if err := s.appendTurn(ctx, aiTurn); err != nil {
		return nil, err
	}

	return &model.Exchange{PatientTurn: patientTurn, AITurn: aiTurn}, nil
}

func (s *Service) appendTurn(ctx context.Context, turn *model.Turn) error {
	if err := s.transcripts.Append(ctx, turn); err != nil {
		return apperrors.NewInternal(fmt.Errorf("failed to append %s turn: %w", turn.Sender, err))
	}
	s.metrics.TurnsAppended.WithLabelValues(string(turn.Sender), string(turn.Origin)).Inc()
	return nil
}

// interviewMessages rebuilds the model context from the stored transcript.
func interviewMessages(turns []*model.Turn) []ai.Message {
	msgs := make([]ai.Message, 0, len(turns)+1)
	msgs = append(msgs, ai.Message{Role: ai.RoleSystem, Content: interviewDirective})
	for _, t := range turns {
		role := ai.RoleUser
		if t.Sender == model.SenderAI {
			role = ai.RoleAssistant
		}
		msgs = append(msgs, ai.Message{Role: role, Content: turnText(t)})
	}
	return msgs
}

// turnText renders a turn for a model, marking image-derived text.
func turnText(t *model.Turn) string {
	if t.Origin == model.OriginImage {
		return imageMarker + t.Text
	}
	return t.Text
}

// nextAfter is the earliest timestamp a new turn may take.
func (s *Service) nextAfter(ctx context.Context, appointmentID uuid.UUID) (time.Time, error) {
	last, err := s.transcripts.LastTimestamp(ctx, appointmentID)
	if err != nil {
		return time.Time{}, apperrors.NewInternal(fmt.Errorf("failed to read transcript: %w", err))
	}
	return s.clock.Next(last), nil
}
