package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Sender string

const (
	SenderPatient Sender = "patient"
	SenderAI      Sender = "ai"
)

// Origin records how a turn entered the conversation.
type Origin string

const (
	OriginTyped Origin = "typed"
	OriginVoice Origin = "voice"
	OriginImage Origin = "image"
)

func (o Origin) Valid() bool {
	switch o {
	case OriginTyped, OriginVoice, OriginImage:
		return true
	}
	return false
}

// Turn is one message in an appointment's interview transcript.
type Turn struct {
	ID            uuid.UUID `json:"id" db:"id"`
	AppointmentID uuid.UUID `json:"appointment_id" db:"appointment_id"`
	Sender        Sender    `json:"sender" db:"sender"`
	Origin        Origin    `json:"origin" db:"origin"`
	Text          string    `json:"text" db:"text"`
	MediaURL      *string   `json:"media_url,omitempty" db:"media_url"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
}

// SessionPurpose distinguishes the logical conversations held for one appointment.
type SessionPurpose string

const (
	SessionInterview SessionPurpose = "interview"
	SessionVision    SessionPurpose = "vision"
	SessionSummary   SessionPurpose = "summary"
)

// SessionKey derives the conversation identifier for an appointment. It is
// never stored; model providers may use it to correlate calls.
func SessionKey(appointmentID uuid.UUID, purpose SessionPurpose) string {
	switch purpose {
	case SessionVision:
		return fmt.Sprintf("appointment_%s_vision", appointmentID)
	case SessionSummary:
		return fmt.Sprintf("summary_%s", appointmentID)
	default:
		return fmt.Sprintf("appointment_%s", appointmentID)
	}
}

type ChatMessageRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id" binding:"required"`
	Message       string    `json:"message" binding:"required,max=8000"`
}

type EndChatRequest struct {
	AppointmentID uuid.UUID `json:"appointment_id"`
}

// Exchange is the pair of turns produced by one patient input.
type Exchange struct {
	PatientTurn *Turn `json:"patient_turn"`
	AITurn      *Turn `json:"ai_turn"`
}

type ChatMessageResponse struct {
	PatientMessage string `json:"patient_message"`
	AIResponse     string `json:"ai_response"`
}

type VoiceMessageResponse struct {
	TranscribedText string `json:"transcribed_text"`
	AIResponse      string `json:"ai_response"`
	AudioURL        string `json:"audio_url"`
}

type ImageUploadResponse struct {
	ImageURL string `json:"image_url"`
	Analysis string `json:"analysis"`
}
