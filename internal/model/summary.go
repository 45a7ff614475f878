package model

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ParseStatus string

const (
	ParseStatusParsed   ParseStatus = "parsed"
	ParseStatusDegraded ParseStatus = "degraded"
)

// Summary is the structured record produced once per appointment when the
// interview ends. It is never modified after creation.
type Summary struct {
	Base
	AppointmentID     uuid.UUID      `json:"appointment_id" db:"appointment_id"`
	PatientID         uuid.UUID      `json:"patient_id" db:"patient_id"`
	DoctorID          uuid.UUID      `json:"doctor_id" db:"doctor_id"`
	SummaryText       string         `json:"summary_text" db:"summary_text"`
	SummaryStructured JSONMap        `json:"summary_structured" db:"summary_structured"`
	Images            pq.StringArray `json:"images" db:"images"`
	ParseStatus       ParseStatus    `json:"parse_status" db:"parse_status"`
}

// SummaryView is what a doctor reads: the summary plus the patient profile.
type SummaryView struct {
	*Summary
	Patient *PublicProfile `json:"patient"`
}

// Extraction field names requested from the model.
var SummaryFields = []string{
	"name",
	"age",
	"symptoms",
	"duration",
	"medical_history",
	"allergies",
	"medications",
	"family_history",
	"lifestyle",
	"summary_text",
}

// StringField returns a structured field rendered as display text.
func (s *Summary) StringField(key string) string {
	v, ok := s.SummaryStructured[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		out := ""
		for i, item := range t {
			if i > 0 {
				out += ", "
			}
			out += fmt.Sprint(item)
		}
		return out
	default:
		return fmt.Sprint(t)
	}
}

// SummaryCreatedEvent is published after a summary is persisted.
type SummaryCreatedEvent struct {
	SummaryID     uuid.UUID   `json:"summary_id"`
	AppointmentID uuid.UUID   `json:"appointment_id"`
	PatientID     uuid.UUID   `json:"patient_id"`
	DoctorID      uuid.UUID   `json:"doctor_id"`
	ParseStatus   ParseStatus `json:"parse_status"`
}
