package consultation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/pkg/ai"
)

type Synthesizer struct {
	model ai.ChatModel
	now   func() time.Time
}

func NewSynthesizer(m ai.ChatModel) *Synthesizer {
	return &Synthesizer{model: m, now: time.Now}
}

// Synthesize asks the model for a structured summary of the transcript.
// Malformed output yields a degraded summary; only a failed model call is an
// error, and nothing is persisted here.
func (s *Synthesizer) Synthesize(ctx context.Context, appt *model.Appointment, transcript []*model.Turn) (*model.Summary, error) {
	messages := []ai.Message{
		{Role: ai.RoleSystem, Content: extractionDirective},
		{Role: ai.RoleUser, Content: extractionPrompt + RenderScript(transcript)},
	}

	raw, err := s.model.Complete(ctx, model.SessionKey(appt.ID, model.SessionSummary), messages)
	if err != nil {
		return nil, upstream(ai.OpChat, err)
	}

	ext := ParseExtraction(raw)
	status := model.ParseStatusParsed
	if ext.Degraded {
		status = model.ParseStatusDegraded
	}

	summary := &model.Summary{
		AppointmentID:     appt.ID,
		PatientID:         appt.PatientID,
		DoctorID:          appt.DoctorID,
		SummaryText:       ext.SummaryText(),
		SummaryStructured: model.JSONMap(ext.Fields),
		Images:            imageURLs(transcript),
		ParseStatus:       status,
	}
	summary.ID = uuid.New()
	summary.CreatedAt = s.now().UTC()
	return summary, nil
}

// RenderScript flattens a transcript into "sender: text" lines.
func RenderScript(turns []*model.Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(t.Sender))
		b.WriteString(": ")
		b.WriteString(turnText(t))
	}
	return b.String()
}

func imageURLs(turns []*model.Turn) []string {
	urls := []string{}
	for _, t := range turns {
		if t.Origin == model.OriginImage && t.MediaURL != nil && *t.MediaURL != "" {
			urls = append(urls, *t.MediaURL)
		}
	}
	return urls
}
