package report

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/medicure-api/internal/model"
	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
)

// SummaryReader loads a summary only for its doctor of record.
type SummaryReader interface {
	GetSummaryForDoctor(ctx context.Context, summaryID, doctorID uuid.UUID) (*model.SummaryView, error)
}

type Service struct {
	summaries SummaryReader
}

func NewService(summaries SummaryReader) *Service {
	return &Service{summaries: summaries}
}

// SummaryPDF returns the report filename and bytes. Access errors come from
// the reader unchanged.
func (s *Service) SummaryPDF(ctx context.Context, summaryID, doctorID uuid.UUID) (string, []byte, error) {
	view, err := s.summaries.GetSummaryForDoctor(ctx, summaryID, doctorID)
	if err != nil {
		return "", nil, err
	}
	data, err := Render(view)
	if err != nil {
		return "", nil, apperrors.NewInternal(err)
	}
	return Filename(view.Summary), data, nil
}
