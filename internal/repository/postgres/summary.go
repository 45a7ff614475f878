package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/medicure-api/internal/model"
)

const summaryColumns = `id, appointment_id, patient_id, doctor_id, summary_text,
	summary_structured, images, parse_status, created_at`

func (r *summaryRepository) Create(ctx context.Context, summary *model.Summary) error {
	query := `
		INSERT INTO summaries (
			id, appointment_id, patient_id, doctor_id, summary_text,
			summary_structured, images, parse_status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	if summary.ID == uuid.Nil {
		summary.ID = uuid.New()
	}

	_, err := r.db.ExecContext(ctx, query,
		summary.ID,
		summary.AppointmentID,
		summary.PatientID,
		summary.DoctorID,
		summary.SummaryText,
		summary.SummaryStructured,
		summary.Images,
		summary.ParseStatus,
		summary.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create summary: %w", translate(err))
	}
	return nil
}

func (r *summaryRepository) Get(ctx context.Context, id uuid.UUID) (*model.Summary, error) {
	query := `SELECT ` + summaryColumns + ` FROM summaries WHERE id = $1`

	var summary model.Summary
	if err := r.db.GetContext(ctx, &summary, query, id); err != nil {
		return nil, fmt.Errorf("failed to get summary: %w", translate(err))
	}
	return &summary, nil
}

func (r *summaryRepository) GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.Summary, error) {
	query := `SELECT ` + summaryColumns + ` FROM summaries WHERE appointment_id = $1`

	var summary model.Summary
	if err := r.db.GetContext(ctx, &summary, query, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to get summary by appointment: %w", translate(err))
	}
	return &summary, nil
}
