package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/medicure-api/internal/model"
)

func (r *transcriptRepository) Append(ctx context.Context, turn *model.Turn) error {
	query := `
		INSERT INTO chat_messages (
			id, appointment_id, sender, origin, text, media_url, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if turn.ID == uuid.Nil {
		turn.ID = uuid.New()
	}

	_, err := r.db.ExecContext(ctx, query,
		turn.ID,
		turn.AppointmentID,
		turn.Sender,
		turn.Origin,
		turn.Text,
		turn.MediaURL,
		turn.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append chat message: %w", translate(err))
	}
	return nil
}

func (r *transcriptRepository) List(ctx context.Context, appointmentID uuid.UUID) ([]*model.Turn, error) {
	query := `
		SELECT id, appointment_id, sender, origin, text, media_url, timestamp
		FROM chat_messages
		WHERE appointment_id = $1
		ORDER BY timestamp ASC, seq ASC
	`

	var turns []*model.Turn
	if err := r.db.SelectContext(ctx, &turns, query, appointmentID); err != nil {
		return nil, fmt.Errorf("failed to list chat messages: %w", err)
	}
	return turns, nil
}

func (r *transcriptRepository) LastTimestamp(ctx context.Context, appointmentID uuid.UUID) (time.Time, error) {
	query := `SELECT MAX(timestamp) FROM chat_messages WHERE appointment_id = $1`

	var last sql.NullTime
	if err := r.db.GetContext(ctx, &last, query, appointmentID); err != nil {
		return time.Time{}, fmt.Errorf("failed to read last message time: %w", err)
	}
	if !last.Valid {
		return time.Time{}, nil
	}
	return last.Time, nil
}
