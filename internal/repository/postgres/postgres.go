package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/medicure-api/internal/repository"
)

type appointmentRepository struct {
	db *sqlx.DB
}

type transcriptRepository struct {
	db *sqlx.DB
}

type summaryRepository struct {
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB) repository.AppointmentRepository {
	return &appointmentRepository{db: db}
}

func NewTranscriptRepository(db *sqlx.DB) repository.TranscriptRepository {
	return &transcriptRepository{db: db}
}

func NewSummaryRepository(db *sqlx.DB) repository.SummaryRepository {
	return &summaryRepository{db: db}
}
