package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/internal/repository"
)

const userColumns = `id, name, email, password_hash, role, region, specialization, rating, created_at`

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (
			id, name, email, password_hash, role,
			region, specialization, rating, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now().UTC()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			user.ID,
			user.Name,
			strings.ToLower(user.Email),
			user.PasswordHash,
			user.Role,
			user.Region,
			user.Specialization,
			user.Rating,
			user.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", translate(err))
		}
		return nil
	})
}

func (r *userRepository) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", translate(err))
	}

	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(email)); err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", translate(err))
	}

	return &user, nil
}

func (r *userRepository) ListDoctors(ctx context.Context, filter model.DoctorFilter) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1`
	args := []interface{}{model.RoleDoctor}

	if filter.Region != "" {
		args = append(args, filter.Region)
		query += fmt.Sprintf(" AND region = $%d", len(args))
	}
	if filter.Specialization != "" {
		args = append(args, filter.Specialization)
		query += fmt.Sprintf(" AND specialization ILIKE $%d", len(args))
	}
	query += " ORDER BY rating DESC, name"

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}

	return users, nil
}
