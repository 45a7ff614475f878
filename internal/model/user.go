package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

// User roles
const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

func (r Role) Valid() bool {
	return r == RolePatient || r == RoleDoctor
}

const DefaultDoctorRating = 4.5

// User is either a patient or a doctor. Doctors carry a specialization and rating.
type User struct {
	Base
	Name           string  `json:"name" db:"name"`
	Email          string  `json:"email" db:"email"`
	PasswordHash   string  `json:"-" db:"password_hash"`
	Role           Role    `json:"role" db:"role"`
	Region         string  `json:"region" db:"region"`
	Specialization *string `json:"specialization,omitempty" db:"specialization"`
	Rating         float64 `json:"rating" db:"rating"`
}

// PublicProfile is the credential-free view of a user handed to other parties.
type PublicProfile struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	Region         string    `json:"region"`
	Specialization *string   `json:"specialization,omitempty"`
	Rating         float64   `json:"rating,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (u *User) Public() *PublicProfile {
	if u == nil {
		return nil
	}
	return &PublicProfile{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		Role:           u.Role,
		Region:         u.Region,
		Specialization: u.Specialization,
		Rating:         u.Rating,
		CreatedAt:      u.CreatedAt,
	}
}

// DoctorFilter narrows the doctor directory.
type DoctorFilter struct {
	Region         string
	Specialization string
}
