package models

import "time"

type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "PENDING"
	RegistrationApproved  RegistrationStatus = "APPROVED"
	RegistrationWithdrawn RegistrationStatus = "WITHDRAWN"
	RegistrationForfeited RegistrationStatus = "FORFEITED"
	RegistrationRejected  RegistrationStatus = "REJECTED"
)

func (s RegistrationStatus) IsValid() bool {
	switch s {
	case RegistrationPending, RegistrationApproved, RegistrationWithdrawn, RegistrationForfeited, RegistrationRejected:
		return true
	}
	return false
}

// TournamentRegistration - заявка команды на турнир, уникальна по (tournament_id, team_id).
type TournamentRegistration struct {
	ID           int                `json:"id" db:"id"`
	TournamentID int                `json:"tournament_id" db:"tournament_id"`
	TeamID       int                `json:"team_id" db:"team_id"`
	Status       RegistrationStatus `json:"status" db:"status"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" db:"updated_at"`
}
