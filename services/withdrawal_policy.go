package services

import (
	"time"

	"github.com/Dosada05/esports-arena/models"
)

const DefaultWithdrawalPenaltyWindow = 48 * time.Hour

// WithdrawalPolicy решает, чем закончится снятие команды с турнира.
type WithdrawalPolicy struct {
	PenaltyWindow time.Duration
}

// Deadline - последний момент, когда снятие ещё не считается неявкой.
func (p WithdrawalPolicy) Deadline(tournament *models.Tournament) time.Time {
	return tournament.Date.Add(-p.PenaltyWindow)
}

// Evaluate возвращает WITHDRAWN, если now не позже дедлайна, иначе FORFEITED.
// Заявка должна быть в статусе APPROVED. Функция ничего не меняет.
func (p WithdrawalPolicy) Evaluate(tournament *models.Tournament, reg *models.TournamentRegistration, now time.Time) (models.RegistrationStatus, error) {
	if reg.Status != models.RegistrationApproved {
		return "", ErrRegistrationNotApproved
	}
	if now.After(p.Deadline(tournament)) {
		return models.RegistrationForfeited, nil
	}
	return models.RegistrationWithdrawn, nil
}

// Разрешённые переходы статуса заявки. Назад статус не возвращается.
var registrationTransitions = map[models.RegistrationStatus][]models.RegistrationStatus{
	models.RegistrationPending:   {models.RegistrationApproved, models.RegistrationRejected},
	models.RegistrationApproved:  {models.RegistrationWithdrawn, models.RegistrationForfeited},
	models.RegistrationWithdrawn: {},
	models.RegistrationForfeited: {},
	models.RegistrationRejected:  {},
}

func isValidRegistrationTransition(current, next models.RegistrationStatus) bool {
	for _, allowed := range registrationTransitions[current] {
		if next == allowed {
			return true
		}
	}
	return false
}
