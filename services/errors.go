package services

import (
	"errors"
	"fmt"
)

// Kind - закрытый набор категорий ошибок сервисного слоя.
// HTTP-слой выбирает код ответа по Kind, а не по тексту ошибки.
type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindInvalidState
	KindConflict
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// Error - ошибка с категорией. Message безопасно показывать клиенту.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// KindOf возвращает категорию первой *Error в цепочке; всё остальное - KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage возвращает текст для клиента, не раскрывая внутренние ошибки.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	return "the server encountered a problem and could not process your request"
}

var (
	ErrUnauthorized = newError(KindUnauthorized, "authentication required")

	// Не найдено
	ErrTournamentNotFound    = newError(KindNotFound, "tournament not found")
	ErrTeamNotFound          = newError(KindNotFound, "team not found")
	ErrUserNotFound          = newError(KindNotFound, "user not found")
	ErrRegistrationNotFound  = newError(KindNotFound, "registration not found")
	ErrWaitlistEntryNotFound = newError(KindNotFound, "waitlist entry not found")
	ErrNotificationNotFound  = newError(KindNotFound, "notification not found")
	ErrInviteNotFound        = newError(KindNotFound, "invite not found")

	// Нет прав
	ErrNotTeamCaptain         = newError(KindForbidden, "only a team captain can perform this action")
	ErrCaptainActionForbidden = newError(KindForbidden, "only the captain of this team can perform this action")
	ErrNotOrganizer           = newError(KindForbidden, "only the tournament organizer can perform this action")

	// Недопустимое состояние
	ErrRegistrationNotApproved = newError(KindInvalidState, "registration is not approved")
	ErrInvalidStatusTransition = newError(KindInvalidState, "invalid registration status transition")
	ErrTournamentFull          = newError(KindInvalidState, "tournament is full")
	ErrTournamentNotFull       = newError(KindInvalidState, "tournament still has free slots, register instead")
	ErrNoActiveOffer           = newError(KindInvalidState, "team has no active waitlist offer")
	ErrOfferExpired            = newError(KindInvalidState, "waitlist offer has expired")
	ErrInviteExpired           = newError(KindInvalidState, "invite has expired")
	ErrUserAlreadyInTeam       = newError(KindInvalidState, "user is already in a team")

	// Конфликты
	ErrRegistrationConflict = newError(KindConflict, "team is already registered for this tournament")
	ErrWaitlistConflict     = newError(KindConflict, "team is already on the waitlist for this tournament")
	ErrTeamNameConflict     = newError(KindConflict, "team name is already in use")
	ErrAlreadyCaptain       = newError(KindConflict, "user already captains a team")

	// Валидация
	ErrTournamentNameRequired    = newError(KindValidation, "tournament name is required")
	ErrTournamentInvalidCapacity = newError(KindValidation, "tournament capacity must be positive")
	ErrTournamentDateRequired    = newError(KindValidation, "tournament date is required")
	ErrTeamNameRequired          = newError(KindValidation, "team name is required")
	ErrInvalidStatus             = newError(KindValidation, "invalid registration status")
)
