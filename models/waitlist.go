package models

import "time"

// WaitlistEntry - место команды в листе ожидания. Меньшая позиция - выше приоритет.
type WaitlistEntry struct {
	ID           int        `json:"id" db:"id"`
	TournamentID int        `json:"tournament_id" db:"tournament_id"`
	TeamID       int        `json:"team_id" db:"team_id"`
	Position     int        `json:"position" db:"position"`
	Offered      bool       `json:"offered" db:"offered"`
	OfferExpiry  *time.Time `json:"offer_expiry,omitempty" db:"offer_expiry"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// OfferActive сообщает, можно ли ещё принять предложенный слот.
func (e *WaitlistEntry) OfferActive(now time.Time) bool {
	return e.Offered && e.OfferExpiry != nil && !now.After(*e.OfferExpiry)
}

type WaitlistOffer struct {
	Entry     WaitlistEntry `json:"entry"`
	CaptainID int           `json:"captain_id"`
	ExpiresAt time.Time     `json:"expires_at"`
}
