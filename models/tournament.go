package models

import "time"

// Tournament представляет турнир. Filled - текущее число одобренных команд.
type Tournament struct {
	ID          int        `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	OrganizerID int        `json:"organizer_id" db:"organizer_id"`
	Date        time.Time  `json:"date" db:"date"`
	Capacity    int        `json:"capacity" db:"capacity"`
	Filled      int        `json:"filled" db:"filled"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	DeletedAt   *time.Time `json:"-" db:"deleted_at"`
}

func (t *Tournament) IsFull() bool {
	return t.Filled >= t.Capacity
}
