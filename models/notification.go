package models

import "time"

type NotificationType string

const (
	NotificationWaitlistOffer      NotificationType = "WAITLIST_OFFER"
	NotificationRegistrationStatus NotificationType = "REGISTRATION_STATUS"
)

type Notification struct {
	ID        int              `json:"id" db:"id"`
	UserID    int              `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	LinkURL   *string          `json:"link_url,omitempty" db:"link_url"`
	ReadAt    *time.Time       `json:"read_at,omitempty" db:"read_at"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}
