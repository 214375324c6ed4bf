package model

import "time"

// PaymentLockdown binds one external payment reference to exactly one
// registration correlation id. A reference is never rebound; an attempt to do
// so is treated as a hijack attempt, rejected and logged.
type PaymentLockdown struct {
	ID               int64     `json:"-"`
	PaymentReference string    `json:"payment_reference"`
	CorrelationID    string    `json:"correlation_id"`
	AmountCents      int64     `json:"amount_cents"`
	Currency         string    `json:"currency"`
	EventSlug        string    `json:"event_slug"`
	Status           string    `json:"status"`
	SecretHash       string    `json:"-"`
	ClientIP         string    `json:"-"`
	UserAgent        string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
	StatusUpdatedAt  time.Time `json:"status_updated_at"`
}
