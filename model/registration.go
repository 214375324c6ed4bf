package model

import (
	"time"
)

// Payment status lifecycle for a registration. Status only moves forward:
// created -> processing -> succeeded, or any non-terminal status -> failed.
const (
	StatusCreated    = "created"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
)

var statusRank = map[string]int{
	StatusCreated:    0,
	StatusProcessing: 1,
	StatusSucceeded:  2,
	StatusFailed:     2,
}

// CanTransitionStatus reports whether a payment status change is a legal
// forward transition. succeeded and failed are terminal.
func CanTransitionStatus(from, to string) bool {
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	if from == StatusSucceeded || from == StatusFailed {
		return false
	}
	return toRank > fromRank
}

// Registration is one confirmed or in-flight registration attempt. Rows are
// never deleted; refunds and cancellations live in auxiliary records.
type Registration struct {
	ID               int64      `json:"-"`
	CorrelationID    string     `json:"correlation_id"`
	PaymentReference string     `json:"payment_reference"`
	EventSlug        string     `json:"event_slug"`
	AmountCents      int64      `json:"amount_cents"`
	Currency         string     `json:"currency"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	Age              int        `json:"age"`
	Grade            string     `json:"grade"`
	Gender           string     `json:"gender"`
	TShirtSize       string     `json:"t_shirt_size"`
	Experience       string     `json:"experience"`
	GuardianName     string     `json:"guardian_name"`
	GuardianPhone    string     `json:"guardian_phone"`
	PaymentStatus    string     `json:"payment_status"`
	Checksum         string     `json:"checksum"`
	ClientIP         string     `json:"-"`
	UserAgent        string     `json:"-"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// VerifyChecksum recomputes the integrity checksum and compares it to the
// stored value.
func (registration *Registration) VerifyChecksum() bool {
	return registration.Checksum == registration.ComputeChecksum()
}
