package model

import "time"

// Closed taxonomy of critical error codes. New codes are added here, never
// invented at call sites.
const (
	ErrCodeDuplicateAttempt    = "duplicate_registration_attempt"
	ErrCodeCreationFailed      = "registration_creation_failed"
	ErrCodeIntentNotLocked     = "payment_intent_not_locked"
	ErrCodeCorrelationMismatch = "correlation_mismatch"
	ErrCodeDataCorruption      = "data_corruption_detected"
	ErrCodeVerificationFailure = "verification_failure"
)

const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// ErrorLogEntry is an append-only diagnostic record. Entries are created on any
// anomaly, mutated only to mark resolution, and never deleted.
type ErrorLogEntry struct {
	ID               int64                  `json:"-"`
	ErrorID          string                 `json:"error_id"`
	Code             string                 `json:"code"`
	Severity         string                 `json:"severity"`
	CorrelationID    string                 `json:"correlation_id,omitempty"`
	PaymentReference string                 `json:"payment_reference,omitempty"`
	Email            string                 `json:"email,omitempty"`
	EventSlug        string                 `json:"event_slug,omitempty"`
	Message          string                 `json:"message"`
	Context          map[string]interface{} `json:"context,omitempty"`
	Resolved         bool                   `json:"resolved"`
	ResolvedBy       string                 `json:"resolved_by,omitempty"`
	ResolutionAction string                 `json:"resolution_action,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	ResolvedAt       *time.Time             `json:"resolved_at,omitempty"`
}
