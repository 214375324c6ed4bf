/*
Copyright 2025 Regpay Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package regpay

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/danhollis/regpay/internal/apierror"
	"github.com/danhollis/regpay/model"
	"github.com/danhollis/regpay/payment"
)

var tracer = otel.Tracer("registration.orchestrator")

const supportMessage = "Registration could not be completed. Please contact support."

// FreeReferencePrefix tags synthetic payment references created for
// zero-price registrations, which never touch the external processor.
const FreeReferencePrefix = "free_"

// ClientContext is the submission provenance recorded with every attempt.
type ClientContext struct {
	IP        string
	UserAgent string
}

// CreateRegistrationResult is returned to the caller so payment can be
// completed externally. ClientSecret is empty for free registrations.
type CreateRegistrationResult struct {
	CorrelationID string `json:"correlation_id"`
	ClientSecret  string `json:"client_secret,omitempty"`
	PaymentStatus string `json:"payment_status"`
}

// VerifyPaymentResult reports the terminal outcome of a verification call.
type VerifyPaymentResult struct {
	CorrelationID string              `json:"correlation_id"`
	FinalStatus   string              `json:"final_status"`
	Registration  *model.Registration `json:"registration"`
}

// CreateRegistration runs the creation path: validate, de-duplicate, authorize
// payment externally, then commit the registration and its lockdown in one
// transaction. The correlation id is generated before any I/O so every later
// failure can still be logged against it.
func (r *Regpay) CreateRegistration(ctx context.Context, reg *model.Registration, clientCtx ClientContext) (*CreateRegistrationResult, error) {
	ctx, span := tracer.Start(ctx, "Creating registration")
	defer span.End()

	reg.CorrelationID = model.GenerateUUIDWithSuffix("reg")
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	reg.ClientIP = clientCtx.IP
	reg.UserAgent = clientCtx.UserAgent
	reg.CreatedAt = time.Now()

	if err := model.ValidateNewRegistration(reg); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrValidationFailed, "Registration payload failed validation", err)
	}

	// Duplicate check runs before any external payment call so a rejected
	// attempt never leaves an orphaned authorization behind.
	exists, err := r.datasource.RegistrationExistsByEmailAndEvent(ctx, reg.Email, reg.EventSlug)
	if err != nil {
		return nil, err
	}
	if exists {
		r.LogCriticalError(ctx, &model.ErrorLogEntry{
			Code:      model.ErrCodeDuplicateAttempt,
			Severity:  model.SeverityHigh,
			Email:     reg.Email,
			EventSlug: reg.EventSlug,
			Message:   "Duplicate registration attempt for email and event",
			Context:   map[string]interface{}{"correlation_id": reg.CorrelationID, "client_ip": clientCtx.IP},
		})
		return nil, apierror.NewAPIError(apierror.ErrAlreadyRegistered, "A registration already exists for this email and event", nil)
	}

	event, err := model.LookupEvent(reg.EventSlug)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrValidationFailed, "Unknown event", err)
	}
	reg.AmountCents = event.AmountCents
	reg.Currency = event.Currency

	var clientSecret string
	if event.AmountCents == 0 {
		// Free-registration exception: no external authorization, but the same
		// uniqueness and integrity guarantees apply.
		reg.PaymentReference = model.GenerateUUIDWithSuffix("free")
		reg.PaymentStatus = model.StatusSucceeded
		now := time.Now()
		reg.CompletedAt = &now
	} else {
		intent, err := r.gateway.CreateIntent(ctx, payment.CreateIntentRequest{
			AmountCents: event.AmountCents,
			Currency:    event.Currency,
			Metadata: payment.IntentMetadata{
				CorrelationID: reg.CorrelationID,
				Email:         reg.Email,
				EventSlug:     reg.EventSlug,
			},
		})
		if err != nil {
			r.LogCriticalError(ctx, &model.ErrorLogEntry{
				Code:          model.ErrCodeCreationFailed,
				Severity:      model.SeverityCritical,
				CorrelationID: reg.CorrelationID,
				Email:         reg.Email,
				EventSlug:     reg.EventSlug,
				Message:       "Payment authorization could not be created",
				Context:       map[string]interface{}{"error": err.Error(), "amount_cents": event.AmountCents},
			})
			return nil, apierror.NewAPIError(apierror.ErrRegistrationCreation, supportMessage, nil)
		}
		reg.PaymentReference = intent.Reference
		reg.PaymentStatus = model.StatusCreated
		clientSecret = intent.ClientSecret
	}

	reg.Checksum = reg.ComputeChecksum()

	var secretHash string
	if clientSecret != "" {
		secretHash = model.HashClientSecret(clientSecret)
	}

	lock := &model.PaymentLockdown{
		PaymentReference: reg.PaymentReference,
		CorrelationID:    reg.CorrelationID,
		AmountCents:      reg.AmountCents,
		Currency:         reg.Currency,
		EventSlug:        reg.EventSlug,
		Status:           reg.PaymentStatus,
		SecretHash:       secretHash,
		ClientIP:         clientCtx.IP,
		UserAgent:        clientCtx.UserAgent,
		CreatedAt:        reg.CreatedAt,
		StatusUpdatedAt:  reg.CreatedAt,
	}

	if err := r.datasource.RecordRegistrationWithLockdown(ctx, reg, lock); err != nil {
		if apierror.IsCode(err, apierror.ErrAlreadyRegistered) {
			// Lost the race to a concurrent attempt. The constraint is the
			// arbiter; translate and log like the pre-check above.
			r.LogCriticalError(ctx, &model.ErrorLogEntry{
				Code:      model.ErrCodeDuplicateAttempt,
				Severity:  model.SeverityHigh,
				Email:     reg.Email,
				EventSlug: reg.EventSlug,
				Message:   "Concurrent duplicate registration attempt lost the insert race",
				Context:   map[string]interface{}{"correlation_id": reg.CorrelationID},
			})
			return nil, apierror.NewAPIError(apierror.ErrAlreadyRegistered, "A registration already exists for this email and event", nil)
		}
		r.LogCriticalError(ctx, &model.ErrorLogEntry{
			Code:             model.ErrCodeCreationFailed,
			Severity:         model.SeverityCritical,
			CorrelationID:    reg.CorrelationID,
			PaymentReference: reg.PaymentReference,
			Email:            reg.Email,
			EventSlug:        reg.EventSlug,
			Message:          "Registration transaction failed after payment authorization",
			Context: map[string]interface{}{
				"error":   err.Error(),
				"payload": reg,
			},
		})
		return nil, apierror.NewAPIError(apierror.ErrRegistrationCreation, supportMessage, nil)
	}

	if reg.PaymentStatus == model.StatusSucceeded {
		r.postRegistrationActions(ctx, reg)
	}

	return &CreateRegistrationResult{
		CorrelationID: reg.CorrelationID,
		ClientSecret:  clientSecret,
		PaymentStatus: reg.PaymentStatus,
	}, nil
}

// VerifyPayment runs the verification path. It is safe to call any number of
// times for the same reference: the succeeded transition happens once, and
// side effects are gated on that transition, not on the call itself.
func (r *Regpay) VerifyPayment(ctx context.Context, reference string) (*VerifyPaymentResult, error) {
	ctx, span := tracer.Start(ctx, "Verifying payment")
	defer span.End()

	if !strings.HasPrefix(reference, FreeReferencePrefix) {
		intent, err := r.gateway.RetrieveIntent(ctx, reference)
		if err != nil {
			r.LogCriticalError(ctx, &model.ErrorLogEntry{
				Code:             model.ErrCodeVerificationFailure,
				Severity:         model.SeverityHigh,
				PaymentReference: reference,
				Message:          "Could not retrieve payment status from processor",
				Context:          map[string]interface{}{"error": err.Error()},
			})
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, supportMessage, nil)
		}
		if intent.Status != payment.IntentStatusSucceeded {
			return nil, apierror.NewAPIError(apierror.ErrPaymentNotCompleted, "Payment has not been completed", intent.Status)
		}
	}

	lock, err := r.datasource.GetLockdown(ctx, reference)
	if err != nil {
		if apierror.IsCode(err, apierror.ErrNotFound) {
			// A succeeded charge with no local binding. Fail closed rather
			// than guess which registration it belongs to.
			r.LogCriticalError(ctx, &model.ErrorLogEntry{
				Code:             model.ErrCodeIntentNotLocked,
				Severity:         model.SeverityCritical,
				PaymentReference: reference,
				Message:          "Succeeded payment has no lockdown binding",
			})
			return nil, apierror.NewAPIError(apierror.ErrPaymentIntentNotLocked, supportMessage, nil)
		}
		return nil, err
	}

	reg, err := r.datasource.GetRegistrationByCorrelationID(ctx, lock.CorrelationID)
	if err != nil {
		r.LogCriticalError(ctx, &model.ErrorLogEntry{
			Code:             model.ErrCodeCorrelationMismatch,
			Severity:         model.SeverityCritical,
			CorrelationID:    lock.CorrelationID,
			PaymentReference: reference,
			Message:          "Lockdown points at a missing registration",
			Context:          map[string]interface{}{"error": err.Error()},
		})
		return nil, apierror.NewAPIError(apierror.ErrCorrelationMismatch, supportMessage, nil)
	}

	if reg.PaymentReference != reference {
		// The reference was rebound or the registration row drifted. Never
		// "fixed" automatically.
		r.LogCriticalError(ctx, &model.ErrorLogEntry{
			Code:             model.ErrCodeCorrelationMismatch,
			Severity:         model.SeverityCritical,
			CorrelationID:    reg.CorrelationID,
			PaymentReference: reference,
			Message:          "Registration payment reference does not match verified reference",
			Context: map[string]interface{}{
				"registration_reference": reg.PaymentReference,
				"verified_reference":     reference,
			},
		})
		return nil, apierror.NewAPIError(apierror.ErrCorrelationMismatch, supportMessage, nil)
	}

	if reg.PaymentStatus == model.StatusSucceeded {
		return &VerifyPaymentResult{CorrelationID: reg.CorrelationID, FinalStatus: reg.PaymentStatus, Registration: reg}, nil
	}

	completedAt := time.Now()
	if err := r.datasource.MarkPaymentSucceeded(ctx, reg.CorrelationID, reference, completedAt); err != nil {
		if apierror.IsCode(err, apierror.ErrNotFound) {
			// A concurrent verification won the transition. Re-read and treat
			// as the idempotent success case.
			current, readErr := r.datasource.GetRegistrationByCorrelationID(ctx, reg.CorrelationID)
			if readErr == nil && current.PaymentStatus == model.StatusSucceeded {
				return &VerifyPaymentResult{CorrelationID: current.CorrelationID, FinalStatus: current.PaymentStatus, Registration: current}, nil
			}
		}
		r.LogCriticalError(ctx, &model.ErrorLogEntry{
			Code:             model.ErrCodeVerificationFailure,
			Severity:         model.SeverityCritical,
			CorrelationID:    reg.CorrelationID,
			PaymentReference: reference,
			Message:          "Failed to commit succeeded status",
			Context:          map[string]interface{}{"error": err.Error()},
		})
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, supportMessage, nil)
	}

	reg.PaymentStatus = model.StatusSucceeded
	reg.CompletedAt = &completedAt

	// Side effects fire exactly once, on the transition we just committed.
	r.postRegistrationActions(ctx, reg)

	return &VerifyPaymentResult{CorrelationID: reg.CorrelationID, FinalStatus: reg.PaymentStatus, Registration: reg}, nil
}

// GetRegistration reads a registration back out, running the single-record
// integrity check opportunistically. The second return value reports whether
// the record passed.
func (r *Regpay) GetRegistration(ctx context.Context, correlationID string) (*model.Registration, bool, error) {
	reg, err := r.datasource.GetRegistrationByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, false, err
	}

	faults := r.auditRegistration(ctx, reg)
	if len(faults) > 0 {
		logrus.Warnf("integrity check failed for %s: %v", correlationID, faults)
	}
	return reg, len(faults) == 0, nil
}

// postRegistrationActions dispatches confirmation email and downstream order
// creation. Failures here are logged and never roll back the registration.
func (r *Regpay) postRegistrationActions(_ context.Context, reg *model.Registration) {
	registration := *reg
	go func() {
		if err := r.queue.queueConfirmation(&registration); err != nil {
			logrus.Error(err)
		}
		if err := r.queue.queueOrderWebhook(&registration); err != nil {
			logrus.Error(err)
		}
	}()
}
