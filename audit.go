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

	"github.com/danhollis/regpay/internal/apierror"
	"github.com/danhollis/regpay/model"
)

const auditBatchSize = 100

// AuditFault describes one integrity failure found by the auditor.
type AuditFault struct {
	CorrelationID    string   `json:"correlation_id"`
	PaymentReference string   `json:"payment_reference"`
	Reasons          []string `json:"reasons"`
}

// AuditReport summarizes a full integrity sweep.
type AuditReport struct {
	Total     int64        `json:"total"`
	Valid     int64        `json:"valid"`
	Corrupted []AuditFault `json:"corrupted"`
}

// AuditAll recomputes every registration's checksum and confirms its lockdown
// binding. Mismatches are reported and logged, never auto-repaired; repair is
// an explicit, human-triggered action.
func (r *Regpay) AuditAll(ctx context.Context) (*AuditReport, error) {
	ctx, span := tracer.Start(ctx, "Auditing registrations")
	defer span.End()

	report := &AuditReport{Corrupted: []AuditFault{}}

	offset := 0
	for {
		batch, err := r.datasource.GetRegistrationsPaginated(ctx, auditBatchSize, offset)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}
		for _, reg := range batch {
			report.Total++
			reasons := r.auditRegistration(ctx, reg)
			if len(reasons) == 0 {
				report.Valid++
				continue
			}
			report.Corrupted = append(report.Corrupted, AuditFault{
				CorrelationID:    reg.CorrelationID,
				PaymentReference: reg.PaymentReference,
				Reasons:          reasons,
			})
		}
		if len(batch) < auditBatchSize {
			break
		}
		offset += auditBatchSize
	}

	return report, nil
}

// AuditRegistration runs the single-record integrity check on demand.
func (r *Regpay) AuditRegistration(ctx context.Context, correlationID string) (*AuditFault, error) {
	reg, err := r.datasource.GetRegistrationByCorrelationID(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	reasons := r.auditRegistration(ctx, reg)
	if len(reasons) == 0 {
		return nil, nil
	}
	return &AuditFault{
		CorrelationID:    reg.CorrelationID,
		PaymentReference: reg.PaymentReference,
		Reasons:          reasons,
	}, nil
}

// auditRegistration checks one registration: stored checksum against a fresh
// recomputation, and the lockdown row's binding against the registration.
// Every fault is written to the critical error ledger.
func (r *Regpay) auditRegistration(ctx context.Context, reg *model.Registration) []string {
	var reasons []string

	if !reg.VerifyChecksum() {
		reasons = append(reasons, "checksum mismatch")
	}

	lock, err := r.datasource.GetLockdown(ctx, reg.PaymentReference)
	switch {
	case err != nil && apierror.IsCode(err, apierror.ErrNotFound):
		reasons = append(reasons, "lockdown row missing")
	case err != nil:
		reasons = append(reasons, "lockdown lookup failed")
	case lock.CorrelationID != reg.CorrelationID:
		reasons = append(reasons, "lockdown bound to different correlation id")
	case lock.AmountCents != reg.AmountCents:
		reasons = append(reasons, "lockdown amount does not match locked price")
	}

	if len(reasons) > 0 {
		r.LogCriticalError(ctx, &model.ErrorLogEntry{
			Code:             model.ErrCodeDataCorruption,
			Severity:         model.SeverityCritical,
			CorrelationID:    reg.CorrelationID,
			PaymentReference: reg.PaymentReference,
			Email:            reg.Email,
			EventSlug:        reg.EventSlug,
			Message:          "Integrity audit failed",
			Context:          map[string]interface{}{"reasons": reasons},
		})
	}
	return reasons
}
