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
	"fmt"
	"time"

	"github.com/danhollis/regpay/internal/notification"
	"github.com/danhollis/regpay/model"
)

// LogCriticalError appends an entry to the critical error ledger. It is
// deliberately non-throwing: a failure to persist is demoted to the
// out-of-band notification channel so error logging can never become the
// reason the primary operation fails.
func (r *Regpay) LogCriticalError(ctx context.Context, entry *model.ErrorLogEntry) {
	if entry.ErrorID == "" {
		entry.ErrorID = model.GenerateUUIDWithSuffix("err")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if err := r.datasource.RecordCriticalError(ctx, entry); err != nil {
		notification.NotifyError(fmt.Errorf(
			"error ledger write failed: %v (dropped entry: code=%s severity=%s correlation=%s reference=%s message=%q)",
			err, entry.Code, entry.Severity, entry.CorrelationID, entry.PaymentReference, entry.Message,
		))
	}
}

// GetUnresolvedErrors lists open ledger entries for operators.
func (r *Regpay) GetUnresolvedErrors(ctx context.Context, limit, offset int) ([]*model.ErrorLogEntry, error) {
	return r.datasource.GetUnresolvedErrors(ctx, limit, offset)
}

// ResolveCriticalError marks a ledger entry resolved. Entries are never
// deleted; resolution is the only permitted mutation.
func (r *Regpay) ResolveCriticalError(ctx context.Context, errorID, resolvedBy, action string) error {
	return r.datasource.ResolveCriticalError(ctx, errorID, resolvedBy, action)
}
