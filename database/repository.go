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

package database

import (
	"context"
	"time"

	"github.com/danhollis/regpay/model"
)

// IDataSource defines the interface for data source operations, grouping
// related functionalities.
type IDataSource interface {
	registration // Registration rows and their status lifecycle
	lockdown     // Payment intent lockdown ledger
	errorlog     // Critical error ledger
}

// registration defines methods for the atomic registration store.
type registration interface {
	RecordRegistrationWithLockdown(ctx context.Context, reg *model.Registration, lock *model.PaymentLockdown) error // Inserts both rows in one transaction
	GetRegistrationByCorrelationID(ctx context.Context, correlationID string) (*model.Registration, error)
	GetRegistrationByPaymentRef(ctx context.Context, reference string) (*model.Registration, error)
	RegistrationExistsByEmailAndEvent(ctx context.Context, email, eventSlug string) (bool, error)
	MarkPaymentSucceeded(ctx context.Context, correlationID, reference string, completedAt time.Time) error // Registration + lockdown updated together
	UpdatePaymentStatus(ctx context.Context, correlationID, status string) error
	GetRegistrationsPaginated(ctx context.Context, limit, offset int) ([]*model.Registration, error)
	CountRegistrations(ctx context.Context) (int64, error)
}

// lockdown defines methods for the payment intent lockdown ledger.
type lockdown interface {
	GetLockdown(ctx context.Context, reference string) (*model.PaymentLockdown, error)
	UpdateLockdownStatus(ctx context.Context, reference, status string) error
}

// errorlog defines methods for the critical error ledger.
type errorlog interface {
	RecordCriticalError(ctx context.Context, entry *model.ErrorLogEntry) error
	GetUnresolvedErrors(ctx context.Context, limit, offset int) ([]*model.ErrorLogEntry, error)
	ResolveCriticalError(ctx context.Context, errorID, resolvedBy, action string) error
}
