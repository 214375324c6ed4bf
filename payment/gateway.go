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

package payment

import (
	"context"
)

// External processor intent statuses.
const (
	IntentStatusRequiresPayment = "requires_payment_method"
	IntentStatusProcessing      = "processing"
	IntentStatusSucceeded       = "succeeded"
	IntentStatusCanceled        = "canceled"
)

// IntentMetadata is the closed set of fields attached to an authorization at
// the processor. The correlation id makes the registration recoverable from
// the processor's ledger even if local state is lost. Anything outside this
// struct is rejected at the boundary rather than passed through untyped.
type IntentMetadata struct {
	CorrelationID string `json:"correlation_id"`
	Email         string `json:"email"`
	EventSlug     string `json:"event_slug"`
}

// CreateIntentRequest asks the processor for a new payment authorization.
type CreateIntentRequest struct {
	AmountCents int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Metadata    IntentMetadata `json:"metadata"`
}

// Intent is a payment authorization as reported by the processor. The
// processor is always the source of truth for Status; local state is a cache
// of it, never the other way around.
type Intent struct {
	Reference    string         `json:"id"`
	ClientSecret string         `json:"client_secret"`
	Status       string         `json:"status"`
	AmountCents  int64          `json:"amount"`
	Currency     string         `json:"currency"`
	Metadata     IntentMetadata `json:"metadata"`
}

// Gateway is the payment processor seam. The orchestrator receives an
// implementation at construction so tests can substitute a fake.
type Gateway interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, reference string) (*Intent, error)
}
