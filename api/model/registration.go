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
package model

import (
	"strings"

	"github.com/danhollis/regpay/model"
)

// CreateRegistration is the raw creation payload. Price is accepted for
// display parity but never trusted; the locked price always comes from the
// event catalog.
type CreateRegistration struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Age           int    `json:"age"`
	Grade         string `json:"grade"`
	Gender        string `json:"gender"`
	TShirtSize    string `json:"t_shirt_size"`
	Experience    string `json:"experience"`
	GuardianName  string `json:"guardian_name"`
	GuardianPhone string `json:"guardian_phone"`
	EventSlug     string `json:"event_slug"`
	PriceCents    int64  `json:"price_cents"`
}

// ToRegistration converts the payload into a normalized, typed registration.
// Email is lower-cased and trimmed here; everything else passes through for
// the validation gate to judge.
func (c *CreateRegistration) ToRegistration() *model.Registration {
	return &model.Registration{
		FirstName:     strings.TrimSpace(c.FirstName),
		LastName:      strings.TrimSpace(c.LastName),
		Email:         strings.ToLower(strings.TrimSpace(c.Email)),
		Phone:         strings.TrimSpace(c.Phone),
		Age:           c.Age,
		Grade:         c.Grade,
		Gender:        c.Gender,
		TShirtSize:    c.TShirtSize,
		Experience:    c.Experience,
		GuardianName:  strings.TrimSpace(c.GuardianName),
		GuardianPhone: strings.TrimSpace(c.GuardianPhone),
		EventSlug:     c.EventSlug,
	}
}

// ValidateCreateRegistration runs the validation gate on the normalized
// payload. All field violations are returned together.
func (c *CreateRegistration) ValidateCreateRegistration() error {
	return model.ValidateNewRegistration(c.ToRegistration())
}

// VerifyPayment is the verification payload.
type VerifyPayment struct {
	PaymentReference string `json:"payment_reference"`
}

// ResolveError is the operator payload for resolving a ledger entry.
type ResolveError struct {
	ResolvedBy string `json:"resolved_by"`
	Action     string `json:"action"`
}
