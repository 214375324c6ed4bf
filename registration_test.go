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
	"database/sql"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/danhollis/regpay/config"
	"github.com/danhollis/regpay/database"
	"github.com/danhollis/regpay/internal/apierror"
	"github.com/danhollis/regpay/model"
	"github.com/danhollis/regpay/payment"
)

func newTestDataSource() (database.IDataSource, sqlmock.Sqlmock, error) {
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: "localhost:6379"},
		Queue: config.QueueConfig{
			ConfirmationQueue: "new:confirmation",
			OrderWebhookQueue: "new:order-webhook",
		},
	})
	db, mock, err := sqlmock.New()
	if err != nil {
		log.Printf("an error '%s' was not expected when opening a stub database Connection", err)
	}
	return &database.Datasource{Conn: db}, mock, nil
}

// fakeGateway substitutes the external payment processor.
type fakeGateway struct {
	createFn      func(ctx context.Context, req payment.CreateIntentRequest) (*payment.Intent, error)
	retrieveFn    func(ctx context.Context, reference string) (*payment.Intent, error)
	createCalls   int
	retrieveCalls int
}

func (f *fakeGateway) CreateIntent(ctx context.Context, req payment.CreateIntentRequest) (*payment.Intent, error) {
	f.createCalls++
	if f.createFn == nil {
		return nil, errors.New("unexpected CreateIntent call")
	}
	return f.createFn(ctx, req)
}

func (f *fakeGateway) RetrieveIntent(ctx context.Context, reference string) (*payment.Intent, error) {
	f.retrieveCalls++
	if f.retrieveFn == nil {
		return nil, errors.New("unexpected RetrieveIntent call")
	}
	return f.retrieveFn(ctx, reference)
}

func newRegistration(eventSlug string) *model.Registration {
	return &model.Registration{
		FirstName:     gofakeit.FirstName(),
		LastName:      gofakeit.LastName(),
		Email:         gofakeit.Email(),
		Phone:         "205-555-0134",
		Age:           12,
		Grade:         "6th",
		Gender:        "male",
		TShirtSize:    "YL",
		Experience:    "intermediate",
		GuardianName:  gofakeit.Name(),
		GuardianPhone: "205-555-0199",
		EventSlug:     eventSlug,
	}
}

func TestCreateRegistration_PaidEvent(t *testing.T) {
	datasource, mock, err := newTestDataSource()
	assert.NoError(t, err)

	gateway := &fakeGateway{
		createFn: func(_ context.Context, req payment.CreateIntentRequest) (*payment.Intent, error) {
			assert.Equal(t, int64(24900), req.AmountCents)
			assert.Equal(t, "USD", req.Currency)
			assert.True(t, strings.HasPrefix(req.Metadata.CorrelationID, "reg_"))
			return &payment.Intent{
				Reference:    "pi_test-1",
				ClientSecret: "pi_test-1_secret",
				Status:       payment.IntentStatusRequiresPayment,
				AmountCents:  req.AmountCents,
				Currency:     req.Currency,
				Metadata:     req.Metadata,
			}, nil
		},
	}

	r, err := NewRegpay(datasource, gateway)
	assert.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO registrations").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO payment_lockdowns").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	reg := newRegistration("birmingham-slam-camp")
	result, err := r.CreateRegistration(context.Background(), reg, ClientContext{IP: "10.0.0.1", UserAgent: "test"})
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.CorrelationID, "reg_"))
	assert.Equal(t, "pi_test-1_secret", result.ClientSecret)
	assert.Equal(t, model.StatusCreated, result.PaymentStatus)

	// The locked price comes from the catalog, never from the caller.
	assert.Equal(t, int64(24900), reg.AmountCents)
	assert.True(t, reg.VerifyChecksum())
	assert.Equal(t, 1, gateway.createCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRegistration_FreeEventSkipsGateway(t *testing.T) {
	datasource, mock, err := newTestDataSource()
	assert.NoError(t, err)

	gateway := &fakeGateway{}
	r, err := NewRegpay(datasource, gateway)
	assert.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO registrations").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO payment_lockdowns").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	reg := newRegistration("community-open-mat")
	result, err := r.CreateRegistration(context.Background(), reg, ClientContext{})
	assert.NoError(t, err)
	assert.Equal(t, model.StatusSucceeded, result.PaymentStatus)
	assert.Empty(t, result.ClientSecret)

	assert.Equal(t, 0, gateway.createCalls)
	assert.True(t, strings.HasPrefix(reg.PaymentReference, FreeReferencePrefix))
	assert.NotNil(t, reg.CompletedAt)
	assert.True(t, reg.VerifyChecksum())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRegistration_ValidationFailure(t *testing.T) {
	datasource, _, err := newTestDataSource()
	assert.NoError(t, err)

	gateway := &fakeGateway{}
	r, err := NewRegpay(datasource, gateway)
	assert.NoError(t, err)

	reg := newRegistration("birmingham-slam-camp")
	reg.Age = 30
	reg.Email = "not-an-email"

	_, err = r.CreateRegistration(context.Background(), reg, ClientContext{})
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrValidationFailed))
	assert.Equal(t, 0, gateway.createCalls)
}

func TestCreateRegistration_DuplicateAttempt(t *testing.T) {
	datasource, mock, err := newTestDataSource()
	assert.NoError(t, err)

	gateway := &fakeGateway{}
	r, err := NewRegpay(datasource, gateway)
	assert.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	// The duplicate attempt lands in the critical error ledger.
	mock.ExpectExec("INSERT INTO registration_error_log").
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err = r.CreateRegistration(context.Background(), newRegistration("birmingham-slam-camp"), ClientContext{})
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrAlreadyRegistered))
	assert.Equal(t, 0, gateway.createCalls, "no payment authorization before the duplicate check")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRegistration_GatewayFailure(t *testing.T) {
	datasource, mock, err := newTestDataSource()
	assert.NoError(t, err)

	gateway := &fakeGateway{
		createFn: func(_ context.Context, _ payment.CreateIntentRequest) (*payment.Intent, error) {
			return nil, errors.New("processor unreachable")
		},
	}
	r, err := NewRegpay(datasource, gateway)
	assert.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO registration_error_log").
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err = r.CreateRegistration(context.Background(), newRegistration("birmingham-slam-camp"), ClientContext{})
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrRegistrationCreation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRegistration_LosesInsertRace(t *testing.T) {
	datasource, mock, err := newTestDataSource()
	assert.NoError(t, err)

	gateway := &fakeGateway{
		createFn: func(_ context.Context, req payment.CreateIntentRequest) (*payment.Intent, error) {
			return &payment.Intent{Reference: "pi_test-race", ClientSecret: "s", Status: payment.IntentStatusRequiresPayment}, nil
		},
	}
	r, err := NewRegpay(datasource, gateway)
	assert.NoError(t, err)

	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO registrations").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "registrations_email_event_key"})
	mock.ExpectRollback()
	mock.ExpectExec("INSERT INTO registration_error_log").
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err = r.CreateRegistration(context.Background(), newRegistration("birmingham-slam-camp"), ClientContext{})
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrAlreadyRegistered))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyPayment_PaymentNotCompleted(t *testing.T) {
	datasource, _, err := newTestDataSource()
	assert.NoError(t, err)

	gateway := &fakeGateway{
		retrieveFn: func(_ context.Context, reference string) (*payment.Intent, error) {
			return &payment.Intent{Reference: reference, Status: payment.IntentStatusProcessing}, nil
		},
	}
	r, err := NewRegpay(datasource, gateway)
	assert.NoError(t, err)

	_, err = r.VerifyPayment(context.Background(), "pi_test-1")
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrPaymentNotCompleted))
}

func TestVerifyPayment_LockdownMissing(t *testing.T) {
	datasource, mock, err := newTestDataSource()
	assert.NoError(t, err)

	gateway := &fakeGateway{
		retrieveFn: func(_ context.Context, reference string) (*payment.Intent, error) {
			return &payment.Intent{Reference: reference, Status: payment.IntentStatusSucceeded}, nil
		},
	}
	r, err := NewRegpay(datasource, gateway)
	assert.NoError(t, err)

	mock.ExpectQuery("SELECT .* FROM payment_lockdowns").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO registration_error_log").
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err = r.VerifyPayment(context.Background(), "pi_orphan")
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrPaymentIntentNotLocked))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyPayment_CorrelationMismatch(t *testing.T) {
	datasource, mock, err := newTestDataSource()
	assert.NoError(t, err)

	gateway := &fakeGateway{
		retrieveFn: func(_ context.Context, reference string) (*payment.Intent, error) {
			return &payment.Intent{Reference: reference, Status: payment.IntentStatusSucceeded}, nil
		},
	}
	r, err := NewRegpay(datasource, gateway)
	assert.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM payment_lockdowns").
		WillReturnRows(lockdownRows("pi_test-1", "reg_test-1", 24900, now))

	// The registration row carries a different reference than the one being
	// verified. Fail closed.
	reg := storedRegistration("reg_test-1", "pi_rebound", model.StatusProcessing, now)
	mock.ExpectQuery("SELECT .* FROM registrations").
		WillReturnRows(registrationRows(reg))
	mock.ExpectExec("INSERT INTO registration_error_log").
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err = r.VerifyPayment(context.Background(), "pi_test-1")
	assert.Error(t, err)
	assert.True(t, apierror.IsCode(err, apierror.ErrCorrelationMismatch))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyPayment_Succeeds(t *testing.T) {
	datasource, mock, err := newTestDataSource()
	assert.NoError(t, err)

	gateway := &fakeGateway{
		retrieveFn: func(_ context.Context, reference string) (*payment.Intent, error) {
			return &payment.Intent{Reference: reference, Status: payment.IntentStatusSucceeded}, nil
		},
	}
	r, err := NewRegpay(datasource, gateway)
	assert.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM payment_lockdowns").
		WillReturnRows(lockdownRows("pi_test-1", "reg_test-1", 24900, now))

	reg := storedRegistration("reg_test-1", "pi_test-1", model.StatusProcessing, now)
	mock.ExpectQuery("SELECT .* FROM registrations").
		WillReturnRows(registrationRows(reg))

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE registrations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE payment_lockdowns").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := r.VerifyPayment(context.Background(), "pi_test-1")
	assert.NoError(t, err)
	assert.Equal(t, "reg_test-1", result.CorrelationID)
	assert.Equal(t, model.StatusSucceeded, result.FinalStatus)
	assert.NotNil(t, result.Registration.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyPayment_Idempotent(t *testing.T) {
	datasource, mock, err := newTestDataSource()
	assert.NoError(t, err)

	gateway := &fakeGateway{
		retrieveFn: func(_ context.Context, reference string) (*payment.Intent, error) {
			return &payment.Intent{Reference: reference, Status: payment.IntentStatusSucceeded}, nil
		},
	}
	r, err := NewRegpay(datasource, gateway)
	assert.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery("SELECT .* FROM payment_lockdowns").
		WillReturnRows(lockdownRows("pi_test-1", "reg_test-1", 24900, now))

	// Already succeeded: return as-is, no update, no side effects.
	reg := storedRegistration("reg_test-1", "pi_test-1", model.StatusSucceeded, now)
	reg.CompletedAt = &now
	mock.ExpectQuery("SELECT .* FROM registrations").
		WillReturnRows(registrationRows(reg))

	result, err := r.VerifyPayment(context.Background(), "pi_test-1")
	assert.NoError(t, err)
	assert.Equal(t, model.StatusSucceeded, result.FinalStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerifyPayment_FreeReferenceSkipsGateway(t *testing.T) {
	datasource, mock, err := newTestDataSource()
	assert.NoError(t, err)

	gateway := &fakeGateway{}
	r, err := NewRegpay(datasource, gateway)
	assert.NoError(t, err)

	now := time.Now()
	reference := "free_test-1"
	mock.ExpectQuery("SELECT .* FROM payment_lockdowns").
		WillReturnRows(lockdownRows(reference, "reg_test-1", 0, now))

	reg := storedRegistration("reg_test-1", reference, model.StatusSucceeded, now)
	reg.AmountCents = 0
	reg.Checksum = reg.ComputeChecksum()
	reg.CompletedAt = &now
	mock.ExpectQuery("SELECT .* FROM registrations").
		WillReturnRows(registrationRows(reg))

	result, err := r.VerifyPayment(context.Background(), reference)
	assert.NoError(t, err)
	assert.Equal(t, model.StatusSucceeded, result.FinalStatus)
	assert.Equal(t, 0, gateway.retrieveCalls)
}

var registrationColumns = []string{
	"correlation_id", "payment_reference", "event_slug", "amount_cents", "currency",
	"first_name", "last_name", "email", "phone", "age", "grade", "gender",
	"t_shirt_size", "experience", "guardian_name", "guardian_phone",
	"payment_status", "checksum", "client_ip", "user_agent", "created_at", "completed_at",
}

// storedRegistration builds a registration the way the store would return it,
// checksum included.
func storedRegistration(correlationID, reference, status string, createdAt time.Time) *model.Registration {
	reg := &model.Registration{
		CorrelationID:    correlationID,
		PaymentReference: reference,
		EventSlug:        "birmingham-slam-camp",
		AmountCents:      24900,
		Currency:         "USD",
		FirstName:        "Miles",
		LastName:         "Harper",
		Email:            "miles.harper@example.com",
		Phone:            "205-555-0134",
		Age:              12,
		Grade:            "6th",
		Gender:           "male",
		TShirtSize:       "YL",
		Experience:       "intermediate",
		GuardianName:     "Dana Harper",
		GuardianPhone:    "205-555-0199",
		PaymentStatus:    status,
		CreatedAt:        createdAt,
	}
	reg.Checksum = reg.ComputeChecksum()
	return reg
}

func registrationRows(reg *model.Registration) *sqlmock.Rows {
	var completedAt interface{}
	if reg.CompletedAt != nil {
		completedAt = *reg.CompletedAt
	}
	return sqlmock.NewRows(registrationColumns).AddRow(
		reg.CorrelationID, reg.PaymentReference, reg.EventSlug, reg.AmountCents, reg.Currency,
		reg.FirstName, reg.LastName, reg.Email, reg.Phone, reg.Age, reg.Grade, reg.Gender,
		reg.TShirtSize, reg.Experience, reg.GuardianName, reg.GuardianPhone,
		reg.PaymentStatus, reg.Checksum, reg.ClientIP, reg.UserAgent, reg.CreatedAt, completedAt,
	)
}

func lockdownRows(reference, correlationID string, amountCents int64, createdAt time.Time) *sqlmock.Rows {
	columns := []string{
		"payment_reference", "correlation_id", "amount_cents", "currency", "event_slug",
		"status", "secret_hash", "client_ip", "user_agent", "created_at", "status_updated_at",
	}
	return sqlmock.NewRows(columns).AddRow(
		reference, correlationID, amountCents, "USD", "birmingham-slam-camp",
		model.StatusProcessing, "", "", "", createdAt, createdAt,
	)
}
