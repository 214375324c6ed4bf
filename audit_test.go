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
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/danhollis/regpay/model"
)

func TestGetRegistration_IntegrityValid(t *testing.T) {
	datasource, mock, err := newTestDataSource()
	assert.NoError(t, err)

	r, err := NewRegpay(datasource, &fakeGateway{})
	assert.NoError(t, err)

	now := time.Now()
	reg := storedRegistration("reg_test-1", "pi_test-1", model.StatusSucceeded, now)

	mock.ExpectQuery("SELECT .* FROM registrations").
		WillReturnRows(registrationRows(reg))
	mock.ExpectQuery("SELECT .* FROM payment_lockdowns").
		WillReturnRows(lockdownRows("pi_test-1", "reg_test-1", reg.AmountCents, now))

	got, integrityValid, err := r.GetRegistration(context.Background(), "reg_test-1")
	assert.NoError(t, err)
	assert.True(t, integrityValid)
	assert.Equal(t, "reg_test-1", got.CorrelationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRegistration_ChecksumMismatch(t *testing.T) {
	datasource, mock, err := newTestDataSource()
	assert.NoError(t, err)

	r, err := NewRegpay(datasource, &fakeGateway{})
	assert.NoError(t, err)

	now := time.Now()
	reg := storedRegistration("reg_test-1", "pi_test-1", model.StatusSucceeded, now)
	// Simulate a tampered row: the stored amount no longer matches the
	// checksummed one.
	reg.AmountCents = 100

	mock.ExpectQuery("SELECT .* FROM registrations").
		WillReturnRows(registrationRows(reg))
	mock.ExpectQuery("SELECT .* FROM payment_lockdowns").
		WillReturnRows(lockdownRows("pi_test-1", "reg_test-1", 100, now))
	mock.ExpectExec("INSERT INTO registration_error_log").
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, integrityValid, err := r.GetRegistration(context.Background(), "reg_test-1")
	assert.NoError(t, err)
	assert.False(t, integrityValid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRegistration_LockdownMissing(t *testing.T) {
	datasource, mock, err := newTestDataSource()
	assert.NoError(t, err)

	r, err := NewRegpay(datasource, &fakeGateway{})
	assert.NoError(t, err)

	now := time.Now()
	reg := storedRegistration("reg_test-1", "pi_test-1", model.StatusSucceeded, now)

	mock.ExpectQuery("SELECT .* FROM registrations").
		WillReturnRows(registrationRows(reg))
	mock.ExpectQuery("SELECT .* FROM payment_lockdowns").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO registration_error_log").
		WillReturnResult(sqlmock.NewResult(1, 1))

	fault, err := r.AuditRegistration(context.Background(), "reg_test-1")
	assert.NoError(t, err)
	assert.NotNil(t, fault)
	assert.Contains(t, fault.Reasons, "lockdown row missing")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditAll(t *testing.T) {
	datasource, mock, err := newTestDataSource()
	assert.NoError(t, err)

	r, err := NewRegpay(datasource, &fakeGateway{})
	assert.NoError(t, err)

	now := time.Now()
	valid := storedRegistration("reg_test-1", "pi_test-1", model.StatusSucceeded, now)
	corrupted := storedRegistration("reg_test-2", "pi_test-2", model.StatusSucceeded, now)

	rows := sqlmock.NewRows(registrationColumns)
	for _, reg := range []*model.Registration{valid, corrupted} {
		rows.AddRow(
			reg.CorrelationID, reg.PaymentReference, reg.EventSlug, reg.AmountCents, reg.Currency,
			reg.FirstName, reg.LastName, reg.Email, reg.Phone, reg.Age, reg.Grade, reg.Gender,
			reg.TShirtSize, reg.Experience, reg.GuardianName, reg.GuardianPhone,
			reg.PaymentStatus, reg.Checksum, reg.ClientIP, reg.UserAgent, reg.CreatedAt, nil,
		)
	}

	mock.ExpectQuery("SELECT .* FROM registrations").
		WillReturnRows(rows)

	mock.ExpectQuery("SELECT .* FROM payment_lockdowns").
		WillReturnRows(lockdownRows("pi_test-1", "reg_test-1", valid.AmountCents, now))

	// Second lockdown carries a different amount than the locked price.
	mock.ExpectQuery("SELECT .* FROM payment_lockdowns").
		WillReturnRows(lockdownRows("pi_test-2", "reg_test-2", 100, now))
	mock.ExpectExec("INSERT INTO registration_error_log").
		WillReturnResult(sqlmock.NewResult(1, 1))

	report, err := r.AuditAll(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(2), report.Total)
	assert.Equal(t, int64(1), report.Valid)
	assert.Len(t, report.Corrupted, 1)
	assert.Equal(t, "reg_test-2", report.Corrupted[0].CorrelationID)
	assert.Contains(t, report.Corrupted[0].Reasons, "lockdown amount does not match locked price")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditAll_Empty(t *testing.T) {
	datasource, mock, err := newTestDataSource()
	assert.NoError(t, err)

	r, err := NewRegpay(datasource, &fakeGateway{})
	assert.NoError(t, err)

	mock.ExpectQuery("SELECT .* FROM registrations").
		WillReturnRows(sqlmock.NewRows(registrationColumns))

	report, err := r.AuditAll(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(0), report.Total)
	assert.Empty(t, report.Corrupted)
}
