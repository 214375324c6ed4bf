package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/danhollis/regpay/internal/apierror"
	"github.com/danhollis/regpay/model"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// translateUniqueViolation maps a Postgres unique-constraint violation to the
// domain error it represents. Two concurrent creation attempts race safely:
// exactly one wins, the loser lands here.
func translateUniqueViolation(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return nil
	}
	switch pqErr.Constraint {
	case "registrations_email_event_key":
		return apierror.NewAPIError(apierror.ErrAlreadyRegistered, "A registration already exists for this email and event", err)
	case "registrations_payment_reference_key", "payment_lockdowns_reference_key":
		return apierror.NewAPIError(apierror.ErrRegistrationCreation, "Payment reference is already bound to another registration", err)
	default:
		return apierror.NewAPIError(apierror.ErrConflict, "Unique constraint violation", err)
	}
}

// RecordRegistrationWithLockdown inserts the registration row and its bound
// lockdown row in a single transaction. Either both commit or neither does;
// partial writes are impossible.
func (d Datasource) RecordRegistrationWithLockdown(ctx context.Context, reg *model.Registration, lock *model.PaymentLockdown) error {
	ctx, span := otel.Tracer("registration.store").Start(ctx, "Saving registration with lockdown")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO registrations(correlation_id,payment_reference,event_slug,amount_cents,currency,first_name,last_name,email,phone,age,grade,gender,t_shirt_size,experience,guardian_name,guardian_phone,payment_status,checksum,client_ip,user_agent,created_at,completed_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		reg.CorrelationID, reg.PaymentReference, reg.EventSlug, reg.AmountCents, reg.Currency,
		reg.FirstName, reg.LastName, reg.Email, reg.Phone, reg.Age, reg.Grade, reg.Gender,
		reg.TShirtSize, reg.Experience, reg.GuardianName, reg.GuardianPhone,
		reg.PaymentStatus, reg.Checksum, reg.ClientIP, reg.UserAgent, reg.CreatedAt, reg.CompletedAt,
	)
	if err != nil {
		if translated := translateUniqueViolation(err); translated != nil {
			return translated
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record registration", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO payment_lockdowns(payment_reference,correlation_id,amount_cents,currency,event_slug,status,secret_hash,client_ip,user_agent,created_at,status_updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		lock.PaymentReference, lock.CorrelationID, lock.AmountCents, lock.Currency, lock.EventSlug,
		lock.Status, lock.SecretHash, lock.ClientIP, lock.UserAgent, lock.CreatedAt, lock.StatusUpdatedAt,
	)
	if err != nil {
		if translated := translateUniqueViolation(err); translated != nil {
			return translated
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record payment lockdown", err)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit registration", err)
	}
	return nil
}

func (d Datasource) GetRegistrationByCorrelationID(ctx context.Context, correlationID string) (*model.Registration, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT correlation_id, payment_reference, event_slug, amount_cents, currency, first_name, last_name, email, phone, age, grade, gender, t_shirt_size, experience, guardian_name, guardian_phone, payment_status, checksum, client_ip, user_agent, created_at, completed_at
		FROM registrations
		WHERE correlation_id = $1
	`, correlationID)

	return scanRegistration(row, fmt.Sprintf("Registration with correlation id '%s' not found", correlationID))
}

func (d Datasource) GetRegistrationByPaymentRef(ctx context.Context, reference string) (*model.Registration, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT correlation_id, payment_reference, event_slug, amount_cents, currency, first_name, last_name, email, phone, age, grade, gender, t_shirt_size, experience, guardian_name, guardian_phone, payment_status, checksum, client_ip, user_agent, created_at, completed_at
		FROM registrations
		WHERE payment_reference = $1
	`, reference)

	return scanRegistration(row, fmt.Sprintf("Registration with payment reference '%s' not found", reference))
}

func scanRegistration(row *sql.Row, notFoundMsg string) (*model.Registration, error) {
	reg := &model.Registration{}
	var completedAt sql.NullTime
	err := row.Scan(
		&reg.CorrelationID, &reg.PaymentReference, &reg.EventSlug, &reg.AmountCents, &reg.Currency,
		&reg.FirstName, &reg.LastName, &reg.Email, &reg.Phone, &reg.Age, &reg.Grade, &reg.Gender,
		&reg.TShirtSize, &reg.Experience, &reg.GuardianName, &reg.GuardianPhone,
		&reg.PaymentStatus, &reg.Checksum, &reg.ClientIP, &reg.UserAgent, &reg.CreatedAt, &completedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, notFoundMsg, err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve registration", err)
	}
	if completedAt.Valid {
		reg.CompletedAt = &completedAt.Time
	}
	return reg, nil
}

func (d Datasource) RegistrationExistsByEmailAndEvent(ctx context.Context, email, eventSlug string) (bool, error) {
	ctx, span := otel.Tracer("registration.store").Start(ctx, "Checking registration by email and event")
	defer span.End()

	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM registrations WHERE email = $1 AND event_slug = $2)
	`, email, eventSlug).Scan(&exists)
	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check if registration exists", err)
	}
	return exists, nil
}

// MarkPaymentSucceeded advances the registration and its lockdown to succeeded
// in one transaction. The status guard in the WHERE clause keeps the update
// forward-only even under racing verifications.
func (d Datasource) MarkPaymentSucceeded(ctx context.Context, correlationID, reference string, completedAt time.Time) error {
	ctx, span := otel.Tracer("registration.store").Start(ctx, "Marking payment succeeded")
	defer span.End()

	tx, err := d.Conn.BeginTx(ctx, nil)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := tx.ExecContext(ctx, `
		UPDATE registrations
		SET payment_status = $2, completed_at = $3
		WHERE correlation_id = $1 AND payment_status NOT IN ($2, $4)
	`, correlationID, model.StatusSucceeded, completedAt, model.StatusFailed)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update registration status", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Registration '%s' not found or already terminal", correlationID), nil)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payment_lockdowns
		SET status = $2, status_updated_at = $3
		WHERE payment_reference = $1
	`, reference, model.StatusSucceeded, completedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update lockdown status", err)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit status update", err)
	}
	return nil
}

func (d Datasource) UpdatePaymentStatus(ctx context.Context, correlationID, status string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE registrations
		SET payment_status = $2
		WHERE correlation_id = $1 AND payment_status NOT IN ($3)
	`, correlationID, status, model.StatusSucceeded)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update payment status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Registration '%s' not found or already succeeded", correlationID), nil)
	}
	return nil
}

func (d Datasource) GetRegistrationsPaginated(ctx context.Context, limit, offset int) ([]*model.Registration, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT correlation_id, payment_reference, event_slug, amount_cents, currency, first_name, last_name, email, phone, age, grade, gender, t_shirt_size, experience, guardian_name, guardian_phone, payment_status, checksum, client_ip, user_agent, created_at, completed_at
		FROM registrations
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve registrations", err)
	}
	defer rows.Close()

	var registrations []*model.Registration
	for rows.Next() {
		reg := &model.Registration{}
		var completedAt sql.NullTime
		err = rows.Scan(
			&reg.CorrelationID, &reg.PaymentReference, &reg.EventSlug, &reg.AmountCents, &reg.Currency,
			&reg.FirstName, &reg.LastName, &reg.Email, &reg.Phone, &reg.Age, &reg.Grade, &reg.Gender,
			&reg.TShirtSize, &reg.Experience, &reg.GuardianName, &reg.GuardianPhone,
			&reg.PaymentStatus, &reg.Checksum, &reg.ClientIP, &reg.UserAgent, &reg.CreatedAt, &completedAt,
		)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan registration", err)
		}
		if completedAt.Valid {
			reg.CompletedAt = &completedAt.Time
		}
		registrations = append(registrations, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating registrations", err)
	}
	return registrations, nil
}

func (d Datasource) CountRegistrations(ctx context.Context) (int64, error) {
	var count int64
	err := d.Conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations`).Scan(&count)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to count registrations", err)
	}
	return count, nil
}
