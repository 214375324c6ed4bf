package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/danhollis/regpay/internal/apierror"
	"github.com/danhollis/regpay/model"
)

func (d Datasource) GetLockdown(ctx context.Context, reference string) (*model.PaymentLockdown, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT payment_reference, correlation_id, amount_cents, currency, event_slug, status, secret_hash, client_ip, user_agent, created_at, status_updated_at
		FROM payment_lockdowns
		WHERE payment_reference = $1
	`, reference)

	lock := &model.PaymentLockdown{}
	err := row.Scan(
		&lock.PaymentReference, &lock.CorrelationID, &lock.AmountCents, &lock.Currency,
		&lock.EventSlug, &lock.Status, &lock.SecretHash, &lock.ClientIP, &lock.UserAgent,
		&lock.CreatedAt, &lock.StatusUpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Lockdown for payment reference '%s' not found", reference), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve payment lockdown", err)
	}
	return lock, nil
}

func (d Datasource) UpdateLockdownStatus(ctx context.Context, reference, status string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE payment_lockdowns
		SET status = $2, status_updated_at = NOW()
		WHERE payment_reference = $1
	`, reference, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update lockdown status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Lockdown for payment reference '%s' not found", reference), nil)
	}
	return nil
}
