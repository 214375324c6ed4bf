package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danhollis/regpay/internal/apierror"
	"github.com/danhollis/regpay/model"
)

func (d Datasource) RecordCriticalError(ctx context.Context, entry *model.ErrorLogEntry) error {
	contextJSON, err := json.Marshal(entry.Context)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal error context", err)
	}

	_, err = d.Conn.ExecContext(ctx,
		`INSERT INTO registration_error_log(error_id,code,severity,correlation_id,payment_reference,email,event_slug,message,context,resolved,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		entry.ErrorID, entry.Code, entry.Severity, entry.CorrelationID, entry.PaymentReference,
		entry.Email, entry.EventSlug, entry.Message, contextJSON, entry.Resolved, entry.CreatedAt,
	)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record critical error", err)
	}
	return nil
}

func (d Datasource) GetUnresolvedErrors(ctx context.Context, limit, offset int) ([]*model.ErrorLogEntry, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT error_id, code, severity, correlation_id, payment_reference, email, event_slug, message, context, resolved, resolved_by, resolution_action, created_at, resolved_at
		FROM registration_error_log
		WHERE resolved = FALSE
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve error log entries", err)
	}
	defer rows.Close()

	var entries []*model.ErrorLogEntry
	for rows.Next() {
		entry := &model.ErrorLogEntry{}
		var contextJSON []byte
		var correlationID, reference, email, eventSlug, resolvedBy, action sql.NullString
		var resolvedAt sql.NullTime
		err = rows.Scan(
			&entry.ErrorID, &entry.Code, &entry.Severity, &correlationID, &reference,
			&email, &eventSlug, &entry.Message, &contextJSON, &entry.Resolved,
			&resolvedBy, &action, &entry.CreatedAt, &resolvedAt,
		)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan error log entry", err)
		}
		entry.CorrelationID = correlationID.String
		entry.PaymentReference = reference.String
		entry.Email = email.String
		entry.EventSlug = eventSlug.String
		entry.ResolvedBy = resolvedBy.String
		entry.ResolutionAction = action.String
		if resolvedAt.Valid {
			entry.ResolvedAt = &resolvedAt.Time
		}
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &entry.Context); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal error context", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error iterating error log entries", err)
	}
	return entries, nil
}

func (d Datasource) ResolveCriticalError(ctx context.Context, errorID, resolvedBy, action string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE registration_error_log
		SET resolved = TRUE, resolved_by = $2, resolution_action = $3, resolved_at = $4
		WHERE error_id = $1 AND resolved = FALSE
	`, errorID, resolvedBy, action, time.Now())
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to resolve error log entry", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Unresolved error log entry '%s' not found", errorID), nil)
	}
	return nil
}
