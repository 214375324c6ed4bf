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
package api

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/danhollis/regpay"
	model2 "github.com/danhollis/regpay/api/model"
	"github.com/danhollis/regpay/internal/apierror"

	"github.com/gin-gonic/gin"
)

// CreateRegistration handles the creation of a new registration. The payload
// is validated in full before any payment action; all violations come back in
// one response.
//
// Responses:
// - 400 Bad Request: binding or validation failure, with the violation list.
// - 409 Conflict: a registration already exists for this email and event.
// - 201 Created: correlation id and client payment handle.
func (a Api) CreateRegistration(c *gin.Context) {
	var newRegistration model2.CreateRegistration
	if err := c.ShouldBindJSON(&newRegistration); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "code": apierror.ErrInvalidInput})
		return
	}

	if err := newRegistration.ValidateCreateRegistration(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Registration payload failed validation", "code": apierror.ErrValidationFailed, "violations": err})
		return
	}

	resp, err := a.regpay.CreateRegistration(c.Request.Context(), newRegistration.ToRegistration(), regpay.ClientContext{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// VerifyPayment re-enters the correlation flow after the registrant completes
// payment externally. Safe to call repeatedly; webhooks may deliver
// at-least-once.
func (a Api) VerifyPayment(c *gin.Context) {
	var verify model2.VerifyPayment
	if err := c.ShouldBindJSON(&verify); err != nil {
		logrus.Error(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "code": apierror.ErrInvalidInput})
		return
	}
	if verify.PaymentReference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment_reference is required", "code": apierror.ErrInvalidInput})
		return
	}

	resp, err := a.regpay.VerifyPayment(c.Request.Context(), verify.PaymentReference)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetRegistration returns a registration summary plus its integrity flag.
func (a Api) GetRegistration(c *gin.Context) {
	correlationID, passed := c.Params.Get("correlation_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "correlation_id is required. pass id in the route /:correlation_id", "code": apierror.ErrInvalidInput})
		return
	}

	reg, integrityValid, err := a.regpay.GetRegistration(c.Request.Context(), correlationID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"registration": reg, "integrity_valid": integrityValid})
}

// AuditRegistrations runs the full integrity sweep and reports every
// corrupted record. Nothing is repaired here.
func (a Api) AuditRegistrations(c *gin.Context) {
	report, err := a.regpay.AuditAll(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetUnresolvedErrors lists open critical error ledger entries.
func (a Api) GetUnresolvedErrors(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit", "code": apierror.ErrInvalidInput})
		return
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset", "code": apierror.ErrInvalidInput})
		return
	}

	entries, err := a.regpay.GetUnresolvedErrors(c.Request.Context(), limit, offset)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

// ResolveError marks a critical error ledger entry resolved.
func (a Api) ResolveError(c *gin.Context) {
	errorID, passed := c.Params.Get("error_id")
	if !passed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "error_id is required. pass id in the route /:error_id", "code": apierror.ErrInvalidInput})
		return
	}

	var resolve model2.ResolveError
	if err := c.ShouldBindJSON(&resolve); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input", "code": apierror.ErrInvalidInput})
		return
	}
	if resolve.ResolvedBy == "" || resolve.Action == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "resolved_by and action are required", "code": apierror.ErrInvalidInput})
		return
	}

	if err := a.regpay.ResolveCriticalError(c.Request.Context(), errorID, resolve.ResolvedBy, resolve.Action); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": true})
}

// handleServiceError renders a service error with its stable machine code.
// Internal detail stays in the ledger; the client sees code and message only.
func handleServiceError(c *gin.Context, err error) {
	status := apierror.MapErrorToHTTPStatus(err)
	if apiErr, ok := err.(apierror.APIError); ok {
		body := gin.H{"error": apiErr.Message, "code": apiErr.Code}
		if apiErr.Code == apierror.ErrValidationFailed && apiErr.Details != nil {
			body["violations"] = apiErr.Details
		}
		c.JSON(status, body)
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": apierror.ErrInternalServer})
}
