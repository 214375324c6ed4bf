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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/danhollis/regpay/config"
	"github.com/danhollis/regpay/internal/request"
)

// HTTPGateway talks to the processor's payment-intent API over JSON/HTTP.
// Calls carry a bounded timeout and at most one retry; the idempotency key on
// creation makes the retry safe against duplicate authorizations.
type HTTPGateway struct {
	baseURL   string
	secretKey string
	client    *http.Client
}

func NewHTTPGateway(conf *config.Configuration) *HTTPGateway {
	return &HTTPGateway{
		baseURL:   conf.Payment.ApiUrl,
		secretKey: conf.Payment.SecretKey,
		client: &http.Client{
			Timeout: time.Duration(conf.Payment.TimeoutSec) * time.Second,
		},
	}
}

func (g *HTTPGateway) CreateIntent(ctx context.Context, createReq CreateIntentRequest) (*Intent, error) {
	body, err := json.Marshal(&createReq)
	if err != nil {
		return nil, err
	}

	headers := map[string]string{
		"Idempotency-Key": createReq.Metadata.CorrelationID,
	}
	return g.call(ctx, http.MethodPost, fmt.Sprintf("%s/v1/payment_intents", g.baseURL), body, headers)
}

func (g *HTTPGateway) RetrieveIntent(ctx context.Context, reference string) (*Intent, error) {
	return g.call(ctx, http.MethodGet, fmt.Sprintf("%s/v1/payment_intents/%s", g.baseURL, reference), nil, nil)
}

// call executes the request with a single retry on transport errors and 5xx
// responses. 4xx responses are terminal; retrying them cannot help. The
// request is rebuilt per attempt so a consumed body never gets resent empty.
func (g *HTTPGateway) call(ctx context.Context, method, url string, body []byte, headers map[string]string) (*Intent, error) {
	var intent Intent

	operation := func() error {
		var payload *bytes.Buffer
		var req *http.Request
		var err error
		if body != nil {
			payload = bytes.NewBuffer(body)
			req, err = http.NewRequestWithContext(ctx, method, url, payload)
		} else {
			req, err = http.NewRequestWithContext(ctx, method, url, nil)
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", fmt.Sprintf("Basic %s", request.BasicAuth(g.secretKey, "")))
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := request.Call(req, &intent, g.client)
		if err != nil {
			logrus.Warnf("payment gateway call failed: %v", err)
			return err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("payment gateway returned status %d", resp.StatusCode)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return backoff.Permanent(fmt.Errorf("payment gateway rejected request with status %d", resp.StatusCode))
		}
		return nil
	}

	err := backoff.Retry(operation, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 1))
	if err != nil {
		return nil, err
	}
	return &intent, nil
}
