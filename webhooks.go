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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/danhollis/regpay/config"
	"github.com/danhollis/regpay/model"
)

// NewWebhook represents the structure of a webhook notification sent to the
// downstream order-creation collaborator.
type NewWebhook struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// postJSON sends a JSON payload to a collaborator endpoint. Non-2XX responses
// are logged and swallowed: side-system failures never affect registration
// correctness.
func postJSON(url string, headers map[string]string, body interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		log.Println("Error marshaling data:", err)
		return err
	}
	payload := bytes.NewBuffer(jsonData)

	req, err := http.NewRequest("POST", url, payload)
	if err != nil {
		log.Println("Error creating request:", err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		log.Println("Error sending request:", err)
		return err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logrus.Error(err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Request failed with status code: %d\n", resp.StatusCode)
		return nil
	}

	log.Println("Notification sent successfully:", url)
	return nil
}

// ProcessOrderWebhook processes an order-creation webhook task from the queue.
func ProcessOrderWebhook(_ context.Context, t *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	var hook NewWebhook
	if err := json.Unmarshal(t.Payload(), &hook); err != nil {
		return err
	}
	return postJSON(conf.Notification.Webhook.Url, conf.Notification.Webhook.Headers, hook)
}

// ProcessConfirmationEmail processes a confirmation email task from the queue.
func ProcessConfirmationEmail(_ context.Context, t *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Email.Url == "" {
		return nil
	}

	var reg model.Registration
	if err := json.Unmarshal(t.Payload(), &reg); err != nil {
		return err
	}
	return postJSON(conf.Notification.Email.Url, nil, map[string]interface{}{
		"template":       "registration-confirmation",
		"to":             reg.Email,
		"first_name":     reg.FirstName,
		"event_slug":     reg.EventSlug,
		"correlation_id": reg.CorrelationID,
	})
}
