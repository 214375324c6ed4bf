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
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/danhollis/regpay/config"
	redis_db "github.com/danhollis/regpay/internal/redis-db"
	"github.com/danhollis/regpay/model"
)

// Queue carries post-transition side effects (confirmation email, downstream
// order creation). Task ids are derived from the correlation id, so a repeated
// enqueue for the same registration is dropped by the broker.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// NewQueue initializes a new Queue instance with the provided configuration.
func NewQueue(conf *config.Configuration) *Queue {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		logrus.Warnf("Error parsing Redis URL: %v", err)
		redisOption = &redis.Options{Addr: conf.Redis.Dns}
	}

	queueOptions := asynq.RedisClientOpt{Addr: redisOption.Addr, Password: redisOption.Password, DB: redisOption.DB, TLSConfig: redisOption.TLSConfig}
	client := asynq.NewClient(queueOptions)
	inspector := asynq.NewInspector(queueOptions)
	return &Queue{
		Client:    client,
		Inspector: inspector,
	}
}

// queueConfirmation enqueues the confirmation email task for a succeeded
// registration.
func (q *Queue) queueConfirmation(reg *model.Registration) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(reg)
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.TaskID(fmt.Sprintf("%s:confirmation", reg.CorrelationID)),
		asynq.Queue(cfg.Queue.ConfirmationQueue),
	}
	task := asynq.NewTask(cfg.Queue.ConfirmationQueue, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued confirmation: %+v", reg.CorrelationID)
	return nil
}

// queueOrderWebhook enqueues the downstream order-creation webhook task.
func (q *Queue) queueOrderWebhook(reg *model.Registration) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(NewWebhook{
		Event:   "registration.succeeded",
		Payload: reg,
	})
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.TaskID(fmt.Sprintf("%s:order-webhook", reg.CorrelationID)),
		asynq.Queue(cfg.Queue.OrderWebhookQueue),
	}
	task := asynq.NewTask(cfg.Queue.OrderWebhookQueue, payload, taskOptions...)
	info, err := q.Client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	log.Printf(" [*] Successfully enqueued order webhook: %+v", reg.CorrelationID)
	return nil
}
