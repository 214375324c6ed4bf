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

package main

import (
	"log"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/danhollis/regpay"
	"github.com/danhollis/regpay/config"
	redis_db "github.com/danhollis/regpay/internal/redis-db"
)

func initializeQueues(conf *config.Configuration) map[string]int {
	return map[string]int{
		conf.Queue.ConfirmationQueue: 3,
		conf.Queue.OrderWebhookQueue: 1,
	}
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.ParseRedisURL(conf.Redis.Dns)
	if err != nil {
		return nil, err
	}
	return asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:      redisOption.Addr,
			Password:  redisOption.Password,
			DB:        redisOption.DB,
			TLSConfig: redisOption.TLSConfig,
		},
		asynq.Config{
			Concurrency: 10,
			Queues:      queues,
		},
	), nil
}

func initializeTaskHandlers(conf *config.Configuration, mux *asynq.ServeMux) {
	mux.HandleFunc(conf.Queue.ConfirmationQueue, regpay.ProcessConfirmationEmail)
	mux.HandleFunc(conf.Queue.OrderWebhookQueue, regpay.ProcessOrderWebhook)
}

func workerCommands(b *regpayInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workers",
		Short: "start side-effect workers (confirmation email, order webhooks)",
		Run: func(cmd *cobra.Command, args []string) {
			conf, err := config.Fetch()
			if err != nil {
				log.Fatal(err)
			}

			queues := initializeQueues(conf)
			srv, err := initializeWorkerServer(conf, queues)
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(conf, mux)

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run worker server: %v", err)
			}
		},
	}
	return cmd
}
