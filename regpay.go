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
	"github.com/danhollis/regpay/config"
	"github.com/danhollis/regpay/database"
	"github.com/danhollis/regpay/payment"
)

// Regpay is the registration-to-payment correlation service. Its collaborators
// are injected at construction: the datasource carries every correctness
// guarantee (uniqueness, atomicity), the gateway is the external payment
// processor, and the queue carries post-transition side effects.
type Regpay struct {
	queue      *Queue
	datasource database.IDataSource
	gateway    payment.Gateway
}

// NewRegpay initializes a new instance of Regpay with the provided datasource
// and payment gateway.
func NewRegpay(db database.IDataSource, gateway payment.Gateway) (*Regpay, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	newRegpay := &Regpay{datasource: db, gateway: gateway, queue: newQueue}
	return newRegpay, nil
}
