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
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/danhollis/regpay"
	"github.com/danhollis/regpay/config"
	"github.com/danhollis/regpay/database"
	"github.com/danhollis/regpay/internal/notification"
	"github.com/danhollis/regpay/payment"
)

// Regpay represents the CLI application, encapsulating the root Cobra command.
type Regpay struct {
	cmd *cobra.Command
}

// regpayInstance holds the service instance and its configuration.
type regpayInstance struct {
	regpay *regpay.Regpay
	cnf    *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// setupRegpay wires the datasource and payment gateway into a service
// instance.
func setupRegpay(cnf *config.Configuration) (*regpay.Regpay, error) {
	db, err := database.NewDataSource(cnf)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}
	gateway := payment.NewHTTPGateway(cnf)
	newRegpay, err := regpay.NewRegpay(db, gateway)
	if err != nil {
		return nil, fmt.Errorf("error creating regpay: %v", err)
	}
	return newRegpay, nil
}

// preRun sets up the configuration and initializes the service instance
// before running any command.
func preRun(app *regpayInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("regpay.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newRegpay, err := setupRegpay(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}

		app.regpay = newRegpay
		app.cnf = cnf

		return nil
	}
}

// NewCLI initializes the command-line interface.
func NewCLI() *Regpay {
	var app regpayInstance

	var rootCmd = &cobra.Command{
		Use:   "regpay",
		Short: "Registration-to-payment correlation service",
		Run: func(cmd *cobra.Command, args []string) {
			if err := cmd.Help(); err != nil {
				log.Println(err)
			}
		},
	}
	rootCmd.PersistentPreRunE = preRun(&app)

	rootCmd.AddCommand(serverCommands(&app))
	rootCmd.AddCommand(workerCommands(&app))

	return &Regpay{cmd: rootCmd}
}

func (w Regpay) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()
	cli := NewCLI()
	cli.executeCLI()
}
