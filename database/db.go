package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/danhollis/regpay/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and
// initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	err = createRegistrationTable(db)
	if err != nil {
		return nil, err
	}
	err = createLockdownTable(db)
	if err != nil {
		return nil, err
	}
	err = createErrorLogTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createRegistrationTable creates a PostgreSQL table for the Registration
// struct. The two named unique constraints carry the duplicate-registration and
// payment-reference-reuse guarantees; their names are relied on when
// translating unique violations.
func createRegistrationTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS registrations (
			id SERIAL PRIMARY KEY,
			correlation_id TEXT NOT NULL UNIQUE,
			payment_reference TEXT NOT NULL,
			event_slug TEXT NOT NULL,
			amount_cents BIGINT NOT NULL,
			currency TEXT NOT NULL,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			email TEXT NOT NULL,
			phone TEXT NOT NULL,
			age INTEGER NOT NULL,
			grade TEXT NOT NULL,
			gender TEXT NOT NULL,
			t_shirt_size TEXT NOT NULL,
			experience TEXT NOT NULL,
			guardian_name TEXT NOT NULL,
			guardian_phone TEXT NOT NULL,
			payment_status TEXT NOT NULL,
			checksum TEXT NOT NULL,
			client_ip TEXT,
			user_agent TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMP,
			CONSTRAINT registrations_email_event_key UNIQUE (email, event_slug),
			CONSTRAINT registrations_payment_reference_key UNIQUE (payment_reference)
		)
	`)
	return err
}

// createLockdownTable creates a PostgreSQL table for the PaymentLockdown
// struct.
func createLockdownTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payment_lockdowns (
			id SERIAL PRIMARY KEY,
			payment_reference TEXT NOT NULL,
			correlation_id TEXT NOT NULL,
			amount_cents BIGINT NOT NULL,
			currency TEXT NOT NULL,
			event_slug TEXT NOT NULL,
			status TEXT NOT NULL,
			secret_hash TEXT,
			client_ip TEXT,
			user_agent TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			status_updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			CONSTRAINT payment_lockdowns_reference_key UNIQUE (payment_reference)
		)
	`)
	return err
}

// createErrorLogTable creates a PostgreSQL table for the ErrorLogEntry struct.
func createErrorLogTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS registration_error_log (
			id SERIAL PRIMARY KEY,
			error_id TEXT NOT NULL UNIQUE,
			code TEXT NOT NULL,
			severity TEXT NOT NULL,
			correlation_id TEXT,
			payment_reference TEXT,
			email TEXT,
			event_slug TEXT,
			message TEXT NOT NULL,
			context JSONB,
			resolved BOOLEAN NOT NULL DEFAULT FALSE,
			resolved_by TEXT,
			resolution_action TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			resolved_at TIMESTAMP
		)
	`)
	return err
}
