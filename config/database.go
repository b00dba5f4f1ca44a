package config

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

func InitDB(dbURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

// userOwnedTables get row-level security keyed on app.current_user_id.
var userOwnedTables = []string{"bank_items", "accounts", "transactions", "subscriptions", "forecasts", "alerts"}

func RunMigrations(db *sql.DB) error {
	migrations := []string{
		`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			totp_secret VARCHAR(255),
			totp_enabled BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS bank_items (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			item_id VARCHAR(255) NOT NULL,
			access_token TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT NOW(),
			UNIQUE(user_id, item_id)
		)`,

		`CREATE TABLE IF NOT EXISTS accounts (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			plaid_account_id VARCHAR(255),
			name VARCHAR(255) NOT NULL,
			type VARCHAR(50) NOT NULL,
			subtype VARCHAR(50),
			balance NUMERIC(14,2) DEFAULT 0,
			created_at TIMESTAMP DEFAULT NOW(),
			UNIQUE(user_id, name, type)
		)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			account_id UUID REFERENCES accounts(id) ON DELETE CASCADE,
			plaid_transaction_id VARCHAR(255),
			description TEXT NOT NULL,
			merchant_name TEXT,
			date DATE NOT NULL,
			amount NUMERIC(14,2) NOT NULL,
			category TEXT DEFAULT 'Uncategorized',
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS subscriptions (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			merchant VARCHAR(255) NOT NULL,
			amount NUMERIC(14,2),
			frequency VARCHAR(50),
			status VARCHAR(50) DEFAULT 'active',
			negotiation_email TEXT,
			contact_email VARCHAR(255),
			email_sent BOOLEAN DEFAULT FALSE,
			updated_at TIMESTAMP DEFAULT NOW(),
			UNIQUE(user_id, merchant)
		)`,

		`CREATE TABLE IF NOT EXISTS forecasts (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			total_30day_forecast NUMERIC(14,2) NOT NULL,
			weekly_breakdown JSONB,
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type VARCHAR(50) NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_user_date ON transactions(user_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_plaid_id ON transactions(plaid_transaction_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_user_plaid_id ON transactions(user_id, plaid_transaction_id) WHERE plaid_transaction_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_forecasts_user ON forecasts(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_id, created_at)`,
	}

	for _, table := range userOwnedTables {
		migrations = append(migrations,
			fmt.Sprintf(`ALTER TABLE %s ENABLE ROW LEVEL SECURITY`, table),
			fmt.Sprintf(`ALTER TABLE %s FORCE ROW LEVEL SECURITY`, table),
			fmt.Sprintf(`DROP POLICY IF EXISTS owner_isolation ON %s`, table),
			fmt.Sprintf(`CREATE POLICY owner_isolation ON %s USING (user_id::text = current_setting('app.current_user_id', true)) WITH CHECK (user_id::text = current_setting('app.current_user_id', true))`, table),
		)
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	return nil
}
