package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/LovationAdmin/finance-assistant/models"

	"github.com/lib/pq"
)

var (
	ErrEmailTaken   = errors.New("email already registered")
	ErrUserNotFound = errors.New("user not found")
	ErrNoBankItem   = errors.New("no linked bank item")
)

// Store persists everything the dashboard needs in Postgres. Every user-owned
// query runs inside withUser so the row-level policies see the caller.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) withUser(ctx context.Context, userID string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT set_config('app.current_user_id', $1, true)`, userID); err != nil {
		return fmt.Errorf("set user scope: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// ============================================================================
// USERS
// ============================================================================

func (s *Store) CreateUser(ctx context.Context, email, passwordHash, name string) (*models.User, error) {
	user := &models.User{Email: email, Name: name}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, password_hash, name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, email, passwordHash, name).Scan(&user.ID, &user.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `WHERE email = $1`, email)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.getUser(ctx, `WHERE id = $1`, id)
}

func (s *Store) getUser(ctx context.Context, where string, arg string) (*models.User, error) {
	var user models.User
	var totpSecret sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, name, totp_secret, totp_enabled, created_at
		FROM users `+where, arg).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name, &totpSecret, &user.TOTPEnabled, &user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	user.TOTPSecret = totpSecret.String
	return &user, nil
}

func (s *Store) SetTOTPSecret(ctx context.Context, userID, secret string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET totp_secret = $1, totp_enabled = FALSE WHERE id = $2`, secret, userID)
	return err
}

func (s *Store) EnableTOTP(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET totp_enabled = TRUE WHERE id = $1`, userID)
	return err
}

func (s *Store) DisableTOTP(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET totp_enabled = FALSE, totp_secret = NULL WHERE id = $1`, userID)
	return err
}

// DeleteUser removes the account; owned rows go with it through ON DELETE CASCADE.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	return s.withUser(ctx, userID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

// ============================================================================
// BANKING
// ============================================================================

func (s *Store) SaveItem(ctx context.Context, userID, itemID, encryptedAccessToken string) error {
	return s.withUser(ctx, userID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bank_items (user_id, item_id, access_token)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, item_id) DO UPDATE SET access_token = EXCLUDED.access_token
		`, userID, itemID, encryptedAccessToken)
		return err
	})
}

// LatestItem returns the most recently linked bank item of the user.
func (s *Store) LatestItem(ctx context.Context, userID string) (*models.BankItem, error) {
	var item models.BankItem
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, `
			SELECT id, user_id, item_id, access_token, created_at
			FROM bank_items
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT 1
		`, userID).Scan(&item.ID, &item.UserID, &item.ItemID, &item.EncryptedAccessToken, &item.CreatedAt)
	})
	if err == sql.ErrNoRows {
		return nil, ErrNoBankItem
	}
	if err != nil {
		return nil, fmt.Errorf("get bank item: %w", err)
	}
	return &item, nil
}

// SyncTransactions stores accounts (deduplicated by name and type) and
// transactions (deduplicated by aggregator id) in one transaction.
func (s *Store) SyncTransactions(ctx context.Context, userID string, accounts []models.Account, txs []models.Transaction) (models.DatabaseStatus, error) {
	status := models.DatabaseStatus{
		TotalAccounts:     len(accounts),
		TotalTransactions: len(txs),
	}

	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		mapping := make(map[string]string, len(accounts))
		for _, acc := range accounts {
			var id string
			var inserted bool
			err := tx.QueryRowContext(ctx, `
				INSERT INTO accounts (user_id, plaid_account_id, name, type, subtype, balance)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (user_id, name, type) DO UPDATE SET balance = EXCLUDED.balance
				RETURNING id, (xmax = 0) AS inserted
			`, userID, acc.PlaidAccountID, acc.Name, acc.Type, acc.Subtype, acc.Balance).Scan(&id, &inserted)
			if err != nil {
				return fmt.Errorf("upsert account %q: %w", acc.Name, err)
			}
			mapping[acc.PlaidAccountID] = id
			if inserted {
				status.AccountsInserted++
			}
		}

		for _, t := range txs {
			accountID, ok := mapping[t.AccountID]
			if !ok {
				continue
			}
			res, err := tx.ExecContext(ctx, `
				INSERT INTO transactions (user_id, account_id, plaid_transaction_id, description, merchant_name, date, amount, category)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (user_id, plaid_transaction_id) WHERE plaid_transaction_id IS NOT NULL DO NOTHING
			`, userID, accountID, t.PlaidTransactionID, t.Name, nullString(t.MerchantName), t.Date, t.Amount, t.Category)
			if err != nil {
				return fmt.Errorf("insert transaction: %w", err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				status.TransactionsInserted++
			}
		}
		return nil
	})
	return status, err
}

// ListTransactions returns the user's transactions newest first. A zero since
// returns the full history.
func (s *Store) ListTransactions(ctx context.Context, userID string, since time.Time) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		query := `
			SELECT id, COALESCE(account_id::text, ''), COALESCE(plaid_transaction_id, ''), description,
			       merchant_name, date, amount, COALESCE(category, 'Uncategorized')
			FROM transactions
			WHERE user_id = $1 AND ($2::date IS NULL OR date >= $2::date)
			ORDER BY date DESC, created_at DESC
		`
		var sinceArg interface{}
		if !since.IsZero() {
			sinceArg = since.Format("2006-01-02")
		}

		rows, err := tx.QueryContext(ctx, query, userID, sinceArg)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var t models.Transaction
			var merchant sql.NullString
			var date time.Time
			if err := rows.Scan(&t.ID, &t.AccountID, &t.PlaidTransactionID, &t.Name, &merchant, &date, &t.Amount, &t.Category); err != nil {
				return err
			}
			t.Description = t.Name
			t.MerchantName = merchant.String
			t.Date = date.Format("2006-01-02")
			txs = append(txs, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// DeleteDuplicateTransactions keeps the oldest row for every aggregator id.
func (s *Store) DeleteDuplicateTransactions(ctx context.Context, userID string) (found int, deleted int, err error) {
	err = s.withUser(ctx, userID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, plaid_transaction_id
			FROM transactions
			WHERE user_id = $1 AND plaid_transaction_id IS NOT NULL
			ORDER BY created_at ASC
		`, userID)
		if err != nil {
			return err
		}

		seen := make(map[string]bool)
		var duplicates []string
		for rows.Next() {
			var id, plaidID string
			if err := rows.Scan(&id, &plaidID); err != nil {
				rows.Close()
				return err
			}
			if seen[plaidID] {
				duplicates = append(duplicates, id)
				continue
			}
			seen[plaidID] = true
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		found = len(duplicates)
		if found == 0 {
			return nil
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = $1 AND id = ANY($2)`, userID, pq.Array(duplicates))
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		deleted = int(n)
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("delete duplicate transactions: %w", err)
	}
	return found, deleted, nil
}

// ============================================================================
// ANALYSIS RESULTS
// ============================================================================

func (s *Store) SaveSubscriptions(ctx context.Context, userID string, subs []models.Subscription) error {
	return s.withUser(ctx, userID, func(tx *sql.Tx) error {
		for _, sub := range subs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO subscriptions (user_id, merchant, amount, frequency, negotiation_email, contact_email)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (user_id, merchant) DO UPDATE SET
					amount = EXCLUDED.amount,
					frequency = EXCLUDED.frequency,
					negotiation_email = EXCLUDED.negotiation_email,
					contact_email = EXCLUDED.contact_email,
					updated_at = NOW()
			`, userID, sub.Merchant, sub.Amount, sub.Frequency, nullString(sub.NegotiationEmail), nullString(sub.ContactEmail))
			if err != nil {
				return fmt.Errorf("save subscription %q: %w", sub.Merchant, err)
			}
		}
		return nil
	})
}

func (s *Store) ListSubscriptions(ctx context.Context, userID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, merchant, COALESCE(amount, 0), COALESCE(frequency, ''),
			       COALESCE(negotiation_email, ''), COALESCE(contact_email, ''), email_sent
			FROM subscriptions
			WHERE user_id = $1
			ORDER BY merchant
		`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var sub models.Subscription
			if err := rows.Scan(&sub.ID, &sub.Merchant, &sub.Amount, &sub.Frequency, &sub.NegotiationEmail, &sub.ContactEmail, &sub.EmailSent); err != nil {
				return err
			}
			subs = append(subs, sub)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

// MarkSubscriptionEmailed matches the merchant exactly, the same way the
// dashboard does.
func (s *Store) MarkSubscriptionEmailed(ctx context.Context, userID, merchant string) (bool, error) {
	var updated bool
	err := s.withUser(ctx, userID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE subscriptions SET email_sent = TRUE, updated_at = NOW()
			WHERE user_id = $1 AND merchant = $2
		`, userID, merchant)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		updated = n > 0
		return nil
	})
	return updated, err
}

func (s *Store) SaveForecast(ctx context.Context, userID string, f *models.Forecast) error {
	weekly, err := json.Marshal(f.WeeklyBreakdown)
	if err != nil {
		return err
	}
	return s.withUser(ctx, userID, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO forecasts (user_id, total_30day_forecast, weekly_breakdown)
			VALUES ($1, $2, $3)
		`, userID, f.Total30DayForecast, weekly)
		return err
	})
}

func (s *Store) SaveAlerts(ctx context.Context, userID string, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return s.withUser(ctx, userID, func(tx *sql.Tx) error {
		for _, a := range alerts {
			if _, err := tx.ExecContext(ctx, `INSERT INTO alerts (user_id, type, message) VALUES ($1, $2, $3)`, userID, a.Type, a.Message); err != nil {
				return err
			}
		}
		return nil
	})
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
