package services

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/LovationAdmin/finance-assistant/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func expectUserScope(mock sqlmock.Sqlmock, userID string) {
	mock.ExpectBegin()
	mock.ExpectExec(`SELECT set_config\('app.current_user_id', \$1, true\)`).
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("a@b.com", "hash", "Ann").
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := store.CreateUser(context.Background(), "a@b.com", "hash", "Ann")
	if err != ErrEmailTaken {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestGetUserByEmailNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, email, password_hash`).
		WithArgs("nobody@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetUserByEmail(context.Background(), "nobody@b.com")
	if err != ErrUserNotFound {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestLatestItem(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	expectUserScope(mock, "u1")
	mock.ExpectQuery(`SELECT id, user_id, item_id, access_token, created_at\s+FROM bank_items`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "item_id", "access_token", "created_at"}).
			AddRow("b1", "u1", "item-1", "sealed", created))
	mock.ExpectCommit()

	item, err := store.LatestItem(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if item.ItemID != "item-1" || item.EncryptedAccessToken != "sealed" || !item.CreatedAt.Equal(created) {
		t.Fatalf("item = %+v", item)
	}

	expectUserScope(mock, "u2")
	mock.ExpectQuery(`FROM bank_items`).
		WithArgs("u2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	if _, err := store.LatestItem(context.Background(), "u2"); err != ErrNoBankItem {
		t.Fatalf("expected ErrNoBankItem, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSyncTransactionsCountsInserts(t *testing.T) {
	store, mock := newMockStore(t)
	userID := "user-1"

	expectUserScope(mock, userID)
	mock.ExpectQuery(`INSERT INTO accounts`).
		WithArgs(userID, "plaid-acc", "Checking", "depository", "checking", 120.5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "inserted"}).AddRow("acc-uuid", true))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(userID, "acc-uuid", "tx-1", "Netflix", sqlmock.AnyArg(), "2024-01-15", 15.99, "ENTERTAINMENT > TV_AND_MOVIES").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO transactions`).
		WithArgs(userID, "acc-uuid", "tx-2", "Coffee", sqlmock.AnyArg(), "2024-01-16", 4.5, "FOOD_AND_DRINK").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	accounts := []models.Account{{PlaidAccountID: "plaid-acc", Name: "Checking", Type: "depository", Subtype: "checking", Balance: 120.5}}
	txs := []models.Transaction{
		{PlaidTransactionID: "tx-1", AccountID: "plaid-acc", Name: "Netflix", MerchantName: "Netflix", Date: "2024-01-15", Amount: 15.99, Category: "ENTERTAINMENT > TV_AND_MOVIES"},
		{PlaidTransactionID: "tx-2", AccountID: "plaid-acc", Name: "Coffee", Date: "2024-01-16", Amount: 4.5, Category: "FOOD_AND_DRINK"},
		{PlaidTransactionID: "tx-3", AccountID: "unknown-acc", Name: "Skipped", Date: "2024-01-16", Amount: 1, Category: "OTHER"},
	}

	status, err := store.SyncTransactions(context.Background(), userID, accounts, txs)
	if err != nil {
		t.Fatalf("SyncTransactions: %v", err)
	}

	want := models.DatabaseStatus{AccountsInserted: 1, TransactionsInserted: 1, TotalAccounts: 1, TotalTransactions: 3}
	if status != want {
		t.Errorf("status = %+v, want %+v", status, want)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListTransactionsFormatsDates(t *testing.T) {
	store, mock := newMockStore(t)
	userID := "user-1"
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	expectUserScope(mock, userID)
	rows := sqlmock.NewRows([]string{"id", "account_id", "plaid_transaction_id", "description", "merchant_name", "date", "amount", "category"}).
		AddRow("t1", "a1", "p1", "Spotify", nil, time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), 9.99, "ENTERTAINMENT")
	mock.ExpectQuery(`SELECT id, COALESCE\(account_id::text, ''\)`).
		WithArgs(userID, "2024-01-01").
		WillReturnRows(rows)
	mock.ExpectCommit()

	txs, err := store.ListTransactions(context.Background(), userID, since)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}
	if txs[0].Date != "2024-02-03" {
		t.Errorf("date = %q", txs[0].Date)
	}
	if txs[0].MerchantName != "" || txs[0].Description != "Spotify" {
		t.Errorf("unexpected transaction %+v", txs[0])
	}
}

func TestDeleteDuplicateTransactionsKeepsOldest(t *testing.T) {
	store, mock := newMockStore(t)
	userID := "user-1"

	expectUserScope(mock, userID)
	mock.ExpectQuery(`SELECT id, plaid_transaction_id`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "plaid_transaction_id"}).
			AddRow("old", "p1").
			AddRow("other", "p2").
			AddRow("new", "p1"))
	mock.ExpectExec(`DELETE FROM transactions WHERE user_id = \$1 AND id = ANY\(\$2\)`).
		WithArgs(userID, arrayArg{"new"}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	found, deleted, err := store.DeleteDuplicateTransactions(context.Background(), userID)
	if err != nil {
		t.Fatalf("DeleteDuplicateTransactions: %v", err)
	}
	if found != 1 || deleted != 1 {
		t.Errorf("found=%d deleted=%d, want 1/1", found, deleted)
	}
}

func TestMarkSubscriptionEmailed(t *testing.T) {
	store, mock := newMockStore(t)
	userID := "user-1"

	expectUserScope(mock, userID)
	mock.ExpectExec(`UPDATE subscriptions SET email_sent = TRUE`).
		WithArgs(userID, "Netflix").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := store.MarkSubscriptionEmailed(context.Background(), userID, "Netflix")
	if err != nil || !ok {
		t.Fatalf("MarkSubscriptionEmailed = %v, %v", ok, err)
	}
}

func TestWithUserRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)
	userID := "user-1"

	expectUserScope(mock, userID)
	mock.ExpectExec(`INSERT INTO alerts`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.SaveAlerts(context.Background(), userID, []models.Alert{{Type: "high_spending", Message: "x"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSaveAlertsEmptyIsNoop(t *testing.T) {
	store, mock := newMockStore(t)
	if err := store.SaveAlerts(context.Background(), "user-1", nil); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected queries: %v", err)
	}
}

// arrayArg matches a pq.Array argument by its driver value.
type arrayArg []string

func (a arrayArg) Match(v driver.Value) bool {
	want, err := pq.Array([]string(a)).Value()
	if err != nil {
		return false
	}
	return want == v
}

func TestDeleteUserMissingRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	userID := "user-1"

	expectUserScope(mock, userID)
	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs(userID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.DeleteUser(context.Background(), userID)
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
