package models

import (
	"strings"
	"time"
)

// BankItem is one linked aggregator connection. The access token is stored
// encrypted and never serialized.
type BankItem struct {
	ID                   string    `json:"id"`
	UserID               string    `json:"user_id"`
	ItemID               string    `json:"item_id"`
	EncryptedAccessToken string    `json:"-"`
	CreatedAt            time.Time `json:"created_at"`
}

type Account struct {
	ID             string  `json:"id,omitempty"`
	UserID         string  `json:"user_id,omitempty"`
	PlaidAccountID string  `json:"account_id"`
	Name           string  `json:"name"`
	Type           string  `json:"type"`
	Subtype        string  `json:"subtype,omitempty"`
	Balance        float64 `json:"balance"`
}

// Transaction follows the aggregator sign convention: positive amounts are
// money out, negative amounts are credits.
type Transaction struct {
	ID                 string  `json:"id,omitempty"`
	AccountID          string  `json:"account_id"`
	PlaidTransactionID string  `json:"transaction_id"`
	Name               string  `json:"name"`
	MerchantName       string  `json:"merchant_name,omitempty"`
	Description        string  `json:"description"`
	Date               string  `json:"date"`
	Amount             float64 `json:"amount"`
	Category           string  `json:"category"`
}

// PrimaryCategory is the part of "PRIMARY > DETAILED" before the separator.
func (t Transaction) PrimaryCategory() string {
	primary, _, _ := strings.Cut(t.Category, " > ")
	return primary
}

type ExchangeTokenRequest struct {
	PublicToken string `json:"public_token" binding:"required"`
}

// GetTransactionsRequest may omit the token when the user has a stored item.
type GetTransactionsRequest struct {
	AccessToken string `json:"access_token"`
}

type DatabaseStatus struct {
	AccountsInserted     int `json:"accounts_inserted"`
	TransactionsInserted int `json:"transactions_inserted"`
	TotalAccounts        int `json:"total_accounts"`
	TotalTransactions    int `json:"total_transactions"`
}

type TransactionsResponse struct {
	Accounts       []Account      `json:"accounts"`
	Transactions   []Transaction  `json:"transactions"`
	DatabaseStatus DatabaseStatus `json:"database_status"`
}

type CleanupResponse struct {
	Message           string `json:"message"`
	DuplicatesFound   int    `json:"duplicates_found"`
	DuplicatesDeleted int    `json:"duplicates_deleted"`
}

// RecurringStream is one recurring series the aggregator detected.
type RecurringStream struct {
	StreamID      string   `json:"stream_id"`
	AccountID     string   `json:"account_id"`
	Description   string   `json:"description"`
	MerchantName  string   `json:"merchant_name,omitempty"`
	Category      []string `json:"category"`
	Frequency     string   `json:"frequency"`
	AverageAmount float64  `json:"average_amount"`
	LastAmount    float64  `json:"last_amount"`
	FirstDate     string   `json:"first_date"`
	LastDate      string   `json:"last_date"`
	IsActive      bool     `json:"is_active"`
	Status        string   `json:"status"`
}

type RecurringTransactionsResponse struct {
	InflowStreams  []RecurringStream `json:"inflow_streams"`
	OutflowStreams []RecurringStream `json:"outflow_streams"`
}

// AggregatorCategory is an entry of the aggregator's legacy category taxonomy.
type AggregatorCategory struct {
	CategoryID string   `json:"category_id"`
	Group      string   `json:"group"`
	Hierarchy  []string `json:"hierarchy"`
}

type CategoriesResponse struct {
	Categories []AggregatorCategory `json:"categories"`
}
