package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LovationAdmin/finance-assistant/config"
	"github.com/LovationAdmin/finance-assistant/logger"
	"github.com/LovationAdmin/finance-assistant/models"
	"github.com/LovationAdmin/finance-assistant/utils"

	"github.com/plaid/plaid-go/v20/plaid"
)

const (
	sandboxInstitutionID = "ins_109508"
	transactionWindow    = 300 * 24 * time.Hour
	transactionPageSize  = 500
)

// PlaidService proxies the aggregator. It never stores credentials itself.
type PlaidService struct {
	Client *plaid.APIClient
}

func NewPlaidService(cfg *config.Config) *PlaidService {
	var env plaid.Environment
	switch cfg.PlaidEnv {
	case "production":
		env = plaid.Production
	case "development":
		env = plaid.Development
	default:
		env = plaid.Sandbox
	}

	return newPlaidService(cfg.PlaidClientID, cfg.PlaidSecret, env)
}

func newPlaidService(clientID, secret string, env plaid.Environment) *PlaidService {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)
	configuration.UseEnvironment(env)

	return &PlaidService{
		Client: plaid.NewAPIClient(configuration),
	}
}

// CreateLinkToken returns the short-lived token the link widget is opened with.
func (s *PlaidService) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: userID,
	}

	request := plaid.NewLinkTokenCreateRequest(
		"Finance Assistant",
		"en",
		[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		user,
	)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})

	resp, _, err := s.Client.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		err = formatPlaidError(err)
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Plaid CreateLinkToken failed")
		return "", err
	}

	return resp.GetLinkToken(), nil
}

// CreateSandboxPublicToken skips the widget entirely and links a test institution.
func (s *PlaidService) CreateSandboxPublicToken(ctx context.Context) (string, error) {
	request := plaid.NewSandboxPublicTokenCreateRequest(
		sandboxInstitutionID,
		[]plaid.Products{plaid.PRODUCTS_TRANSACTIONS},
	)

	resp, _, err := s.Client.PlaidApi.SandboxPublicTokenCreate(ctx).SandboxPublicTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", formatPlaidError(err)
	}

	return resp.GetPublicToken(), nil
}

// ExchangePublicToken trades the widget's public token for a long-lived
// access token and returns it with the item id.
func (s *PlaidService) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	request := plaid.NewItemPublicTokenExchangeRequest(publicToken)

	resp, _, err := s.Client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return "", "", formatPlaidError(err)
	}

	return resp.GetAccessToken(), resp.GetItemId(), nil
}

// GetTransactions pages through the last 300 days of activity.
func (s *PlaidService) GetTransactions(ctx context.Context, accessToken string) ([]models.Account, []models.Transaction, error) {
	end := time.Now()
	start := end.Add(-transactionWindow)

	var (
		accounts     []models.Account
		transactions []models.Transaction
		offset       int32
	)

	for {
		request := plaid.NewTransactionsGetRequest(accessToken, start.Format("2006-01-02"), end.Format("2006-01-02"))
		request.SetOptions(plaid.TransactionsGetRequestOptions{
			Count:  plaid.PtrInt32(transactionPageSize),
			Offset: plaid.PtrInt32(offset),
		})

		resp, _, err := s.Client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
		if err != nil {
			return nil, nil, formatPlaidError(err)
		}

		if accounts == nil {
			for _, acc := range resp.GetAccounts() {
				accounts = append(accounts, accountFromPlaid(acc))
			}
		}

		page := resp.GetTransactions()
		for _, t := range page {
			transactions = append(transactions, transactionFromPlaid(t))
		}

		offset += int32(len(page))
		if len(page) == 0 || offset >= resp.GetTotalTransactions() {
			break
		}
	}

	log := logger.FromContext(ctx)
	log.Info().
		Int("accounts", len(accounts)).
		Int("transactions", len(transactions)).
		Str("access_token", utils.MaskToken(accessToken)).
		Msg("Fetched transactions from Plaid")

	return accounts, transactions, nil
}

// GetRecurringTransactions returns the inflow and outflow streams detected
// across every account of the item.
func (s *PlaidService) GetRecurringTransactions(ctx context.Context, accessToken string) (*models.RecurringTransactionsResponse, error) {
	accountsResp, _, err := s.Client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*plaid.NewAccountsGetRequest(accessToken)).Execute()
	if err != nil {
		return nil, formatPlaidError(err)
	}
	accountIDs := make([]string, 0, len(accountsResp.GetAccounts()))
	for _, acc := range accountsResp.GetAccounts() {
		accountIDs = append(accountIDs, acc.GetAccountId())
	}

	request := plaid.NewTransactionsRecurringGetRequest(accessToken, accountIDs)
	resp, _, err := s.Client.PlaidApi.TransactionsRecurringGet(ctx).TransactionsRecurringGetRequest(*request).Execute()
	if err != nil {
		return nil, formatPlaidError(err)
	}

	out := &models.RecurringTransactionsResponse{
		InflowStreams:  []models.RecurringStream{},
		OutflowStreams: []models.RecurringStream{},
	}
	for _, st := range resp.GetInflowStreams() {
		out.InflowStreams = append(out.InflowStreams, streamFromPlaid(st))
	}
	for _, st := range resp.GetOutflowStreams() {
		out.OutflowStreams = append(out.OutflowStreams, streamFromPlaid(st))
	}
	return out, nil
}

// GetCategories lists the aggregator's category taxonomy. The endpoint takes
// an empty body and no credentials.
func (s *PlaidService) GetCategories(ctx context.Context) ([]models.AggregatorCategory, error) {
	resp, _, err := s.Client.PlaidApi.CategoriesGet(ctx).Body(map[string]interface{}{}).Execute()
	if err != nil {
		return nil, formatPlaidError(err)
	}

	categories := make([]models.AggregatorCategory, 0, len(resp.GetCategories()))
	for _, cat := range resp.GetCategories() {
		categories = append(categories, models.AggregatorCategory{
			CategoryID: cat.GetCategoryId(),
			Group:      cat.GetGroup(),
			Hierarchy:  cat.GetHierarchy(),
		})
	}
	return categories, nil
}

func streamFromPlaid(st plaid.TransactionStream) models.RecurringStream {
	avg := st.GetAverageAmount()
	last := st.GetLastAmount()
	return models.RecurringStream{
		StreamID:      st.GetStreamId(),
		AccountID:     st.GetAccountId(),
		Description:   st.GetDescription(),
		MerchantName:  st.GetMerchantName(),
		Category:      st.GetCategory(),
		Frequency:     string(st.GetFrequency()),
		AverageAmount: avg.GetAmount(),
		LastAmount:    last.GetAmount(),
		FirstDate:     st.GetFirstDate(),
		LastDate:      st.GetLastDate(),
		IsActive:      st.GetIsActive(),
		Status:        string(st.GetStatus()),
	}
}

func accountFromPlaid(acc plaid.AccountBase) models.Account {
	balances := acc.GetBalances()
	return models.Account{
		PlaidAccountID: acc.GetAccountId(),
		Name:           acc.GetName(),
		Type:           string(acc.GetType()),
		Subtype:        string(acc.GetSubtype()),
		Balance:        balances.GetCurrent(),
	}
}

func transactionFromPlaid(t plaid.Transaction) models.Transaction {
	pfc := t.GetPersonalFinanceCategory()
	return models.Transaction{
		PlaidTransactionID: t.GetTransactionId(),
		AccountID:          t.GetAccountId(),
		Name:               t.GetName(),
		MerchantName:       t.GetMerchantName(),
		Description:        t.GetName(),
		Date:               t.GetDate(),
		Amount:             t.GetAmount(),
		Category:           transactionCategory(t.GetCategory(), pfc.GetPrimary(), pfc.GetDetailed()),
	}
}

// transactionCategory prefers the legacy category path and falls back to the
// personal finance category.
func transactionCategory(legacy []string, primary, detailed string) string {
	if len(legacy) > 0 {
		return strings.Join(legacy, " > ")
	}
	if primary != "" {
		if detailed != "" {
			return primary + " > " + detailed
		}
		return primary
	}
	return "Uncategorized"
}

// formatPlaidError surfaces the aggregator's response body.
func formatPlaidError(err error) error {
	var plaidErr plaid.GenericOpenAPIError
	if errors.As(err, &plaidErr) {
		return fmt.Errorf("plaid error: %s", string(plaidErr.Body()))
	}
	return err
}
