package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/LovationAdmin/finance-assistant/logger"
	"github.com/LovationAdmin/finance-assistant/middleware"
	"github.com/LovationAdmin/finance-assistant/models"
	"github.com/LovationAdmin/finance-assistant/services"
	"github.com/LovationAdmin/finance-assistant/utils"

	"github.com/gin-gonic/gin"
)

// Aggregator is implemented by *services.PlaidService.
type Aggregator interface {
	CreateLinkToken(ctx context.Context, userID string) (string, error)
	CreateSandboxPublicToken(ctx context.Context) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error)
	GetTransactions(ctx context.Context, accessToken string) ([]models.Account, []models.Transaction, error)
	GetRecurringTransactions(ctx context.Context, accessToken string) (*models.RecurringTransactionsResponse, error)
	GetCategories(ctx context.Context) ([]models.AggregatorCategory, error)
}

type BankingStore interface {
	SaveItem(ctx context.Context, userID, itemID, encryptedAccessToken string) error
	SyncTransactions(ctx context.Context, userID string, accounts []models.Account, txs []models.Transaction) (models.DatabaseStatus, error)
	DeleteDuplicateTransactions(ctx context.Context, userID string) (int, int, error)
	LatestItem(ctx context.Context, userID string) (*models.BankItem, error)
}

// Notifier pushes live events to a user's open dashboards.
type Notifier interface {
	Broadcast(userID, eventType string, payload interface{})
}

type BankingHandler struct {
	Aggregator    Aggregator
	Store         BankingStore
	Events        Notifier
	EncryptionKey string
}

func (h *BankingHandler) CreateLinkToken(c *gin.Context) {
	token, err := h.Aggregator.CreateLinkToken(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"link_token": token})
}

func (h *BankingHandler) CreateSandboxToken(c *gin.Context) {
	token, err := h.Aggregator.CreateSandboxPublicToken(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_token": token})
}

func (h *BankingHandler) ExchangeToken(c *gin.Context) {
	var req models.ExchangeTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	log := logger.FromContext(ctx)
	userID := middleware.GetUserID(c)

	accessToken, itemID, err := h.Aggregator.ExchangePublicToken(ctx, req.PublicToken)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	// Access tokens are only persisted encrypted.
	if h.EncryptionKey != "" {
		encrypted, err := utils.Encrypt(h.EncryptionKey, []byte(accessToken))
		if err != nil {
			log.Error().Err(err).Msg("Failed to encrypt access token")
		} else if err := h.Store.SaveItem(ctx, userID, itemID, encrypted); err != nil {
			log.Error().Err(err).Str("item_id", utils.MaskID(itemID)).Msg("Failed to save bank item")
		}
	}

	c.JSON(http.StatusOK, gin.H{"access_token": accessToken})
}

// accessToken takes the token from the request body and falls back to the
// user's most recently linked item. It writes the error response itself.
func (h *BankingHandler) accessToken(c *gin.Context) (string, bool) {
	var req models.GetTransactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", false
	}
	if req.AccessToken != "" {
		return req.AccessToken, true
	}

	ctx := c.Request.Context()
	log := logger.FromContext(ctx)
	userID := middleware.GetUserID(c)

	if h.EncryptionKey != "" {
		item, err := h.Store.LatestItem(ctx, userID)
		switch {
		case err == nil:
			plain, err := utils.Decrypt(h.EncryptionKey, item.EncryptedAccessToken)
			if err == nil {
				return string(plain), true
			}
			log.Error().Err(err).Str("item_id", utils.MaskID(item.ItemID)).Msg("Failed to decrypt access token")
		case !errors.Is(err, services.ErrNoBankItem):
			log.Error().Err(err).Str("user_id", utils.MaskID(userID)).Msg("Failed to load bank item")
		}
	}

	c.JSON(http.StatusBadRequest, gin.H{"error": "access_token is required"})
	return "", false
}

func (h *BankingHandler) GetTransactions(c *gin.Context) {
	accessToken, ok := h.accessToken(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	log := logger.FromContext(ctx)
	userID := middleware.GetUserID(c)

	accounts, txs, err := h.Aggregator.GetTransactions(ctx, accessToken)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	status, err := h.Store.SyncTransactions(ctx, userID, accounts, txs)
	if err != nil {
		log.Error().Err(err).Msg("Failed to persist transactions")
		status = models.DatabaseStatus{TotalAccounts: len(accounts), TotalTransactions: len(txs)}
	}
	log.Info().
		Int("accounts_inserted", status.AccountsInserted).
		Int("transactions_inserted", status.TransactionsInserted).
		Msg("Transactions synced")

	if h.Events != nil {
		h.Events.Broadcast(userID, "transactions_synced", status)
	}

	if accounts == nil {
		accounts = []models.Account{}
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	c.JSON(http.StatusOK, models.TransactionsResponse{
		Accounts:       accounts,
		Transactions:   txs,
		DatabaseStatus: status,
	})
}

func (h *BankingHandler) GetRecurringTransactions(c *gin.Context) {
	accessToken, ok := h.accessToken(c)
	if !ok {
		return
	}

	recurring, err := h.Aggregator.GetRecurringTransactions(c.Request.Context(), accessToken)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, recurring)
}

func (h *BankingHandler) GetCategories(c *gin.Context) {
	categories, err := h.Aggregator.GetCategories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.CategoriesResponse{Categories: categories})
}

func (h *BankingHandler) CleanupDuplicates(c *gin.Context) {
	found, deleted, err := h.Store.DeleteDuplicateTransactions(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.CleanupResponse{
		Message:           "Cleanup complete: " + strconv.Itoa(deleted) + " duplicate transactions removed",
		DuplicatesFound:   found,
		DuplicatesDeleted: deleted,
	})
}
