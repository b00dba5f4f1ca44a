package routes

import (
	"github.com/LovationAdmin/finance-assistant/handlers"

	"github.com/gin-gonic/gin"
)

// Handlers groups every HTTP handler the API mounts.
type Handlers struct {
	Auth       *handlers.AuthHandler
	User       *handlers.UserHandler
	Banking    *handlers.BankingHandler
	Analysis   *handlers.AnalysisHandler
	Chat       *handlers.ChatHandler
	Email      *handlers.EmailHandler
	Categories *handlers.CategoriesHandler
	WS         *handlers.WSHandler
}

// SetupAuthRoutes sets up public authentication routes.
func SetupAuthRoutes(rg *gin.RouterGroup, h *handlers.AuthHandler) {
	rg.POST("/auth/signup", h.Signup)
	rg.POST("/auth/login", h.Login)
}

// SetupUserRoutes sets up protected account and 2FA routes.
func SetupUserRoutes(rg *gin.RouterGroup, auth *handlers.AuthHandler, user *handlers.UserHandler) {
	rg.POST("/auth/2fa/setup", auth.SetupTOTP)
	rg.POST("/auth/2fa/verify", auth.VerifyTOTP)
	rg.POST("/auth/2fa/disable", user.DisableTOTP)

	rg.GET("/user/profile", user.GetProfile)
	rg.DELETE("/user/account", user.DeleteAccount)
}

// SetupBankingRoutes sets up the aggregator proxy.
func SetupBankingRoutes(rg *gin.RouterGroup, h *handlers.BankingHandler) {
	rg.POST("/create_link_token", h.CreateLinkToken)
	rg.POST("/create_sandbox_token", h.CreateSandboxToken)
	rg.POST("/exchange_token", h.ExchangeToken)
	rg.POST("/get_transactions", h.GetTransactions)
	rg.POST("/get_recurring_transactions", h.GetRecurringTransactions)
	rg.GET("/get_categories", h.GetCategories)
	rg.POST("/cleanup_duplicates", h.CleanupDuplicates)
}

func SetupAnalysisRoutes(rg *gin.RouterGroup, h Handlers) {
	rg.POST("/analyze_finances", h.Analysis.AnalyzeFinances)
	rg.GET("/forecast_spending", h.Analysis.ForecastSpending)
	rg.GET("/identify_subscriptions", h.Analysis.IdentifySubscriptions)
	rg.GET("/spending_categories", h.Categories.SpendingCategories)

	rg.POST("/chat", h.Chat.Chat)
	rg.GET("/analyze_expenses", h.Chat.AnalyzeExpenses)

	rg.POST("/send_email", h.Email.SendEmail)
}

// Register mounts the whole API under rg. The websocket route authenticates
// with its token query parameter, every other non-auth route with the bearer
// header.
func Register(rg *gin.RouterGroup, h Handlers, auth gin.HandlerFunc) {
	SetupAuthRoutes(rg, h.Auth)
	rg.GET("/ws", h.WS.HandleWS)

	protected := rg.Group("/")
	protected.Use(auth)
	{
		SetupUserRoutes(protected, h.Auth, h.User)
		SetupBankingRoutes(protected, h.Banking)
		SetupAnalysisRoutes(protected, h)
	}
}
