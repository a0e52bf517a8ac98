package http

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/ulule/limiter/v3"
	limitergin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ledgerforge/corebank/internal/apperrors"
	"github.com/ledgerforge/corebank/internal/core/domain"
	"github.com/ledgerforge/corebank/internal/core/ports"
)

// Deps bundles the core services the router dispatches to.
type Deps struct {
	Accounts  ports.AccountService
	Ledger    ports.LedgerEngine
	JWTSecret string
}

// NewRouter builds the gin engine exposing account lifecycle, the five
// ledger primitives (reversal among them), the sweep trigger and statistics.
func NewRouter(deps Deps, baseLogger *slog.Logger) *gin.Engine {
	registerDecimalValidator()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(baseLogger))
	r.Use(cors.Default())
	r.SetTrustedProxies(nil)

	adminLimiter := limiter.New(memory.NewStore(), limiter.Rate{Period: time.Minute, Limit: 10})

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/api/v1")
	api.Use(AuthMiddleware(deps.JWTSecret))
	{
		api.POST("/accounts", handleCreateAccount(deps))
		api.GET("/accounts/:id", handleGetAccount(deps))
		api.DELETE("/accounts/:id", handleDeactivateAccount(deps))
		api.GET("/owners/:ownerId/accounts", handleListAccounts(deps))

		api.POST("/deposits", handlePosting(deps, deps.Ledger.Deposit))
		api.POST("/withdrawals", handlePosting(deps, deps.Ledger.Withdrawal))
		api.POST("/fees", handlePosting(deps, deps.Ledger.Fee))
		api.POST("/transfers", handleTransfer(deps))

		admin := api.Group("")
		admin.Use(limitergin.NewMiddleware(adminLimiter))
		admin.POST("/transactions/:id/reverse", handleReverse(deps))
		admin.POST("/sweep", handleSweep(deps))

		api.GET("/owners/:ownerId/stats", handleUserStats(deps))
		api.GET("/accounts/:id/stats", handleAccountStats(deps))
	}

	return r
}

// registerDecimalValidator teaches the validator engine how to read a
// decimal.Decimal field for binding tags, mirroring the custom validator
// registration pattern used for monetary amount fields.
func registerDecimalValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.String()
			}
			return nil
		}, decimal.Decimal{})
	}
}

func handleCreateAccount(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		acct, err := deps.Accounts.CreateAccount(c.Request.Context(), req.OwnerID, domain.AccountKind(req.Kind), domain.Currency(req.Currency), req.Metadata)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, acct)
	}
}

func handleGetAccount(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		acct, err := deps.Accounts.GetAccount(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, acct)
	}
}

func handleDeactivateAccount(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := deps.Accounts.DeactivateAccount(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleListAccounts(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		accounts, err := deps.Accounts.ListAccountsByOwner(c.Request.Context(), c.Param("ownerId"), 100, 0)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, accounts)
	}
}

type postingOp func(ctx context.Context, caller ports.Caller, accountID string, amount decimal.Decimal, metadata map[string]string) (domain.Transaction, error)

// resolveAccountID returns id verbatim if set, otherwise resolves number
// through deps.Accounts. Both empty is a BadRequest.
func resolveAccountID(ctx context.Context, deps Deps, id, number string) (string, error) {
	if id != "" {
		return id, nil
	}
	if number == "" {
		return "", apperrors.NewBadRequestError("accountId or accountNumber is required")
	}
	acct, err := deps.Accounts.GetAccountByNumber(ctx, number)
	if err != nil {
		return "", err
	}
	return acct.ID, nil
}

func handlePosting(deps Deps, op postingOp) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req postingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		accountID, err := resolveAccountID(c.Request.Context(), deps, req.AccountID, req.AccountNumber)
		if err != nil {
			writeError(c, err)
			return
		}
		txn, err := op(c.Request.Context(), callerFrom(c), accountID, req.Amount, req.Metadata)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, txn)
	}
}

func handleTransfer(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req transferRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		fromAccountID, err := resolveAccountID(c.Request.Context(), deps, req.FromAccountID, req.FromAccountNumber)
		if err != nil {
			writeError(c, err)
			return
		}
		toAccountID, err := resolveAccountID(c.Request.Context(), deps, req.ToAccountID, req.ToAccountNumber)
		if err != nil {
			writeError(c, err)
			return
		}
		txn, err := deps.Ledger.Transfer(c.Request.Context(), callerFrom(c), fromAccountID, toAccountID, req.Amount, req.Metadata)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, txn)
	}
}

func handleReverse(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req reverseRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		txn, err := deps.Ledger.Reverse(c.Request.Context(), callerFrom(c), c.Param("id"), req.Reason)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, txn)
	}
}

func handleSweep(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sweepRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := deps.Ledger.SweepPending(c.Request.Context(), time.Duration(req.OlderThanSeconds)*time.Second)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func handleUserStats(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		since := parseSince(c)
		stats, err := deps.Ledger.UserStats(c.Request.Context(), c.Param("ownerId"), since)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func handleAccountStats(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		since := parseSince(c)
		stats, err := deps.Ledger.AccountStats(c.Request.Context(), c.Param("id"), since)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func parseSince(c *gin.Context) time.Time {
	if raw := c.Query("since"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return time.Now().AddDate(0, -1, 0)
}
