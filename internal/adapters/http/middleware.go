// Package http is the thin demo perimeter that exposes the ledger engine's
// five primitives over REST. Request parsing, routing and rate limiting are
// collaborators external to the ledger core itself; this package is just
// enough wiring to drive them.
package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ledgerforge/corebank/internal/apperrors"
	"github.com/ledgerforge/corebank/internal/core/ports"
	"github.com/ledgerforge/corebank/internal/platform/authz"
	"github.com/ledgerforge/corebank/internal/platform/logging"
)

// LoggingMiddleware injects a request-scoped slog.Logger into the request's
// context.Context.
func LoggingMiddleware(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.NewString()
		reqLogger := base.With(slog.String("request_id", requestID), slog.String("method", c.Request.Method), slog.String("path", c.Request.URL.Path))
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(logging.WithLogger(c.Request.Context(), reqLogger))

		c.Next()

		logging.FromContext(c.Request.Context()).Info("request completed",
			slog.Int("status", c.Writer.Status()), slog.Duration("latency", time.Since(start)))
	}
}

// AuthMiddleware decodes the bearer token into a trusted Caller claim and
// stores it on the gin context. The token is trusted as-is; the engine never
// re-verifies the role against an identity service.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header must be: Bearer <token>"})
			return
		}

		caller, err := authz.ParseCaller(parts[1], jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(callerContextKey, caller)
		c.Next()
	}
}

const callerContextKey = "ledgercore.caller"

func callerFrom(c *gin.Context) ports.Caller {
	if v, ok := c.Get(callerContextKey); ok {
		if caller, ok := v.(ports.Caller); ok {
			return caller
		}
	}
	return ports.Caller{}
}

// statusFor maps an apperrors.Code to an HTTP status.
func statusFor(err error) int {
	code, ok := apperrors.CodeOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch code {
	case apperrors.CodeBadRequest:
		return http.StatusBadRequest
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeInactiveAccount, apperrors.CodeCurrencyMismatch, apperrors.CodeInsufficientFunds, apperrors.CodeIllegalStateTransition, apperrors.CodeAlreadyReversed:
		return http.StatusUnprocessableEntity
	case apperrors.CodeConflict, apperrors.CodeConcurrencyExhausted:
		return http.StatusConflict
	case apperrors.CodeUnauthorized:
		return http.StatusForbidden
	case apperrors.CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.CodeCancelled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	logging.FromContext(c.Request.Context()).Error("request failed", slog.String("error", err.Error()))
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
