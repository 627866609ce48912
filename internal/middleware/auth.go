package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/core"
)

// Context keys set by VerifyToken.
const (
	ContextUserID   = "userID"
	ContextEmail    = "userEmail"
	ContextIdentity = "identity"
)

// ErrorResponse mirrors the API failure envelope; middleware cannot import internal/api.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// TokenVerifier checks an ID token and returns the caller.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (core.Identity, error)
}

// AuthMiddleware provides Gin middleware for ID token authentication.
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewAuthMiddleware creates the middleware around a token verifier. In production the
// verifier is the Firebase Admin SDK; without a Firebase project it rejects every token.
func NewAuthMiddleware(verifier TokenVerifier, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// VerifyToken rejects requests without a valid "Bearer {token}" Authorization header.
func (m *AuthMiddleware) VerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Expected format: "Authorization: Bearer <Firebase ID token>"
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header is required"})
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header format must be 'Bearer {token}'"})
			return
		}

		// Verify checks signature, expiry and audience, and reports the sign-in time.
		id, err := m.verifier.Verify(c.Request.Context(), parts[1])
		if err != nil {
			// The token itself is never logged.
			m.logger.Debug("Rejected ID token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired authentication token"})
			return
		}

		// Handlers read the caller through IdentityFrom; the plain keys feed the request log.
		c.Set(ContextUserID, id.UID)
		c.Set(ContextEmail, id.Email)
		c.Set(ContextIdentity, id)
		c.Next() // Proceed to the next handler in the chain.
	}
}

// IdentityFrom returns the caller stored by VerifyToken.
func IdentityFrom(c *gin.Context) (core.Identity, bool) {
	v, ok := c.Get(ContextIdentity)
	if !ok {
		return core.Identity{}, false
	}
	id, ok := v.(core.Identity)
	return id, ok && id.UID != ""
}
