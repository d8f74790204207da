package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/refundops/internal/domain"
	"github.com/jafarshop/refundops/internal/repository"
)

const operatorContextKey = "operator"

// AuthMiddleware authenticates requests via Authorization: Bearer <api-key>
func AuthMiddleware(repos *repository.Repositories, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			return
		}

		apiKey := strings.TrimPrefix(header, "Bearer ")

		operator, err := repos.Operator.GetByAPIKey(c.Request.Context(), apiKey)
		if err != nil {
			logger.Warn("Rejected API key", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			return
		}

		c.Set(operatorContextKey, operator)
		c.Next()
	}
}

// GetOperatorFromContext returns the authenticated operator, if any
func GetOperatorFromContext(c *gin.Context) (*domain.Operator, bool) {
	val, ok := c.Get(operatorContextKey)
	if !ok {
		return nil, false
	}
	operator, ok := val.(*domain.Operator)
	return operator, ok
}
