package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/service"
	"github.com/garyjia/invoice-approval/internal/domain/apperr"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// UserIDHeader carries the caller id asserted by the fronting auth gateway
const UserIDHeader = "X-User-ID"

const principalKey = "principal"

func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if p, ok := c.Get(principalKey); ok {
			fields = append(fields, zap.String("user_id", p.(entity.Principal).UserID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("HTTP request", fields...)
			return
		}
		logger.Info("HTTP request", fields...)
	}
}

func recoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic while serving request",
			zap.String("path", c.Request.URL.Path),
			zap.Any("panic", recovered),
			zap.Stack("stack"),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, Response{Success: false, Error: "Internal server error"})
	})
}

// principalMiddleware resolves the caller from UserIDHeader; unknown callers get 401
func principalMiddleware(users service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := users.Authenticate(c.Request.Context(), c.GetHeader(UserIDHeader))
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Success: false, Error: "Authentication required"})
				return
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, Response{Success: false, Error: "Internal server error"})
			return
		}
		c.Set(principalKey, entity.Principal{UserID: u.ID, Role: u.Role})
		c.Next()
	}
}

func principalFrom(c *gin.Context) entity.Principal {
	p, _ := c.Get(principalKey)
	principal, _ := p.(entity.Principal)
	return principal
}
