// Package api is the authenticated HTTP surface: agent and meeting CRUD,
// call token minting, the platform webhook endpoint, and the operational
// endpoints (health, version, metrics).
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
)

// Gin context keys set by the auth middleware.
const (
	ctxUserID    = "auth.user_id"
	ctxUserName  = "auth.user_name"
	ctxUserImage = "auth.user_image"
)

// Auth verifies the Authorization bearer token as an HS256 session token and
// stores the authenticated user on the request context. The auth provider
// itself is external; the server only trusts its signing secret.
func Auth(sessionSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing bearer token"})
			return
		}

		token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "),
			func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(sessionSecret), nil
			})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
			return
		}

		sub, _ := claims["sub"].(string)
		if sub == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session token has no subject"})
			return
		}

		c.Set(ctxUserID, sub)
		if name, _ := claims["name"].(string); name != "" {
			c.Set(ctxUserName, name)
		}
		if image, _ := claims["image"].(string); image != "" {
			c.Set(ctxUserImage, image)
		}

		c.Next()
	}
}

// currentUser returns the authenticated user id.
func currentUser(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// RequestLogger logs one line per request with the request id attached.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	log := logger.With(logging.F("component", "http"))

	return func(c *gin.Context) {
		requestID := uuid.New().String()
		ctx := context.WithValue(c.Request.Context(), logging.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-Id", requestID)

		c.Next()

		log.Info("Request handled",
			logging.F("request_id", requestID),
			logging.F("method", c.Request.Method),
			logging.F("path", c.FullPath()),
			logging.F("status", c.Writer.Status()))
	}
}

// respondError maps domain errors onto API responses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case nxerrors.IsValidation(err):
		status = http.StatusBadRequest
	case nxerrors.IsUnauthorized(err):
		status = http.StatusUnauthorized
	case nxerrors.IsForbidden(err):
		status = http.StatusForbidden
	case nxerrors.IsNotFound(err):
		status = http.StatusNotFound
	case nxerrors.IsConflict(err):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
