package api

import (
	"net/http"
	"strings"
	"time"

	"food-storefront/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ctxUserID    = "userID"
	ctxUserEmail = "userEmail"
	ctxUserName  = "userName"

	// CartIDHeader carries a guest's cart id between requests.
	CartIDHeader = "X-Cart-ID"
)

// OptionalAuth attaches the user to the context when a bearer token is sent.
// Requests without Authorization go through as guests; a bad token is rejected.
func OptionalAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization format, use 'Bearer <token>'"})
			c.Abort()
			return
		}

		claims, err := services.ValidateToken(secret, parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token: " + err.Error()})
			c.Abort()
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserEmail, claims.Email)
		c.Set(ctxUserName, claims.Name)
		c.Next()
	}
}

// RequireAuth must run after OptionalAuth.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUserID(c) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// cartKey picks the storage key for the request's cart: the signed-in user's cart,
// or a guest cart named by X-Cart-ID. A guest without an id is given a new one.
func cartKey(c *gin.Context) string {
	if id := currentUserID(c); id != "" {
		return "user:" + id
	}
	guest := strings.TrimSpace(c.GetHeader(CartIDHeader))
	if guest == "" {
		guest = uuid.New().String()
	}
	c.Header(CartIDHeader, guest)
	return "guest:" + guest
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", CartIDHeader},
		ExposeHeaders:    []string{CartIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
