package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const accountIDKey = "auth.account_id"

// RequireAccount rejects requests without a valid bearer session token and
// stores the caller's account id in the context.
func RequireAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required: Bearer <token>",
			})
			return
		}

		claims, err := ParseAccountToken(raw)
		if err != nil {
			log.Debug().Err(err).Str("path", c.FullPath()).Msg("Session token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(accountIDKey, claims.AccountID())
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AccountID returns the authenticated account of the request
func AccountID(c *gin.Context) (string, bool) {
	id := c.GetString(accountIDKey)
	return id, id != ""
}
