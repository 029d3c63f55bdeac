package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bloglist/internal/domain"
)

const (
	identityKey   = "identity"
	tokenErrorKey = "identity_error"
)

// identityMiddleware resolves a bearer token into an Identity when one is
// present. A token that does not verify leaves the request anonymous; only
// routes behind requireIdentity reject it.
func (h *Handler) identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader("Authorization"))
		if raw == "" {
			c.Next()
			return
		}

		identity, err := h.tokens.Parse(raw)
		if err != nil {
			c.Set(tokenErrorKey, err)
			c.Next()
			return
		}
		c.Set(identityKey, identity)
		c.Next()
	}
}

func requireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if identityFrom(c) != nil {
			c.Next()
			return
		}
		if _, rejected := c.Get(tokenErrorKey); rejected {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token invalid"})
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token missing"})
	}
}

func identityFrom(c *gin.Context) *domain.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*domain.Identity)
	return identity
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
