package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/gnap-auth/internal/domain"
	"github.com/smallbiznis/gnap-auth/internal/tenant"
)

const ginTenantKey = "tenant"

// Tenant resolves the tenant from the Host header and stores it in the Gin
// context.
func Tenant(resolver *tenant.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		host := stripPort(c.Request.Host)
		tenantRow, err := resolver.Resolve(c.Request.Context(), host)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
				"error": gin.H{"code": "invalid_request", "description": "unknown tenant"},
			})
			return
		}
		c.Set(ginTenantKey, tenantRow)
		c.Next()
	}
}

// GetTenant extracts the resolved tenant from the Gin context.
func GetTenant(c *gin.Context) (domain.Tenant, bool) {
	value, ok := c.Get(ginTenantKey)
	if !ok {
		return domain.Tenant{}, false
	}
	tenantRow, ok := value.(domain.Tenant)
	return tenantRow, ok
}

func stripPort(host string) string {
	if strings.Contains(host, ":") {
		if h, _, err := net.SplitHostPort(host); err == nil {
			return h
		}
	}
	return host
}
