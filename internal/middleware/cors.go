package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsMethods = "GET, POST, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization"
)

type originPolicy struct {
	any     bool
	allowed map[string]struct{}
}

// newOriginPolicy parses CORS_ALLOWED_ORIGINS: "*", empty (same as "*"), or a comma-separated list.
func newOriginPolicy(s string) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{})}
	for _, o := range strings.Split(s, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			p.any = true
		default:
			p.allowed[o] = struct{}{}
		}
	}
	if len(p.allowed) == 0 {
		p.any = true
	}
	return p
}

// match returns the Access-Control-Allow-Origin value for origin, or "".
func (p originPolicy) match(origin string) string {
	if p.any {
		return "*"
	}
	if _, ok := p.allowed[origin]; ok {
		return origin
	}
	return ""
}

// CORS answers preflights and tags responses for the creator console and reader apps.
func CORS(allowedOrigins string) gin.HandlerFunc {
	policy := newOriginPolicy(allowedOrigins)
	return func(c *gin.Context) {
		h := c.Writer.Header()
		allow := policy.match(c.GetHeader("Origin"))
		if !policy.any {
			h.Add("Vary", "Origin")
		}
		if allow != "" {
			h.Set("Access-Control-Allow-Origin", allow)
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
