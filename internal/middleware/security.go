package middleware

import "github.com/gin-gonic/gin"

// SecurityHeaders applies common hardening headers. No Content-Security-Policy
// is set here: proxied origin documents carry their own policy and the gateway
// must not override it.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
		c.Next()
	}
}
