// Package gin mounts a billing webhook processor on Gin routes.
package gin

import (
	"net/http"

	gongin "github.com/gin-gonic/gin"

	"github.com/mihaimyh/lemongate/pkg/billing"
)

// Handler returns a Gin handler that passes the raw request body to p.
// Register it with Any so that other methods reach p and get its 405.
//
// Example:
//
//	router.Any("/webhooks/lemonsqueezy", gin.Handler(provider))
func Handler(p billing.WebhookProcessor) gongin.HandlerFunc {
	return func(c *gongin.Context) {
		req := billing.WebhookRequest{
			Method:    c.Request.Method,
			Signature: c.GetHeader(p.SignatureHeader()),
		}

		if c.Request.Method == http.MethodPost {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, p.MaxBodyBytes())
			body, err := c.GetRawData()
			req.Body, req.BodyErr = body, billing.BodyError(err)
		}

		res := p.Process(c.Request.Context(), req)
		c.Header("Cache-Control", "no-store")
		c.JSON(res.Status, res.Body)
	}
}
