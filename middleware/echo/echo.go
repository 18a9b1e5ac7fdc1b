// Package echo mounts a billing webhook processor on Echo routes.
package echo

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mihaimyh/lemongate/pkg/billing"
)

// Handler returns an Echo handler that passes the raw request body to p.
// Do not put a body-binding middleware in front of it.
//
// Example:
//
//	e.Any("/webhooks/lemonsqueezy", echo.Handler(provider))
func Handler(p billing.WebhookProcessor) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := c.Request()
		req := billing.WebhookRequest{
			Method:    r.Method,
			Signature: r.Header.Get(p.SignatureHeader()),
		}

		if r.Method == http.MethodPost {
			body, err := io.ReadAll(http.MaxBytesReader(c.Response(), r.Body, p.MaxBodyBytes()))
			req.Body, req.BodyErr = body, billing.BodyError(err)
		}

		res := p.Process(r.Context(), req)
		c.Response().Header().Set("Cache-Control", "no-store")
		return c.JSON(res.Status, res.Body)
	}
}
