// Package fiber mounts a billing webhook processor on Fiber routes.
package fiber

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mihaimyh/lemongate/pkg/billing"
)

// Handler returns a Fiber handler that passes the raw request body to p.
//
// Fiber enforces its own Config.BodyLimit before any handler runs; bodies
// under that limit but over p.MaxBodyBytes are rejected here. The body is
// taken as transmitted: Content-Encoding is not undone, since the signature
// covers the wire bytes.
//
// Example:
//
//	app.All("/webhooks/lemonsqueezy", fiber.Handler(provider))
func Handler(p billing.WebhookProcessor) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := billing.WebhookRequest{
			Method:    c.Method(),
			Signature: c.Get(p.SignatureHeader()),
		}

		if c.Method() == fiber.MethodPost {
			body := c.BodyRaw()
			if int64(len(body)) > p.MaxBodyBytes() {
				req.BodyErr = billing.ErrPayloadTooLarge
			} else {
				// Fiber reuses the request buffer after the handler returns.
				req.Body = append([]byte(nil), body...)
			}
		}

		res := p.Process(c.UserContext(), req)
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Status(res.Status).JSON(res.Body)
	}
}
