package fiber

import (
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/kairan-app/kairan/core"
)

// RequireSession builds a middleware that rejects requests without a live
// session and stores the resolved account, link and session in the request
// locals for downstream handlers.
func RequireSession(resolver core.SessionResolver) fiber.Handler {
	return func(c fiber.Ctx) error {
		token := extractToken(c)
		if token == "" {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing authorization token",
			})
		}

		data, err := resolver.ResolveSession(c.Context(), token)
		if err != nil {
			return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		c.Locals("account", data.Account)
		c.Locals("link", data.Link)
		c.Locals("session", data.Session)

		return c.Next()
	}
}
