package fiber

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/kairan-app/kairan/core"
)

// action adapts the dispatcher to the wire contract: a JSON body carrying
// an "action" discriminator, logical failures reported inside a 2xx
// response as {"error": ...}.
func (a *Adapter) action(handler core.ActionHandler) fiber.Handler {
	return func(c fiber.Ctx) error {
		body := c.Body()

		var envelope struct {
			Action string `json:"action"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil || envelope.Action == "" {
			return c.Status(http.StatusBadRequest).JSON(fiber.Map{
				"error": "missing or invalid action",
			})
		}

		ctx := core.WithRequestMeta(c.Context(), core.RequestMeta{
			IPAddress: c.IP(),
			UserAgent: c.Get(fiber.HeaderUserAgent),
			Token:     extractToken(c),
		})

		result, err := handler.Handle(ctx, envelope.Action, body)
		if err != nil {
			return c.Status(mapErrorToStatus(err)).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.Status(http.StatusOK).JSON(result)
	}
}

// extractToken pulls the bearer token from the Authorization header, falling
// back to the session cookie.
func extractToken(c fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return c.Cookies("kairan_session")
}

// mapErrorToStatus keeps logical failures inside 2xx per the wire contract.
// Only upstream unavailability surfaces as a transport-level status.
func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrProviderUnavailable),
		errors.Is(err, core.ErrDirectoryUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	default:
		return http.StatusOK
	}
}
