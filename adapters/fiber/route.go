// Package fiber mounts the bridge's single action endpoint and the
// session-protecting middleware onto a Fiber application.
package fiber

import (
	"github.com/gofiber/fiber/v3"

	"github.com/kairan-app/kairan/core"
)

type Adapter struct {
	app *fiber.App
}

var _ core.HTTPAdapter = (*Adapter)(nil)

func New(app *fiber.App) *Adapter {
	return &Adapter{app: app}
}

// RegisterRoutes mounts POST {basePath}/action, the one endpoint every
// bridge operation travels through.
func (a *Adapter) RegisterRoutes(handler core.ActionHandler, basePath string) error {
	api := a.app.Group(basePath)
	api.Post("/action", a.action(handler))
	return nil
}
