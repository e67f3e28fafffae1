// Package app assembles the HTTP application.
package app

import (
	fiber "github.com/gofiber/fiber/v2"

	"github.com/diffuselab/sdqueue/internal/api/middleware"
	"github.com/diffuselab/sdqueue/internal/services"
	"github.com/diffuselab/sdqueue/pkg/api/v1/handlers"
	"github.com/diffuselab/sdqueue/pkg/api/v1/routes"
)

// maxBodySize bounds request bodies; seed image uploads are the largest.
const maxBodySize = 32 << 20

// New builds the fiber application with middleware and the v1 routes.
func New(svc *services.Diffusion) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
		BodyLimit:    maxBodySize,
	})

	app.Use(middleware.Logger())

	routes.RegisterRoutes(app, handlers.NewDiffusionHandler(svc))

	return app
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
