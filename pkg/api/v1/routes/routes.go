// Package routes defines the API routes and URL structure
package routes

import (
	"fmt"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/diffuselab/sdqueue/pkg/api/v1/handlers"
)

// API base configuration
const (
	// DefaultPort is the default port for the API
	DefaultPort = "8080"
	// APIv1Prefix is the prefix for all API endpoints
	APIv1Prefix = "/api/v1"
)

// DefaultBaseURL is the default base URL for the API
var DefaultBaseURL = fmt.Sprintf("http://localhost:%s", DefaultPort)

// Route names for lookup
const (
	// Health check
	HealthCheck = "HealthCheck"

	// Diffusion routes
	TextToImage   = "TextToImage"
	ImageToImage  = "ImageToImage"
	QueryJobs     = "QueryJobs"
	GetJob        = "GetJob"
	DownloadImage = "DownloadImage"
	CancelJob     = "CancelJob"
)

// Endpoint paths used by the API client
const (
	DiffusionPrefix  = APIv1Prefix + "/diffusion"
	TextToImagePath  = DiffusionPrefix + "/txt2img"
	ImageToImagePath = DiffusionPrefix + "/img2img"
)

// RegisterRoutes configures all the v1 routes.
//
// NOTE: route ordering matters because routes match in registration order;
// the literal txt2img/img2img slugs must precede the /:id param route.
func RegisterRoutes(app *fiber.App, diffusionHandler *handlers.DiffusionHandler) {
	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	}).Name(HealthCheck)

	diffusion := app.Group(DiffusionPrefix)
	diffusion.Post("/txt2img", diffusionHandler.TextToImage).Name(TextToImage)
	diffusion.Post("/img2img", diffusionHandler.ImageToImage).Name(ImageToImage)
	diffusion.Get("/", diffusionHandler.QueryJobs).Name(QueryJobs)
	diffusion.Get("/:id", diffusionHandler.GetJob).Name(GetJob)
	diffusion.Get("/:id/images/:index", diffusionHandler.DownloadImage).Name(DownloadImage)
	diffusion.Delete("/:id", diffusionHandler.CancelJob).Name(CancelJob)
}
