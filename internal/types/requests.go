// Package types defines the API request and response shapes.
package types

import "github.com/diffuselab/sdqueue/internal/db/models"

// DiffusionRequest is the client-facing shape of a text-to-image request.
type DiffusionRequest struct {
	// Prompt is the text prompt (min 3 chars)
	Prompt string `json:"prompt" form:"prompt"`
	// Version selects the model checkpoint (1-1 .. 1-4, default 1-4)
	Version string `json:"version" form:"version"`
	// Samples is the number of images to generate (1-9, default 1)
	Samples int `json:"samples" form:"samples"`
	// Steps is the number of diffusion steps (10-100, default 50)
	Steps int `json:"steps" form:"steps"`
	// Seed is the random seed (0-9999, 0 picks a random one)
	Seed int `json:"seed" form:"seed"`
	// Width/Height override the output size when set (multiples of 64)
	Width  int `json:"width" form:"width"`
	Height int `json:"height" form:"height"`
}

// ImageToImageRequest adds the seed-image parameters. The image bytes
// travel as a multipart file alongside the form fields.
type ImageToImageRequest struct {
	DiffusionRequest
	// Strength controls noising of the init image (1-100, default 80)
	Strength int `json:"strength" form:"strength"`
}

// ToModel converts the request into the persisted parameter set.
func (r DiffusionRequest) ToModel() models.GenerationRequest {
	return models.GenerationRequest{
		Prompt:  r.Prompt,
		Version: r.Version,
		Samples: r.Samples,
		Steps:   r.Steps,
		Seed:    r.Seed,
		Width:   r.Width,
		Height:  r.Height,
	}
}

// ToModel converts the request into the persisted parameter set.
func (r ImageToImageRequest) ToModel(initImageName string) models.GenerationRequest {
	m := r.DiffusionRequest.ToModel()
	m.InitImageName = initImageName
	m.Strength = r.Strength
	return m
}
