// Package client provides the API client for the diffusion service
package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/diffuselab/sdqueue/internal/db/models"
	"github.com/diffuselab/sdqueue/internal/services"
	"github.com/diffuselab/sdqueue/internal/types"
	"github.com/diffuselab/sdqueue/pkg/api/v1/handlers"
	"github.com/diffuselab/sdqueue/pkg/api/v1/routes"
)

// DefaultTimeout is the default timeout for API requests
const DefaultTimeout = 30 * time.Second

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the API
	BaseURL string
	// ClientID identifies the caller; jobs are owned by it
	ClientID string
	// Timeout is the request timeout
	Timeout time.Duration
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: routes.DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// Client is the API client for the diffusion service
type Client struct {
	baseURL  string
	clientID string
	timeout  time.Duration
}

// New creates a new API client with the given options
func New(opts *Options) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:  opts.BaseURL,
		clientID: opts.ClientID,
		timeout:  timeout,
	}, nil
}

// envelope mirrors types.SlugResponse with a raw data payload
type envelope struct {
	Slug  types.Slug      `json:"slug"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

// TextToImage enqueues a text-to-image job
func (c *Client) TextToImage(req types.DiffusionRequest) (*services.EnqueueResult, error) {
	agent := fiber.Post(c.baseURL + routes.TextToImagePath)
	agent.JSON(req)

	var result services.EnqueueResult
	if err := c.do(agent, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ImageToImage enqueues an image-to-image job with the given seed image
func (c *Client) ImageToImage(req types.ImageToImageRequest, imageName string, image []byte) (*services.EnqueueResult, error) {
	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	args.Set("prompt", req.Prompt)
	args.Set("version", req.Version)
	args.Set("samples", strconv.Itoa(req.Samples))
	args.Set("steps", strconv.Itoa(req.Steps))
	args.Set("seed", strconv.Itoa(req.Seed))
	args.Set("strength", strconv.Itoa(req.Strength))
	if req.Width > 0 {
		args.Set("width", strconv.Itoa(req.Width))
	}
	if req.Height > 0 {
		args.Set("height", strconv.Itoa(req.Height))
	}

	agent := fiber.Post(c.baseURL + routes.ImageToImagePath)
	agent.FileData(&fiber.FormFile{
		Fieldname: "init_image",
		Name:      imageName,
		Content:   image,
	}).MultipartForm(args)

	var result services.EnqueueResult
	if err := c.do(agent, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJob retrieves a job, optionally with its output files inlined
func (c *Client) GetJob(jobID string, includeFiles bool) (*types.JobResponse, error) {
	endpoint := routes.DiffusionPrefix + "/" + jobID
	if includeFiles {
		endpoint += "?include=files"
	}
	agent := fiber.Get(c.baseURL + endpoint)

	var resp types.JobResponse
	if err := c.do(agent, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueryJobs lists the caller's jobs inside the lookback window
func (c *Client) QueryJobs(statusAbove, statusBelow *int, windowHours int) ([]models.Job, error) {
	values := url.Values{}
	if statusAbove != nil {
		values.Set("status_above", strconv.Itoa(*statusAbove))
	}
	if statusBelow != nil {
		values.Set("status_below", strconv.Itoa(*statusBelow))
	}
	if windowHours > 0 {
		values.Set("window_hours", strconv.Itoa(windowHours))
	}
	endpoint := routes.DiffusionPrefix + "/"
	if q := values.Encode(); q != "" {
		endpoint += "?" + q
	}

	agent := fiber.Get(c.baseURL + endpoint)
	c.prepare(agent)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("request failed: %v", errs[0])
	}

	var resp types.ListJobsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("query failed with status %d", code)
	}
	return resp.Jobs, nil
}

// CancelJob cancels a job; it reports whether a cancellation took effect
func (c *Client) CancelJob(jobID string) (bool, error) {
	agent := fiber.Delete(c.baseURL + routes.DiffusionPrefix + "/" + jobID)
	c.prepare(agent)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return false, fmt.Errorf("request failed: %v", errs[0])
	}
	switch code {
	case http.StatusOK:
		return true, nil
	case http.StatusNoContent:
		return false, nil
	default:
		return false, apiError(code, body)
	}
}

// DownloadImage fetches one result image of a completed job
func (c *Client) DownloadImage(jobID string, index int) ([]byte, string, error) {
	endpoint := fmt.Sprintf("%s/%s/images/%d", routes.DiffusionPrefix, jobID, index)
	agent := fiber.Get(c.baseURL + endpoint)
	c.prepare(agent)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, "", fmt.Errorf("request failed: %v", errs[0])
	}
	if code != http.StatusOK {
		return nil, "", apiError(code, body)
	}
	return body, http.DetectContentType(body), nil
}

// HealthCheck verifies the server is reachable
func (c *Client) HealthCheck() error {
	agent := fiber.Get(c.baseURL + "/health")
	agent.Timeout(c.timeout)
	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("health check failed: %v", errs[0])
	}
	if code != http.StatusOK {
		return fmt.Errorf("health check failed with status %d", code)
	}
	return nil
}

func (c *Client) prepare(agent *fiber.Agent) {
	agent.Timeout(c.timeout)
	if c.clientID != "" {
		agent.Set(handlers.ClientIDHeader, c.clientID)
	}
}

func (c *Client) do(agent *fiber.Agent, out interface{}) error {
	c.prepare(agent)
	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("request failed: %v", errs[0])
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if env.Slug != types.SuccessSlug {
		return apiError(code, body)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

func apiError(code int, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != "" {
		return fmt.Errorf("api error (status %d): %s", code, env.Error)
	}
	return fmt.Errorf("api error (status %d)", code)
}
