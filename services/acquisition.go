package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"velomarkt/config"
)

// DeepCollectRequest asks the acquisition backend to source listings for a
// brand/model, optionally constrained to given sizes and price brackets.
type DeepCollectRequest struct {
	Brand         string                `json:"brand"`
	Model         string                `json:"model"`
	Tier          int                   `json:"tier"`
	Sizes         []string              `json:"sizes,omitempty"`
	PriceBrackets []config.PriceBracket `json:"price_brackets,omitempty"`
	Reason        string                `json:"reason"`
}

type DeepCollectResponse struct {
	Accepted  bool   `json:"accepted"`
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
}

// AcquisitionClient talks to the external sourcing service.
type AcquisitionClient struct {
	client *resty.Client
}

func NewAcquisitionClient(cfg config.AcquisitionConfig) *AcquisitionClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(30*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2*time.Second).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &AcquisitionClient{client: client}
}

// DeepCollect submits a sourcing request and returns the backend's
// acknowledgement. A non-2xx response is an error; callers decide whether
// that is fatal.
func (c *AcquisitionClient) DeepCollect(ctx context.Context, req DeepCollectRequest) (*DeepCollectResponse, error) {
	var out DeepCollectResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/api/v1/deep-collect")
	if err != nil {
		return nil, fmt.Errorf("deep-collect request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("deep-collect: status %d: %s", resp.StatusCode(), resp.String())
	}
	return &out, nil
}
