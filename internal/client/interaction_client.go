package client

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pesio-ai/be-ar-nonpayment/internal/dispatch"
)

// InteractionLogClient writes to the customer interaction log service.
type InteractionLogClient struct {
	http *resty.Client
}

// NewInteractionLogClient creates a new interaction log client
func NewInteractionLogClient(baseURL string, timeout time.Duration) *InteractionLogClient {
	return &InteractionLogClient{http: newRESTClient(baseURL, timeout)}
}

// LogInteraction appends one entry to the contract's interaction history.
func (c *InteractionLogClient) LogInteraction(ctx context.Context, entry dispatch.InteractionEntry) error {
	var body apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(entry).
		SetResult(&body).
		SetError(&body).
		Post("/api/v1/interactions")
	return checkResponse("interaction log", resp, err, &body)
}
