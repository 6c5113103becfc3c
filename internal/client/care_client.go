package client

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
)

// CareSystemClient writes remapped records to the customer care system.
type CareSystemClient struct {
	http *resty.Client
}

// NewCareSystemClient creates a new care system client
func NewCareSystemClient(baseURL string, timeout time.Duration) *CareSystemClient {
	return &CareSystemClient{http: newRESTClient(baseURL, timeout)}
}

// UpsertCareRecord sends the care record for contractID.
func (c *CareSystemClient) UpsertCareRecord(ctx context.Context, contractID string, rec domain.CareSystemMapping) error {
	var body apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(careRecordRequest{ContractID: contractID, CareSystemMapping: rec}).
		SetResult(&body).
		SetError(&body).
		Post("/api/v1/care-records")
	return checkResponse("care system", resp, err, &body)
}
