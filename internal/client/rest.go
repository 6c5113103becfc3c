package client

import (
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pesio-ai/be-ar-nonpayment/internal/middleware"
)

// newRESTClient returns a JSON client for baseURL that forwards the request id.
func newRESTClient(baseURL string, timeout time.Duration) *resty.Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	c.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if id := middleware.RequestIDFromContext(r.Context()); id != "" {
			r.SetHeader(middleware.RequestIDHeader, id)
		}
		return nil
	})
	return c
}

// checkResponse turns a transport error, a non-2xx status or a
// success=false envelope into an error.
func checkResponse(what string, resp *resty.Response, err error, body *apiResponse) error {
	if err != nil {
		return fmt.Errorf("%s request failed: %w", what, err)
	}
	if resp.IsError() {
		return fmt.Errorf("%s returned %d: %s", what, resp.StatusCode(), body.Message)
	}
	if body.Success != nil && !*body.Success {
		return fmt.Errorf("%s rejected request: %s", what, body.Message)
	}
	return nil
}
