package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/errors"
)

const apiPrefix = "/api/v1/nonpayment"

// APIClient talks to the service's HTTP API. It serves reason lists to a
// form and submits drafts on behalf of one staff account.
type APIClient struct {
	http    *resty.Client
	account string
}

// NewAPIClient creates a client for baseURL acting as account.
func NewAPIClient(baseURL, account string, timeout time.Duration) *APIClient {
	return &APIClient{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
		account: account,
	}
}

type reasonsBody struct {
	Reasons []domain.ReasonNode `json:"reasons"`
	Notice  string              `json:"notice"`
}

type historyBody struct {
	History []domain.HistoryRecord `json:"history"`
	Notice  string                 `json:"notice"`
}

type submitResult struct {
	Message  string `json:"message"`
	RecordID string `json:"recordId"`
}

type errorBody struct {
	Message string                  `json:"message"`
	Field   string                  `json:"field"`
	Errors  domain.ValidationErrors `json:"errors"`
}

func (c *APIClient) ListLevel1(ctx context.Context) ([]domain.ReasonNode, error) {
	return c.reasons(ctx, "/reasons/level1", nil)
}

func (c *APIClient) ListLevel2(ctx context.Context, level1ID string) ([]domain.ReasonNode, error) {
	return c.reasons(ctx, "/reasons/level2", map[string]string{"level1": level1ID})
}

func (c *APIClient) ListLevel3(ctx context.Context, level1ID, level2ID string) ([]domain.ReasonNode, error) {
	return c.reasons(ctx, "/reasons/level3", map[string]string{"level1": level1ID, "level2": level2ID})
}

// reasons treats a degraded response (empty list plus notice) as a failure
// so the form records its own notice.
func (c *APIClient) reasons(ctx context.Context, path string, query map[string]string) ([]domain.ReasonNode, error) {
	var body reasonsBody
	var failed errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(&body).
		SetError(&failed).
		Get(apiPrefix + path)
	if err := remoteError(resp, err, &failed); err != nil {
		return nil, err
	}
	if body.Notice != "" {
		return nil, errors.Unavailable(body.Notice, nil)
	}
	return body.Reasons, nil
}

// History returns a contract's records for a month; zero month and year
// mean the current month on the server. A non-empty notice means the server
// could not load the history.
func (c *APIClient) History(ctx context.Context, contractID string, month, year int) ([]domain.HistoryRecord, string, error) {
	query := map[string]string{"contractId": contractID}
	if month != 0 {
		query["month"] = strconv.Itoa(month)
	}
	if year != 0 {
		query["year"] = strconv.Itoa(year)
	}

	var body historyBody
	var failed errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		SetResult(&body).
		SetError(&failed).
		Get(apiPrefix + "/history")
	if err := remoteError(resp, err, &failed); err != nil {
		return nil, "", err
	}
	return body.History, body.Notice, nil
}

// Submit posts draft for contractID. Server-side field errors come back as
// a VALIDATION_FAILED error carrying domain.ValidationErrors.
func (c *APIClient) Submit(ctx context.Context, contractID string, draft domain.SubmissionDraft) (*domain.SubmitAck, error) {
	payload := map[string]any{
		"contractId":      contractID,
		"staffAccount":    c.account,
		"reasonLevel1":    draft.ReasonLevel1,
		"reasonLevel2":    draft.ReasonLevel2,
		"reasonLevel3":    draft.ReasonLevel3,
		"note":            draft.Note,
		"appointmentDate": formatDate(draft.AppointmentDate),
		"appointmentTime": draft.AppointmentTime,
		"lockOption":      string(draft.LockOption),
		"lockDate":        formatDate(draft.LockDate),
		"lockStatus":      string(draft.LockStatus),
	}

	var result submitResult
	var failed errorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		SetResult(&result).
		SetError(&failed).
		Post(apiPrefix + "/submissions")
	if err := remoteError(resp, err, &failed); err != nil {
		return nil, err
	}
	return &domain.SubmitAck{RecordID: result.RecordID, Message: result.Message}, nil
}

// remoteError turns a transport failure or an error response into an
// AppError with the matching code.
func remoteError(resp *resty.Response, err error, body *errorBody) error {
	if err != nil {
		return errors.Unavailable("service unreachable", err)
	}
	if !resp.IsError() {
		return nil
	}

	msg := body.Message
	if msg == "" {
		msg = resp.Status()
	}
	switch resp.StatusCode() {
	case http.StatusBadRequest:
		if len(body.Errors) > 0 {
			return errors.Validation(body.Errors)
		}
		return errors.InvalidInput(body.Field, msg)
	case http.StatusUnauthorized:
		return errors.Unauthorized(msg)
	case http.StatusForbidden:
		return errors.Forbidden(msg)
	case http.StatusNotFound:
		return errors.New(errors.ErrCodeNotFound, msg)
	case http.StatusBadGateway:
		return errors.DispatchFailed("service", stderrors.New(msg))
	case http.StatusServiceUnavailable:
		return errors.Unavailable(msg, nil)
	default:
		return errors.New(errors.ErrCodeInternal, fmt.Sprintf("%s: %s", resp.Status(), msg))
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(domain.DateLayout)
}
