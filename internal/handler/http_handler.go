package handler

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/errors"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/logger"
	"github.com/pesio-ai/be-ar-nonpayment/internal/service"
)

// AccountHeader carries the staff account when the body does not.
const AccountHeader = "X-Account"

// Notices returned with an empty list when a read dependency is down.
const (
	NoticeReasonsUnavailable = "Không tải được danh sách nguyên nhân"
	NoticeHistoryUnavailable = "Không tải được lịch sử cập nhật"
)

const (
	msgDispatchFailed = "Cập nhật thất bại, vui lòng thử lại"
	msgInternal       = "Internal server error"
)

// HTTPHandler handles HTTP requests
type HTTPHandler struct {
	reasons     *service.ReasonService
	submissions *service.SubmissionService
	history     *service.HistoryService
	loc         *time.Location
	validate    *validator.Validate
	log         *logger.Logger
}

// NewHTTPHandler creates a new HTTP handler. Request dates are read in loc.
func NewHTTPHandler(
	reasons *service.ReasonService,
	submissions *service.SubmissionService,
	history *service.HistoryService,
	loc *time.Location,
	log *logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		reasons:     reasons,
		submissions: submissions,
		history:     history,
		loc:         loc,
		validate:    newValidator(),
		log:         log,
	}
}

// newValidator reports shape errors under the JSON field names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Routes mounts the API under /api/v1/nonpayment.
func (h *HTTPHandler) Routes(r chi.Router) {
	r.Route("/api/v1/nonpayment", func(r chi.Router) {
		r.Get("/reasons/level1", h.ListLevel1)
		r.Get("/reasons/level2", h.ListLevel2)
		r.Get("/reasons/level3", h.ListLevel3)
		r.Get("/history", h.ListHistory)
		r.Post("/submissions", h.Submit)
		r.Get("/contracts/{contractId}/latest", h.Latest)
		r.Get("/records/{id}/sync-status", h.SyncStatus)
		r.Patch("/records/{id}/lock-schedule", h.UpdateLockSchedule)
	})
}

type reasonsResponse struct {
	Success bool                `json:"success"`
	Reasons []domain.ReasonNode `json:"reasons"`
	Notice  string              `json:"notice,omitempty"`
}

// ListLevel1 handles GET /reasons/level1
func (h *HTTPHandler) ListLevel1(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.reasons.ListLevel1(r.Context())
	h.writeReasons(w, nodes, err)
}

// ListLevel2 handles GET /reasons/level2?level1=
func (h *HTTPHandler) ListLevel2(w http.ResponseWriter, r *http.Request) {
	level1 := r.URL.Query().Get("level1")
	if level1 == "" {
		h.writeError(w, errors.InvalidInput("level1", "level1 is required"))
		return
	}
	nodes, err := h.reasons.ListLevel2(r.Context(), level1)
	h.writeReasons(w, nodes, err)
}

// ListLevel3 handles GET /reasons/level3?level1=&level2=
func (h *HTTPHandler) ListLevel3(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	level1, level2 := q.Get("level1"), q.Get("level2")
	if level1 == "" || level2 == "" {
		h.writeError(w, errors.InvalidInput("level2", "level1 and level2 are required"))
		return
	}
	nodes, err := h.reasons.ListLevel3(r.Context(), level1, level2)
	h.writeReasons(w, nodes, err)
}

// writeReasons degrades an unavailable taxonomy to an empty list.
func (h *HTTPHandler) writeReasons(w http.ResponseWriter, nodes []domain.ReasonNode, err error) {
	if err != nil {
		if errors.CodeOf(err) != errors.ErrCodeUnavailable {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reasonsResponse{Success: true, Reasons: []domain.ReasonNode{}, Notice: NoticeReasonsUnavailable})
		return
	}
	writeJSON(w, http.StatusOK, reasonsResponse{Success: true, Reasons: nodes})
}

type historyResponse struct {
	Success bool                   `json:"success"`
	History []domain.HistoryRecord `json:"history"`
	Notice  string                 `json:"notice,omitempty"`
}

// ListHistory handles GET /history?contractId=&month=&year=
func (h *HTTPHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	contractID := q.Get("contractId")
	if contractID == "" {
		h.writeError(w, errors.InvalidInput("contractId", "contractId is required"))
		return
	}
	month, err := optionalInt(q.Get("month"))
	if err != nil {
		h.writeError(w, errors.InvalidInput("month", "month must be a number"))
		return
	}
	year, err := optionalInt(q.Get("year"))
	if err != nil {
		h.writeError(w, errors.InvalidInput("year", "year must be a number"))
		return
	}

	records, err := h.history.List(r.Context(), contractID, time.Month(month), year)
	if err != nil {
		if errors.CodeOf(err) != errors.ErrCodeUnavailable {
			h.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, historyResponse{Success: true, History: []domain.HistoryRecord{}, Notice: NoticeHistoryUnavailable})
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{Success: true, History: records})
}

// submitBody is the POST /submissions payload.
type submitBody struct {
	ContractID      string `json:"contractId" validate:"required,max=64"`
	StaffAccount    string `json:"staffAccount" validate:"required,max=64"`
	ReasonLevel1    string `json:"reasonLevel1"`
	ReasonLevel2    string `json:"reasonLevel2"`
	ReasonLevel3    string `json:"reasonLevel3"`
	Note            string `json:"note"`
	AppointmentDate string `json:"appointmentDate" validate:"omitempty,datetime=2006-01-02"`
	AppointmentTime string `json:"appointmentTime"`
	LockOption      string `json:"lockOption" validate:"omitempty,oneof=none schedule cancel"`
	LockDate        string `json:"lockDate" validate:"omitempty,datetime=2006-01-02"`
	LockStatus      string `json:"lockStatus" validate:"omitempty,oneof=maintain temporary cancelled"`
}

type submitResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	RecordID string `json:"recordId"`
}

// Submit handles POST /submissions
func (h *HTTPHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var body submitBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, errors.InvalidInput("body", "Invalid request body"))
		return
	}
	if body.StaffAccount == "" {
		body.StaffAccount = r.Header.Get(AccountHeader)
	}
	if err := h.checkShape(body); err != nil {
		h.writeError(w, err)
		return
	}

	// Shape validation guarantees the layouts.
	appointment, _ := domain.ParseDate(body.AppointmentDate, h.loc)
	lockDate, _ := domain.ParseDate(body.LockDate, h.loc)

	ack, err := h.submissions.Submit(r.Context(), &service.SubmitRequest{
		ContractID:   body.ContractID,
		StaffAccount: body.StaffAccount,
		Draft: domain.SubmissionDraft{
			ReasonLevel1:    body.ReasonLevel1,
			ReasonLevel2:    body.ReasonLevel2,
			ReasonLevel3:    body.ReasonLevel3,
			Note:            body.Note,
			AppointmentDate: appointment,
			AppointmentTime: body.AppointmentTime,
			LockOption:      domain.LockOption(body.LockOption),
			LockDate:        lockDate,
			LockStatus:      domain.LockStatus(body.LockStatus),
		},
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{Success: true, Message: ack.Message, RecordID: ack.RecordID})
}

type recordResponse struct {
	Success bool                     `json:"success"`
	Record  *domain.SubmissionRecord `json:"record"`
}

// Latest handles GET /contracts/{contractId}/latest
func (h *HTTPHandler) Latest(w http.ResponseWriter, r *http.Request) {
	rec, err := h.submissions.Latest(r.Context(), chi.URLParam(r, "contractId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{Success: true, Record: rec})
}

// SyncStatus handles GET /records/{id}/sync-status
func (h *HTTPHandler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.submissions.SyncStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "syncStatus": status})
}

type lockScheduleBody struct {
	StaffAccount string `json:"staffAccount" validate:"required,max=64"`
	LockOption   string `json:"lockOption" validate:"required,oneof=none schedule cancel"`
	LockDate     string `json:"lockDate" validate:"omitempty,datetime=2006-01-02"`
	LockStatus   string `json:"lockStatus" validate:"omitempty,oneof=maintain temporary cancelled"`
}

// UpdateLockSchedule handles PATCH /records/{id}/lock-schedule
func (h *HTTPHandler) UpdateLockSchedule(w http.ResponseWriter, r *http.Request) {
	var body lockScheduleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, errors.InvalidInput("body", "Invalid request body"))
		return
	}
	if body.StaffAccount == "" {
		body.StaffAccount = r.Header.Get(AccountHeader)
	}
	if err := h.checkShape(body); err != nil {
		h.writeError(w, err)
		return
	}
	lockDate, _ := domain.ParseDate(body.LockDate, h.loc)

	rec, err := h.submissions.UpdateLockSchedule(r.Context(), &service.LockScheduleRequest{
		RecordID:     chi.URLParam(r, "id"),
		StaffAccount: body.StaffAccount,
		LockOption:   domain.LockOption(body.LockOption),
		LockDate:     lockDate,
		LockStatus:   domain.LockStatus(body.LockStatus),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recordResponse{Success: true, Record: rec})
}

// checkShape runs the struct tags and reports the first failing field.
func (h *HTTPHandler) checkShape(body any) error {
	err := h.validate.Struct(body)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return errors.InvalidInput(fe.Field(), "failed on "+fe.Tag())
	}
	return errors.InvalidInput("body", err.Error())
}

type errorResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Field   string                  `json:"field,omitempty"`
	Errors  domain.ValidationErrors `json:"errors,omitempty"`
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)
	resp := errorResponse{Message: msgInternal}

	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case errors.ErrCodeInternal:
		case errors.ErrCodeDispatchFailed:
			resp.Message = msgDispatchFailed
		default:
			resp.Message = appErr.Message
			resp.Field = appErr.Field
		}
		if details, ok := appErr.Details.(domain.ValidationErrors); ok {
			resp.Errors = details
		}
	}

	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Int("status", status).Msg("Request failed")
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func optionalInt(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
