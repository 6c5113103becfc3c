package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/middleware"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/errors"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/logger"
	"github.com/pesio-ai/be-ar-nonpayment/internal/service"
)

// NonPaymentReasonServiceName is the full gRPC service name. Messages are
// google.protobuf.Struct in both directions.
const NonPaymentReasonServiceName = "mobix.nonpayment.v1.NonPaymentReasonService"

// NonPaymentReasonServer is the server API of NonPaymentReasonService.
type NonPaymentReasonServer interface {
	ListReasons(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// RegisterNonPaymentReasonServer registers srv on s.
func RegisterNonPaymentReasonServer(s grpc.ServiceRegistrar, srv NonPaymentReasonServer) {
	s.RegisterService(&nonPaymentReasonServiceDesc, srv)
}

var nonPaymentReasonServiceDesc = grpc.ServiceDesc{
	ServiceName: NonPaymentReasonServiceName,
	HandlerType: (*NonPaymentReasonServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListReasons", Handler: unaryHandler("ListReasons", NonPaymentReasonServer.ListReasons)},
		{MethodName: "Submit", Handler: unaryHandler("Submit", NonPaymentReasonServer.Submit)},
		{MethodName: "ListHistory", Handler: unaryHandler("ListHistory", NonPaymentReasonServer.ListHistory)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "mobix/nonpayment/v1/nonpayment.proto",
}

type structMethod func(NonPaymentReasonServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call structMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + NonPaymentReasonServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(NonPaymentReasonServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(NonPaymentReasonServer), ctx, req.(*structpb.Struct))
		})
	}
}

// GRPCHandler implements NonPaymentReasonServer
type GRPCHandler struct {
	reasons     *service.ReasonService
	submissions *service.SubmissionService
	history     *service.HistoryService
	loc         *time.Location
	validate    *validator.Validate
	logger      *logger.Logger
}

// NewGRPCHandler creates a new gRPC handler
func NewGRPCHandler(
	reasons *service.ReasonService,
	submissions *service.SubmissionService,
	history *service.HistoryService,
	loc *time.Location,
	log *logger.Logger,
) *GRPCHandler {
	return &GRPCHandler{
		reasons:     reasons,
		submissions: submissions,
		history:     history,
		loc:         loc,
		validate:    newValidator(),
		logger:      log.Component("grpc"),
	}
}

type listReasonsRequest struct {
	Level  int    `json:"level" validate:"required,min=1,max=3"`
	Level1 string `json:"level1" validate:"required_unless=Level 1"`
	Level2 string `json:"level2" validate:"required_if=Level 3"`
}

// ListReasons returns the reasons of one level. An unavailable taxonomy
// yields an empty list with a notice.
func (h *GRPCHandler) ListReasons(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in listReasonsRequest
	if err := h.decode(req, &in); err != nil {
		return nil, toStatus(err)
	}

	var (
		nodes []domain.ReasonNode
		err   error
	)
	switch in.Level {
	case 1:
		nodes, err = h.reasons.ListLevel1(ctx)
	case 2:
		nodes, err = h.reasons.ListLevel2(ctx, in.Level1)
	default:
		nodes, err = h.reasons.ListLevel3(ctx, in.Level1, in.Level2)
	}

	resp := reasonsResponse{Success: true, Reasons: nodes}
	if err != nil {
		if errors.CodeOf(err) != errors.ErrCodeUnavailable {
			return nil, toStatus(err)
		}
		resp.Reasons = []domain.ReasonNode{}
		resp.Notice = NoticeReasonsUnavailable
	}
	return toStruct(resp)
}

// Submit validates and dispatches a submission.
func (h *GRPCHandler) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in submitBody
	if err := h.decode(req, &in); err != nil {
		return nil, toStatus(err)
	}
	appointment, _ := domain.ParseDate(in.AppointmentDate, h.loc)
	lockDate, _ := domain.ParseDate(in.LockDate, h.loc)

	ack, err := h.submissions.Submit(ctx, &service.SubmitRequest{
		ContractID:   in.ContractID,
		StaffAccount: in.StaffAccount,
		Draft: domain.SubmissionDraft{
			ReasonLevel1:    in.ReasonLevel1,
			ReasonLevel2:    in.ReasonLevel2,
			ReasonLevel3:    in.ReasonLevel3,
			Note:            in.Note,
			AppointmentDate: appointment,
			AppointmentTime: in.AppointmentTime,
			LockOption:      domain.LockOption(in.LockOption),
			LockDate:        lockDate,
			LockStatus:      domain.LockStatus(in.LockStatus),
		},
	})
	if err != nil {
		if errors.HTTPStatus(err) >= 500 {
			h.logger.Error().Err(err).Str("contract_id", in.ContractID).Msg("gRPC Submit failed")
		}
		return nil, toStatus(err)
	}
	return toStruct(submitResponse{Success: true, Message: ack.Message, RecordID: ack.RecordID})
}

type listHistoryRequest struct {
	ContractID string `json:"contractId" validate:"required"`
	Month      int    `json:"month" validate:"min=0,max=12"`
	Year       int    `json:"year" validate:"min=0"`
}

// ListHistory returns a contract's submissions for one month.
func (h *GRPCHandler) ListHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in listHistoryRequest
	if err := h.decode(req, &in); err != nil {
		return nil, toStatus(err)
	}

	records, err := h.history.List(ctx, in.ContractID, time.Month(in.Month), in.Year)
	resp := historyResponse{Success: true, History: records}
	if err != nil {
		if errors.CodeOf(err) != errors.ErrCodeUnavailable {
			return nil, toStatus(err)
		}
		resp.History = []domain.HistoryRecord{}
		resp.Notice = NoticeHistoryUnavailable
	}
	return toStruct(resp)
}

// decode maps a Struct onto a request type and checks its tags. Struct
// numbers arrive as float64 and decode into int fields when integral.
func (h *GRPCHandler) decode(req *structpb.Struct, out any) error {
	raw, err := json.Marshal(req.AsMap())
	if err != nil {
		return errors.InvalidInput("request", "malformed request")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.InvalidInput("request", "malformed request")
	}
	err = h.validate.Struct(out)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return errors.InvalidInput(verrs[0].Field(), "failed on "+verrs[0].Tag())
	}
	return errors.InvalidInput("request", err.Error())
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return s, nil
}

// toStatus converts an application error to a gRPC status. Field errors
// are folded into the message as "field: message" pairs.
func toStatus(err error) error {
	code := errors.GRPCCode(err)
	var appErr *errors.AppError
	if !errors.As(err, &appErr) || appErr.Code == errors.ErrCodeInternal {
		return status.Error(codes.Internal, msgInternal)
	}
	if appErr.Code == errors.ErrCodeDispatchFailed {
		return status.Error(code, msgDispatchFailed)
	}

	msg := appErr.Message
	if appErr.Field != "" {
		msg = appErr.Field + ": " + msg
	}
	if details, ok := appErr.Details.(domain.ValidationErrors); ok && len(details) > 0 {
		parts := make([]string, 0, len(details))
		for _, d := range details {
			parts = append(parts, fmt.Sprintf("%s: %s", d.Field, d.Message))
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	return status.Error(code, msg)
}

// UnaryLogger logs each call with the request id taken from the incoming
// x-request-id metadata.
func UnaryLogger(log *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get("x-request-id"); len(ids) > 0 {
				ctx = middleware.WithRequestID(ctx, ids[0])
			}
		}
		resp, err := next(ctx, req)
		log.Info().
			Str("method", info.FullMethod).
			Str("request_id", middleware.RequestIDFromContext(ctx)).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("gRPC call")
		return resp, err
	}
}
