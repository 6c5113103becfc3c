package client

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-ar-nonpayment/internal/dispatch"
	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
)

// RecordNonPaymentReasonMethod is the debt management RPC this client calls.
// Requests and replies are google.protobuf.Struct messages.
const RecordNonPaymentReasonMethod = "/mobix.debt.v1.DebtManagementService/RecordNonPaymentReason"

// DebtManagementGRPCClient is a gRPC client for the debt management system.
type DebtManagementGRPCClient struct {
	conn *grpc.ClientConn
}

// NewDebtManagementGRPCClient creates a new debt management gRPC client
func NewDebtManagementGRPCClient(addr string, opts ...grpc.DialOption) (*DebtManagementGRPCClient, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(forwardMetadata),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}
	return &DebtManagementGRPCClient{conn: conn}, nil
}

// Close closes the gRPC connection
func (c *DebtManagementGRPCClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// RecordNonPaymentReason forwards one reason record. A reply with
// success=false is an error.
func (c *DebtManagementGRPCClient) RecordNonPaymentReason(ctx context.Context, rec dispatch.DebtRecord) error {
	req, err := structpb.NewStruct(debtRecordFields(rec))
	if err != nil {
		return fmt.Errorf("failed to encode debt record: %w", err)
	}

	var resp structpb.Struct
	if err := c.conn.Invoke(ctx, RecordNonPaymentReasonMethod, req, &resp); err != nil {
		return fmt.Errorf("failed to record non-payment reason: %w", err)
	}

	fields := resp.GetFields()
	if ok, found := fields["success"]; found && !ok.GetBoolValue() {
		return fmt.Errorf("debt management rejected record: %s", fields["message"].GetStringValue())
	}
	return nil
}

func debtRecordFields(rec dispatch.DebtRecord) map[string]any {
	return map[string]any{
		"contractId":      rec.ContractID,
		"staffAccount":    rec.StaffAccount,
		"reasonLevel1":    rec.ReasonLevel1,
		"reasonLevel2":    rec.ReasonLevel2,
		"reasonLevel3":    rec.ReasonLevel3,
		"note":            rec.Note,
		"appointmentDate": formatDate(rec.AppointmentDate),
		"appointmentTime": rec.AppointmentTime,
		"lockDate":        formatDate(rec.LockDate),
		"lockStatus":      rec.LockStatus,
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(domain.DateLayout)
}
