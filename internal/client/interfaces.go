package client

import "github.com/pesio-ai/be-ar-nonpayment/internal/dispatch"

var (
	_ dispatch.DebtSink        = (*DebtManagementGRPCClient)(nil)
	_ dispatch.InteractionSink = (*InteractionLogClient)(nil)
	_ dispatch.CareSink        = (*CareSystemClient)(nil)
)
