package client

import "github.com/pesio-ai/be-ar-nonpayment/internal/domain"

// apiResponse is the envelope the MobiX REST services reply with. Success
// is optional; an absent flag on a 2xx reply counts as accepted.
type apiResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// careRecordRequest flattens the care mapping next to the contract id.
type careRecordRequest struct {
	ContractID string `json:"contractId"`
	domain.CareSystemMapping
}
