// Package domain holds the non-payment reason data model shared by the
// validation engine, form state, dispatcher and transports.
package domain

import (
	"strings"
	"time"
)

// ReasonNode is one node of the three-level non-payment reason taxonomy.
// ParentID is empty at level 1.
type ReasonNode struct {
	ID       string `json:"id" toml:"id"`
	Name     string `json:"name" toml:"name"`
	Level    int    `json:"level" toml:"level"`
	ParentID string `json:"parentId,omitempty" toml:"parent_id"`
	Active   bool   `json:"isActive" toml:"active"`
}

// LockOption selects what the submission does to the service-lock schedule.
type LockOption string

const (
	LockNone     LockOption = "none"
	LockSchedule LockOption = "schedule"
	LockCancel   LockOption = "cancel"
)

// Valid reports whether o is a known lock option.
func (o LockOption) Valid() bool {
	switch o {
	case LockNone, LockSchedule, LockCancel:
		return true
	}
	return false
}

// LockStatus is the state the contract is put in when the lock fires.
// LockCancelled is a marker set by the cancel option, not a schedulable status.
type LockStatus string

const (
	LockMaintain  LockStatus = "maintain"
	LockTemporary LockStatus = "temporary"
	LockCancelled LockStatus = "cancelled"
)

// Schedulable reports whether s may accompany a scheduled lock date.
func (s LockStatus) Schedulable() bool {
	return s == LockMaintain || s == LockTemporary
}

// DefaultAppointmentTime is used when no appointment time was picked.
const DefaultAppointmentTime = "09:00"

// SubmissionDraft is the in-progress non-payment reason entry.
type SubmissionDraft struct {
	ReasonLevel1    string     `json:"reasonLevel1"`
	ReasonLevel2    string     `json:"reasonLevel2"`
	ReasonLevel3    string     `json:"reasonLevel3,omitempty"`
	Note            string     `json:"note"`
	AppointmentDate *time.Time `json:"appointmentDate,omitempty"`
	AppointmentTime string     `json:"appointmentTime"`
	LockOption      LockOption `json:"lockOption"`
	LockDate        *time.Time `json:"lockDate,omitempty"`
	LockStatus      LockStatus `json:"lockStatus,omitempty"`
}

// NewDraft returns the empty draft a freshly opened form starts from:
// appointment today at 09:00 and no lock change.
func NewDraft(now time.Time) SubmissionDraft {
	today := StartOfDay(now)
	return SubmissionDraft{
		AppointmentDate: &today,
		AppointmentTime: DefaultAppointmentTime,
		LockOption:      LockNone,
	}
}

// Normalized returns a copy with the lock-option invariants enforced:
// none clears date and status, cancel clears the date and marks the status
// cancelled. An empty option is treated as none.
func (d SubmissionDraft) Normalized() SubmissionDraft {
	out := d
	out.ReasonLevel1 = strings.TrimSpace(d.ReasonLevel1)
	out.ReasonLevel2 = strings.TrimSpace(d.ReasonLevel2)
	out.ReasonLevel3 = strings.TrimSpace(d.ReasonLevel3)
	if strings.TrimSpace(out.AppointmentTime) == "" {
		out.AppointmentTime = DefaultAppointmentTime
	}

	switch out.LockOption {
	case LockCancel:
		out.LockDate = nil
		out.LockStatus = LockCancelled
	case LockSchedule:
		if out.LockStatus == LockCancelled {
			out.LockStatus = ""
		}
	default:
		out.LockOption = LockNone
		out.LockDate = nil
		out.LockStatus = ""
	}
	return out
}

// NormalizedFor is Normalized with the lock section dropped for users who
// may not manage lock schedules.
func (d SubmissionDraft) NormalizedFor(u *ActiveUser) SubmissionDraft {
	if !u.IsDebtCollector() {
		d.LockOption = LockNone
	}
	return d.Normalized()
}

// Reasons returns the non-empty reason codes in level order.
func (d SubmissionDraft) Reasons() []string {
	reasons := make([]string, 0, 3)
	for _, r := range []string{d.ReasonLevel1, d.ReasonLevel2, d.ReasonLevel3} {
		if strings.TrimSpace(r) != "" {
			reasons = append(reasons, r)
		}
	}
	return reasons
}

// Role is the staff role relevant to this form.
type Role string

const (
	// RoleDebtCollector is the "Thu cước" role, the only one allowed to
	// schedule or cancel a service lock.
	RoleDebtCollector Role = "debt_collector"
	RoleOther         Role = "other"
)

// ActiveUser is the staff member submitting the form.
type ActiveUser struct {
	Account     string   `json:"account" toml:"account"`
	Name        string   `json:"name" toml:"name"`
	Role        Role     `json:"role" toml:"role"`
	Permissions []string `json:"permissions" toml:"permissions"`
}

// IsDebtCollector reports whether u may manage lock schedules.
func (u *ActiveUser) IsDebtCollector() bool {
	return u != nil && u.Role == RoleDebtCollector
}

// HistoryRecord is one prior submission shown in the monthly history.
type HistoryRecord struct {
	ID              string     `json:"id"`
	ContractID      string     `json:"contractId"`
	CreatedDate     time.Time  `json:"createdDate"`
	StaffAccount    string     `json:"staffAccount"`
	StaffName       string     `json:"staffName"`
	ReasonLevel1    string     `json:"reasonLevel1"`
	ReasonLevel2    string     `json:"reasonLevel2"`
	ReasonLevel3    string     `json:"reasonLevel3,omitempty"`
	Note            string     `json:"note"`
	AppointmentDate *time.Time `json:"appointmentDate,omitempty"`
	LockDate        *time.Time `json:"lockDate,omitempty"`
	LockStatus      string     `json:"lockStatus,omitempty"`
}

// DispatchStatus tracks a record through the downstream chain.
type DispatchStatus string

const (
	DispatchPending    DispatchStatus = "pending"
	DispatchDispatched DispatchStatus = "dispatched"
	DispatchFailed     DispatchStatus = "failed"
)

// SubmissionRecord is an accepted submission as persisted by this service,
// with the per-sink sync flags. Only dispatched records appear in history.
type SubmissionRecord struct {
	ID                string          `json:"id"`
	ContractID        string          `json:"contractId"`
	StaffAccount      string          `json:"staffAccount"`
	StaffName         string          `json:"staffName"`
	Draft             SubmissionDraft `json:"draft"`
	Status            DispatchStatus  `json:"status"`
	SyncedDebt        bool            `json:"syncedDebt"`
	SyncedInteraction bool            `json:"syncedInteraction"`
	SyncedCare        bool            `json:"syncedCare"`
	LastSyncAt        *time.Time      `json:"lastSyncAt,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// History returns the history view of r.
func (r SubmissionRecord) History() HistoryRecord {
	return HistoryRecord{
		ID:              r.ID,
		ContractID:      r.ContractID,
		CreatedDate:     r.CreatedAt,
		StaffAccount:    r.StaffAccount,
		StaffName:       r.StaffName,
		ReasonLevel1:    r.Draft.ReasonLevel1,
		ReasonLevel2:    r.Draft.ReasonLevel2,
		ReasonLevel3:    r.Draft.ReasonLevel3,
		Note:            r.Draft.Note,
		AppointmentDate: r.Draft.AppointmentDate,
		LockDate:        r.Draft.LockDate,
		LockStatus:      string(r.Draft.LockStatus),
	}
}

// SyncStatus reports which sinks accepted r.
func (r SubmissionRecord) SyncStatus() SyncStatus {
	return SyncStatus{
		RecordID:       r.ID,
		Status:         r.Status,
		DebtManagement: r.SyncedDebt,
		InteractionLog: r.SyncedInteraction,
		CustomerCare:   r.SyncedCare,
		LastSyncAt:     r.LastSyncAt,
	}
}

// SyncStatus summarises which sinks accepted a record.
type SyncStatus struct {
	RecordID       string         `json:"recordId"`
	Status         DispatchStatus `json:"status"`
	DebtManagement bool           `json:"debtManagementSync"`
	InteractionLog bool           `json:"interactionLogSync"`
	CustomerCare   bool           `json:"customerCareSync"`
	LastSyncAt     *time.Time     `json:"lastSyncAt,omitempty"`
}

// CareSystemMapping is the record shape the care system accepts. Field names
// and formats are a compatibility contract.
type CareSystemMapping struct {
	PersonContact       string `json:"personContact"`
	PaymentCapability   string `json:"paymentCapability"`
	Task                string `json:"task"`
	ContactChannel      string `json:"contactChannel"`
	AppointmentSchedule string `json:"appointmentSchedule"`
	LockDate            string `json:"lockDate"`
	LockStatus          string `json:"lockStatus"`
	CareNote            string `json:"careNote"`
}

// SubmitAck acknowledges a submission accepted by every sink.
type SubmitAck struct {
	RecordID string `json:"recordId"`
	Message  string `json:"message"`
}
