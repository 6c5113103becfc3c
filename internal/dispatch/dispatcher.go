// Package dispatch forwards an accepted non-payment reason to the debt
// management, interaction log and customer care systems.
//
// Sinks are called one after another. The first failure stops the chain;
// sinks that already accepted the record are not compensated.
package dispatch

import (
	"context"
	"time"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/metrics"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/errors"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/logger"
	"github.com/pesio-ai/be-ar-nonpayment/internal/validation"
)

// Sink names, used in logs, metrics and DispatchFailed details.
const (
	SinkDebt        = "debt_management"
	SinkInteraction = "interaction_log"
	SinkCare        = "customer_care"
)

// InteractionType tags interaction log entries written by this service.
const InteractionType = "non_payment_reason_update"

// CareContactChannel is the fixed channel reported to the care system.
const CareContactChannel = "MobiX"

// DebtRecord is what the debt management system receives.
type DebtRecord struct {
	ContractID      string
	StaffAccount    string
	ReasonLevel1    string
	ReasonLevel2    string
	ReasonLevel3    string
	Note            string
	AppointmentDate *time.Time
	AppointmentTime string
	LockDate        *time.Time
	LockStatus      string
}

// InteractionEntry is what the interaction log receives.
type InteractionEntry struct {
	ContractID      string     `json:"contractId"`
	StaffAccount    string     `json:"staffAccount"`
	Type            string     `json:"interactionType"`
	Timestamp       time.Time  `json:"timestamp"`
	Reasons         []string   `json:"reasons"`
	Note            string     `json:"note"`
	NextAppointment *time.Time `json:"nextAppointmentDate,omitempty"`
}

// DebtSink records the reason with debt management.
type DebtSink interface {
	RecordNonPaymentReason(ctx context.Context, rec DebtRecord) error
}

// InteractionSink appends an entry to the customer interaction log.
type InteractionSink interface {
	LogInteraction(ctx context.Context, entry InteractionEntry) error
}

// CareSink writes the remapped record to the care system.
type CareSink interface {
	UpsertCareRecord(ctx context.Context, contractID string, rec domain.CareSystemMapping) error
}

// Request is one submission to dispatch.
type Request struct {
	ContractID      string
	Draft           domain.SubmissionDraft
	User            *domain.ActiveUser
	Level3Available bool
}

// Dispatcher validates and forwards submissions.
type Dispatcher struct {
	debt        DebtSink
	interaction InteractionSink
	care        CareSink
	validator   *validation.Validator
	timeout     time.Duration
	log         *logger.Logger
}

// New creates a Dispatcher. timeout bounds each sink call; zero means no
// bound beyond ctx.
func New(debt DebtSink, interaction InteractionSink, care CareSink, validator *validation.Validator, timeout time.Duration, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		debt:        debt,
		interaction: interaction,
		care:        care,
		validator:   validator,
		timeout:     timeout,
		log:         log.Component("dispatcher"),
	}
}

// Submit re-validates req and forwards it to every sink in order. onSynced,
// when non-nil, is called after each sink accepts the record. The lock
// section is only forwarded for debt collectors.
//
// A non-empty validation result fails with VALIDATION_FAILED carrying the
// domain.ValidationErrors; a sink failure fails with DISPATCH_FAILED naming
// the sink, and no later sink is called.
func (d *Dispatcher) Submit(ctx context.Context, req Request, onSynced func(sink string)) error {
	if req.User == nil {
		return errors.Unauthorized("no active user")
	}
	draft := req.Draft.NormalizedFor(req.User)
	if errs := d.validator.Validate(draft, req.User, req.Level3Available); len(errs) > 0 {
		return errors.Validation(errs)
	}

	now := d.validator.Now()
	steps := []struct {
		sink string
		call func(context.Context) error
	}{
		{SinkDebt, func(ctx context.Context) error {
			return d.debt.RecordNonPaymentReason(ctx, BuildDebtRecord(req.ContractID, req.User.Account, draft))
		}},
		{SinkInteraction, func(ctx context.Context) error {
			return d.interaction.LogInteraction(ctx, BuildInteractionEntry(req.ContractID, req.User.Account, draft, now))
		}},
		{SinkCare, func(ctx context.Context) error {
			return d.care.UpsertCareRecord(ctx, req.ContractID, MapCareRecord(draft, now.Location()))
		}},
	}

	for _, step := range steps {
		if err := d.call(ctx, step.sink, step.call); err != nil {
			d.log.Error().Err(err).
				Str("sink", step.sink).
				Str("contract_id", req.ContractID).
				Msg("Dispatch aborted")
			return errors.DispatchFailed(step.sink, err)
		}
		if onSynced != nil {
			onSynced(step.sink)
		}
	}
	return nil
}

func (d *Dispatcher) call(ctx context.Context, sink string, fn func(context.Context) error) error {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(ctx)
	metrics.SinkCall(sink, time.Since(start), err)
	return err
}

// BuildDebtRecord copies every draft field the debt system stores.
func BuildDebtRecord(contractID, staffAccount string, draft domain.SubmissionDraft) DebtRecord {
	return DebtRecord{
		ContractID:      contractID,
		StaffAccount:    staffAccount,
		ReasonLevel1:    draft.ReasonLevel1,
		ReasonLevel2:    draft.ReasonLevel2,
		ReasonLevel3:    draft.ReasonLevel3,
		Note:            draft.Note,
		AppointmentDate: draft.AppointmentDate,
		AppointmentTime: draft.AppointmentTime,
		LockDate:        draft.LockDate,
		LockStatus:      string(draft.LockStatus),
	}
}

// BuildInteractionEntry builds the interaction log entry. Only the reason
// levels that were filled in are listed.
func BuildInteractionEntry(contractID, staffAccount string, draft domain.SubmissionDraft, at time.Time) InteractionEntry {
	return InteractionEntry{
		ContractID:      contractID,
		StaffAccount:    staffAccount,
		Type:            InteractionType,
		Timestamp:       at,
		Reasons:         draft.Reasons(),
		Note:            draft.Note,
		NextAppointment: draft.AppointmentDate,
	}
}

// MapCareRecord remaps a draft to the care system's record shape, with
// dates rendered on their calendar day in loc. The care system has no
// equivalent for contact person, payment capability or task, so those are
// sent empty.
func MapCareRecord(draft domain.SubmissionDraft, loc *time.Location) domain.CareSystemMapping {
	m := domain.CareSystemMapping{
		ContactChannel: CareContactChannel,
		LockStatus:     string(draft.LockStatus),
		CareNote:       draft.Note,
	}
	if draft.AppointmentDate != nil {
		clock := draft.AppointmentTime
		if clock == "" {
			clock = domain.DefaultAppointmentTime
		}
		m.AppointmentSchedule = draft.AppointmentDate.In(loc).Format(domain.CareDateLayout) + " " + clock
	}
	if draft.LockDate != nil {
		m.LockDate = draft.LockDate.In(loc).Format(domain.CareDateLayout)
	}
	return m
}
