package service

import (
	"context"
	"time"

	"github.com/pesio-ai/be-ar-nonpayment/internal/dispatch"
	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/metrics"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/errors"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/logger"
	"github.com/pesio-ai/be-ar-nonpayment/internal/taxonomy"
	"github.com/pesio-ai/be-ar-nonpayment/internal/validation"
)

// MsgSubmitSuccess is returned to the caller on an accepted submission.
const MsgSubmitSuccess = "Cập nhật thành công"

// SubmissionService handles non-payment reason submissions
type SubmissionService struct {
	identity   IdentityClientInterface
	reasons    taxonomy.Provider
	store      SubmissionStore
	dispatcher *dispatch.Dispatcher
	validator  *validation.Validator
	events     EventPublisherInterface
	log        *logger.Logger
}

// NewSubmissionService creates a new submission service. events may be nil.
func NewSubmissionService(
	identity IdentityClientInterface,
	reasons taxonomy.Provider,
	store SubmissionStore,
	dispatcher *dispatch.Dispatcher,
	validator *validation.Validator,
	events EventPublisherInterface,
	log *logger.Logger,
) *SubmissionService {
	return &SubmissionService{
		identity:   identity,
		reasons:    reasons,
		store:      store,
		dispatcher: dispatcher,
		validator:  validator,
		events:     events,
		log:        log,
	}
}

// SubmitRequest represents a submit request
type SubmitRequest struct {
	ContractID   string
	StaffAccount string
	Draft        domain.SubmissionDraft
}

// Submit validates the draft for the staff account, records it and
// forwards it to every downstream system in order. Users other than debt
// collectors never change the lock schedule; their lock section is dropped.
//
// The record is written as pending before dispatch; each sink that accepts
// it sets its sync flag, so a partial dispatch stays visible through the
// sync status. Only a fully dispatched record shows up in history.
func (s *SubmissionService) Submit(ctx context.Context, req *SubmitRequest) (*domain.SubmitAck, error) {
	user, err := s.identity.LookupUser(ctx, req.StaffAccount)
	if err != nil {
		metrics.Submission(outcome(err))
		return nil, err
	}

	draft := req.Draft.NormalizedFor(user)
	sel, err := taxonomy.Inspect(ctx, s.reasons, draft.ReasonLevel1, draft.ReasonLevel2, draft.ReasonLevel3)
	if err != nil {
		metrics.TaxonomyFetchFailure("submit")
		metrics.Submission("error")
		s.log.Warn().Err(err).Str("contract_id", req.ContractID).Msg("Reason taxonomy unavailable at submit")
		return nil, errors.Unavailable("reason taxonomy unavailable", err)
	}

	errs := s.validator.Validate(draft, user, sel.Level3Available)
	errs = append(errs, sel.Errors...)
	if len(errs) > 0 {
		metrics.Submission("validation_failed")
		s.log.Debug().
			Str("contract_id", req.ContractID).
			Strs("fields", errs.Fields()).
			Msg("Submission rejected by validation")
		return nil, errors.Validation(errs)
	}

	rec := &domain.SubmissionRecord{
		ContractID:   req.ContractID,
		StaffAccount: user.Account,
		StaffName:    user.Name,
		Draft:        draft,
		CreatedAt:    s.validator.Now(),
	}
	if err := s.store.Create(ctx, rec); err != nil {
		metrics.Submission("error")
		return nil, err
	}

	err = s.dispatcher.Submit(ctx, dispatch.Request{
		ContractID:      req.ContractID,
		Draft:           draft,
		User:            user,
		Level3Available: sel.Level3Available,
	}, func(sink string) {
		if err := s.store.MarkSynced(ctx, rec.ID, sink, s.validator.Now()); err != nil {
			s.log.Warn().Err(err).Str("record_id", rec.ID).Str("sink", sink).Msg("Failed to record sink sync")
		}
	})
	if err != nil {
		s.setStatus(ctx, rec, domain.DispatchFailed)
		metrics.Submission(outcome(err))
		return nil, err
	}
	s.setStatus(ctx, rec, domain.DispatchDispatched)

	if s.events != nil {
		s.events.PublishAccepted(ctx, rec)
	}
	metrics.Submission("accepted")

	s.log.Info().
		Str("record_id", rec.ID).
		Str("contract_id", rec.ContractID).
		Str("staff_account", rec.StaffAccount).
		Str("lock_option", string(draft.LockOption)).
		Msg("Non-payment reason submitted")

	return &domain.SubmitAck{RecordID: rec.ID, Message: MsgSubmitSuccess}, nil
}

// setStatus stores the dispatch outcome. A store failure is logged only;
// the sinks have already seen the record either way.
func (s *SubmissionService) setStatus(ctx context.Context, rec *domain.SubmissionRecord, status domain.DispatchStatus) {
	rec.Status = status
	if err := s.store.SetStatus(ctx, rec.ID, status, s.validator.Now()); err != nil {
		s.log.Error().Err(err).
			Str("record_id", rec.ID).
			Str("status", string(status)).
			Msg("Failed to record dispatch status")
	}
}

// Latest returns the newest dispatched record of a contract.
func (s *SubmissionService) Latest(ctx context.Context, contractID string) (*domain.SubmissionRecord, error) {
	return s.store.Latest(ctx, contractID)
}

// SyncStatus reports which sinks accepted record id.
func (s *SubmissionService) SyncStatus(ctx context.Context, id string) (*domain.SyncStatus, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	status := rec.SyncStatus()
	return &status, nil
}

// LockScheduleRequest represents a lock schedule update on an existing record
type LockScheduleRequest struct {
	RecordID     string
	StaffAccount string
	LockOption   domain.LockOption
	LockDate     *time.Time
	LockStatus   domain.LockStatus
}

// UpdateLockSchedule changes or cancels the lock schedule of a record.
// Only debt collectors may do this; the lock-schedule policy applies as on
// submission, and a schedule must name its date.
func (s *SubmissionService) UpdateLockSchedule(ctx context.Context, req *LockScheduleRequest) (*domain.SubmissionRecord, error) {
	user, err := s.identity.LookupUser(ctx, req.StaffAccount)
	if err != nil {
		return nil, err
	}
	if !user.IsDebtCollector() {
		return nil, errors.Forbidden("only debt collectors may change a lock schedule")
	}

	rec, err := s.store.Get(ctx, req.RecordID)
	if err != nil {
		return nil, err
	}

	draft := rec.Draft
	draft.LockOption = req.LockOption
	draft.LockDate = req.LockDate
	draft.LockStatus = req.LockStatus
	draft = draft.Normalized()

	errs := validation.CheckLockSchedule(s.validator.Now(), draft)
	if draft.LockOption == domain.LockSchedule && draft.LockDate == nil {
		errs.Add(validation.FieldLockDate, validation.RequiredMessage(validation.FieldLockDate))
	}
	if len(errs) > 0 {
		return nil, errors.Validation(errs)
	}

	updated, err := s.store.UpdateLockSchedule(ctx, rec.ID, draft, s.validator.Now())
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("record_id", rec.ID).
		Str("staff_account", user.Account).
		Str("lock_option", string(draft.LockOption)).
		Msg("Lock schedule updated")

	return updated, nil
}

func outcome(err error) string {
	switch errors.CodeOf(err) {
	case errors.ErrCodeUnauthorized:
		return "unauthorized"
	case errors.ErrCodeValidationFailed:
		return "validation_failed"
	case errors.ErrCodeDispatchFailed:
		return "dispatch_failed"
	default:
		return "error"
	}
}
