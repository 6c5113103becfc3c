// Package form holds the in-progress non-payment reason entry: the draft,
// the taxonomy slices in scope, pending field errors and the active user.
//
// Selecting a parent reason resets its descendants synchronously and fetches
// the child options in the background. Fetch results are applied only while
// the selection that started them is still current.
package form

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/errors"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/logger"
	"github.com/pesio-ai/be-ar-nonpayment/internal/taxonomy"
	"github.com/pesio-ai/be-ar-nonpayment/internal/validation"
)

// ErrStaleSelection is delivered by a fetch whose selection was superseded
// before it completed. Its result was discarded.
var ErrStaleSelection = stderrors.New("selection superseded")

// Notice texts shown for transient failures.
const (
	NoticeTaxonomyUnavailable = "Không tải được danh sách nguyên nhân"
	NoticeSubmitFailed        = "Cập nhật thất bại, vui lòng thử lại"
)

// Submitter forwards a draft for a contract.
type Submitter interface {
	Submit(ctx context.Context, contractID string, draft domain.SubmissionDraft) (*domain.SubmitAck, error)
}

// State is the form for one contract. It is safe for concurrent use.
type State struct {
	mu sync.Mutex

	provider   taxonomy.Provider
	now        func() time.Time
	log        *logger.Logger
	contractID string
	user       *domain.ActiveUser

	draft           domain.SubmissionDraft
	level1          []domain.ReasonNode
	level2          []domain.ReasonNode
	level3          []domain.ReasonNode
	level3Available bool
	errs            domain.ValidationErrors
	notices         []string

	// Bumped on every selection that invalidates in-flight fetches.
	level2Gen uint64
	level3Gen uint64
}

// New opens a form for contractID with a default draft.
func New(provider taxonomy.Provider, contractID string, user *domain.ActiveUser, now func() time.Time, log *logger.Logger) *State {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &State{
		provider:   provider,
		now:        now,
		log:        log.Component("form"),
		contractID: contractID,
		user:       user,
		draft:      domain.NewDraft(now()),
		errs:       domain.ValidationErrors{},
	}
}

// LoadLevel1 fetches the level-1 options. On failure the list is left empty
// and a notice is recorded; the form stays usable.
func (s *State) LoadLevel1(ctx context.Context) error {
	nodes, err := s.provider.ListLevel1(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.fetchFailed("1", err)
		s.level1 = nil
		return err
	}
	s.level1 = nodes
	return nil
}

// SelectLevel1 sets the level-1 reason, clears levels 2 and 3 and every
// error, then fetches the level-2 options. The returned channel yields the
// fetch outcome once: nil, the fetch error, or ErrStaleSelection.
func (s *State) SelectLevel1(ctx context.Context, id string) <-chan error {
	s.mu.Lock()
	s.draft.ReasonLevel1 = id
	s.draft.ReasonLevel2 = ""
	s.draft.ReasonLevel3 = ""
	s.level2 = nil
	s.level3 = nil
	s.level3Available = false
	s.errs = domain.ValidationErrors{}
	s.level2Gen++
	s.level3Gen++
	gen := s.level2Gen
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		nodes, err := s.provider.ListLevel2(ctx, id)

		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case gen != s.level2Gen || s.draft.ReasonLevel1 != id:
			err = ErrStaleSelection
		case err != nil:
			s.fetchFailed("2", err)
		default:
			s.level2 = nodes
		}
		done <- err
	}()
	return done
}

// SelectLevel2 sets the level-2 reason, clears level 3 and every error, then
// fetches the level-3 options for the current level-1 choice. An empty
// result marks level 3 as not applicable.
func (s *State) SelectLevel2(ctx context.Context, id string) <-chan error {
	s.mu.Lock()
	level1 := s.draft.ReasonLevel1
	s.draft.ReasonLevel2 = id
	s.draft.ReasonLevel3 = ""
	s.level3 = nil
	s.level3Available = false
	s.errs = domain.ValidationErrors{}
	s.level3Gen++
	gen := s.level3Gen
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		nodes, err := s.provider.ListLevel3(ctx, level1, id)

		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case gen != s.level3Gen || s.draft.ReasonLevel1 != level1 || s.draft.ReasonLevel2 != id:
			err = ErrStaleSelection
		case err != nil:
			s.fetchFailed("3", err)
		default:
			s.level3 = nodes
			s.level3Available = len(nodes) > 0
		}
		done <- err
	}()
	return done
}

// caller holds mu
func (s *State) fetchFailed(level string, err error) {
	s.log.Warn().Err(err).Str("level", level).Msg("Reason fetch failed")
	s.notices = append(s.notices, NoticeTaxonomyUnavailable)
}

// SelectLevel3 sets the level-3 reason.
func (s *State) SelectLevel3(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.ReasonLevel3 = id
	s.clearField(validation.FieldReasonLevel3)
}

// SetNote sets the free-text note.
func (s *State) SetNote(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.Note = text
	s.clearField(validation.FieldNote)
}

// SetAppointment sets the payment appointment. An empty clock keeps the
// default time.
func (s *State) SetAppointment(date *time.Time, clock string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.AppointmentDate = date
	if clock == "" {
		clock = domain.DefaultAppointmentTime
	}
	s.draft.AppointmentTime = clock
	s.clearField(validation.FieldAppointmentDate)
	s.clearField(validation.FieldAppointmentTime)
}

// SetLockOption switches the lock-schedule mode. none clears the lock date
// and status; cancel clears the date and marks the status cancelled;
// schedule keeps whatever was picked.
func (s *State) SetLockOption(option domain.LockOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.LockOption = option
	s.draft = s.draft.Normalized()
	s.clearField(validation.FieldLockDate)
	s.clearField(validation.FieldLockStatus)
}

// SetLockDate sets the scheduled lock date.
func (s *State) SetLockDate(date *time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.LockDate = date
	s.clearField(validation.FieldLockDate)
}

// SetLockStatus sets the status applied when the lock fires.
func (s *State) SetLockStatus(status domain.LockStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft.LockStatus = status
	s.clearField(validation.FieldLockStatus)
}

func (s *State) clearField(field string) {
	s.errs = s.errs.Without(field)
}

// Reset restores the default draft and clears errors and notices. Loaded
// level-1 options are kept; in-flight child fetches are discarded.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func (s *State) reset() {
	s.draft = domain.NewDraft(s.now())
	s.level2 = nil
	s.level3 = nil
	s.level3Available = false
	s.errs = domain.ValidationErrors{}
	s.notices = nil
	s.level2Gen++
	s.level3Gen++
}

// Validate runs the form rules against the current draft, stores the result
// as the pending errors and returns it.
func (s *State) Validate() domain.ValidationErrors {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = validation.Validate(s.now(), s.draft.Normalized(), s.user, s.level3Available)
	return append(domain.ValidationErrors(nil), s.errs...)
}

// Submit validates the draft and hands it to sub. On success the form is
// reset. A validation failure, local or remote, becomes the pending error
// set. Any other failure keeps the draft so the user can retry.
func (s *State) Submit(ctx context.Context, sub Submitter) (*domain.SubmitAck, error) {
	if errs := s.Validate(); len(errs) > 0 {
		return nil, errors.Validation(errs)
	}

	s.mu.Lock()
	draft := s.draft.NormalizedFor(s.user)
	contractID := s.contractID
	s.mu.Unlock()

	ack, err := sub.Submit(ctx, contractID, draft)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		var appErr *errors.AppError
		if errors.As(err, &appErr) && appErr.Code == errors.ErrCodeValidationFailed {
			if details, ok := appErr.Details.(domain.ValidationErrors); ok {
				s.errs = details
			}
			return nil, err
		}
		s.log.Warn().Err(err).Str("contract_id", contractID).Msg("Submission failed")
		s.notices = append(s.notices, NoticeSubmitFailed)
		return nil, fmt.Errorf("submit: %w", err)
	}
	s.reset()
	return ack, nil
}

// Snapshot is a read-only copy of the form.
type Snapshot struct {
	ContractID      string
	Draft           domain.SubmissionDraft
	Level1          []domain.ReasonNode
	Level2          []domain.ReasonNode
	Level3          []domain.ReasonNode
	Level3Available bool
	Errors          domain.ValidationErrors
	Notices         []string
	ShowLockSection bool
}

// Snapshot returns a copy of the current form state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ContractID:      s.contractID,
		Draft:           s.draft,
		Level1:          append([]domain.ReasonNode(nil), s.level1...),
		Level2:          append([]domain.ReasonNode(nil), s.level2...),
		Level3:          append([]domain.ReasonNode(nil), s.level3...),
		Level3Available: s.level3Available,
		Errors:          append(domain.ValidationErrors(nil), s.errs...),
		Notices:         append([]string(nil), s.notices...),
		ShowLockSection: s.user.IsDebtCollector(),
	}
}

// TakeNotices returns and clears the pending notices.
func (s *State) TakeNotices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.notices
	s.notices = nil
	return n
}
