package service

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-ar-nonpayment/internal/client"
	"github.com/pesio-ai/be-ar-nonpayment/internal/dispatch"
	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/errors"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/logger"
	"github.com/pesio-ai/be-ar-nonpayment/internal/repository"
	"github.com/pesio-ai/be-ar-nonpayment/internal/taxonomy"
	"github.com/pesio-ai/be-ar-nonpayment/internal/validation"
)

var ict = time.FixedZone("ICT", 7*60*60)

func fixedNow() time.Time { return time.Date(2024, time.January, 20, 10, 30, 0, 0, ict) }

func day(d int) *time.Time {
	t := time.Date(2024, time.January, d, 0, 0, 0, 0, ict)
	return &t
}

type sinks struct {
	calls []string
	fail  map[string]error

	debt dispatch.DebtRecord
	care domain.CareSystemMapping
}

func (s *sinks) RecordNonPaymentReason(_ context.Context, rec dispatch.DebtRecord) error {
	s.calls = append(s.calls, dispatch.SinkDebt)
	s.debt = rec
	return s.fail[dispatch.SinkDebt]
}

func (s *sinks) LogInteraction(context.Context, dispatch.InteractionEntry) error {
	s.calls = append(s.calls, dispatch.SinkInteraction)
	return s.fail[dispatch.SinkInteraction]
}

func (s *sinks) UpsertCareRecord(_ context.Context, _ string, rec domain.CareSystemMapping) error {
	s.calls = append(s.calls, dispatch.SinkCare)
	s.care = rec
	return s.fail[dispatch.SinkCare]
}

// trackingStore remembers the ids of created records.
type trackingStore struct {
	*repository.MemorySubmissionRepository
	ids []string
}

func (s *trackingStore) Create(ctx context.Context, rec *domain.SubmissionRecord) error {
	if err := s.MemorySubmissionRepository.Create(ctx, rec); err != nil {
		return err
	}
	s.ids = append(s.ids, rec.ID)
	return nil
}

type events struct{ published []*domain.SubmissionRecord }

func (e *events) PublishAccepted(_ context.Context, rec *domain.SubmissionRecord) {
	e.published = append(e.published, rec)
}

type failingReasons struct{ taxonomy.Provider }

func (failingReasons) ListLevel1(context.Context) ([]domain.ReasonNode, error) {
	return nil, stderrors.New("connection refused")
}

type fixture struct {
	svc    *SubmissionService
	store  *trackingStore
	sinks  *sinks
	events *events
}

func newFixture(t *testing.T) *fixture {
	reasons, err := taxonomy.LoadStatic("")
	require.NoError(t, err)
	identity, err := client.LoadStaticIdentity("")
	require.NoError(t, err)

	f := &fixture{
		store:  &trackingStore{MemorySubmissionRepository: repository.NewMemorySubmissionRepository()},
		sinks:  &sinks{fail: map[string]error{}},
		events: &events{},
	}
	v := validation.New(fixedNow)
	d := dispatch.New(f.sinks, f.sinks, f.sinks, v, time.Second, logger.Nop())
	f.svc = NewSubmissionService(identity, reasons, f.store, d, v, f.events, logger.Nop())
	return f
}

func validRequest() *SubmitRequest {
	return &SubmitRequest{
		ContractID:   "HD001",
		StaffAccount: "staff001",
		Draft: domain.SubmissionDraft{
			ReasonLevel1:    "customer-refuses",
			ReasonLevel2:    "financial-difficulty",
			ReasonLevel3:    "salary-delay",
			Note:            "Khách hẹn khi có lương",
			AppointmentDate: day(25),
			AppointmentTime: "10:00",
			LockOption:      domain.LockSchedule,
			LockDate:        day(27),
			LockStatus:      domain.LockMaintain,
		},
	}
}

func TestSubmit_Accepted(t *testing.T) {
	f := newFixture(t)

	ack, err := f.svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, MsgSubmitSuccess, ack.Message)

	rec, err := f.store.Get(context.Background(), ack.RecordID)
	require.NoError(t, err)
	assert.Equal(t, domain.DispatchDispatched, rec.Status)
	assert.Equal(t, "Nguyễn Văn A", rec.StaffName)
	assert.True(t, rec.SyncedDebt && rec.SyncedInteraction && rec.SyncedCare)
	assert.Equal(t, fixedNow(), rec.CreatedAt)

	require.Len(t, f.events.published, 1)
	assert.Equal(t, ack.RecordID, f.events.published[0].ID)
	assert.Equal(t, domain.DispatchDispatched, f.events.published[0].Status)

	latest, err := f.svc.Latest(context.Background(), "HD001")
	require.NoError(t, err)
	assert.Equal(t, ack.RecordID, latest.ID)
}

func TestSubmit_UnknownAccount(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.StaffAccount = "ghost"

	_, err := f.svc.Submit(context.Background(), req)
	assert.Equal(t, errors.ErrCodeUnauthorized, errors.CodeOf(err))
	assert.Empty(t, f.sinks.calls)
}

func TestSubmit_Level3RequiredOnlyWhenBranchHasChildren(t *testing.T) {
	f := newFixture(t)

	req := validRequest()
	req.Draft.ReasonLevel3 = ""
	_, err := f.svc.Submit(context.Background(), req)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, []string{validation.FieldReasonLevel3}, appErr.Details.(domain.ValidationErrors).Fields())

	req = validRequest()
	req.Draft.ReasonLevel1 = "customer-not-present"
	req.Draft.ReasonLevel2 = "business-trip"
	req.Draft.ReasonLevel3 = ""
	_, err = f.svc.Submit(context.Background(), req)
	require.NoError(t, err)
}

func TestSubmit_RejectsReasonOutsideParent(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.Draft.ReasonLevel2 = "business-trip"
	req.Draft.ReasonLevel3 = ""

	_, err := f.svc.Submit(context.Background(), req)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	details := appErr.Details.(domain.ValidationErrors)
	assert.Equal(t, []string{validation.InvalidReasonMessage(validation.FieldReasonLevel2)}, details.For(validation.FieldReasonLevel2))
	assert.Empty(t, f.sinks.calls)
}

func TestSubmit_OtherRoleNeverTouchesLockSchedule(t *testing.T) {
	tests := []struct {
		name   string
		option domain.LockOption
		date   *time.Time
		status domain.LockStatus
	}{
		{"schedule outside the window", domain.LockSchedule, day(2), domain.LockTemporary},
		{"schedule without status", domain.LockSchedule, day(5), ""},
		{"cancel", domain.LockCancel, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := validRequest()
			req.StaffAccount = "staff002"
			req.Draft.LockOption = tt.option
			req.Draft.LockDate = tt.date
			req.Draft.LockStatus = tt.status

			ack, err := f.svc.Submit(context.Background(), req)
			require.NoError(t, err)

			assert.Nil(t, f.sinks.debt.LockDate)
			assert.Empty(t, f.sinks.debt.LockStatus)
			assert.Empty(t, f.sinks.care.LockDate)
			assert.Empty(t, f.sinks.care.LockStatus)

			rec, err := f.store.Get(context.Background(), ack.RecordID)
			require.NoError(t, err)
			assert.Equal(t, domain.LockNone, rec.Draft.LockOption)
			assert.Nil(t, rec.Draft.LockDate)
			assert.Empty(t, rec.Draft.LockStatus)
		})
	}
}

func TestSubmit_DispatchFailureKeepsPartialSync(t *testing.T) {
	f := newFixture(t)
	f.sinks.fail[dispatch.SinkInteraction] = stderrors.New("503")

	_, err := f.svc.Submit(context.Background(), validRequest())
	assert.Equal(t, errors.ErrCodeDispatchFailed, errors.CodeOf(err))
	assert.Equal(t, []string{dispatch.SinkDebt, dispatch.SinkInteraction}, f.sinks.calls)
	assert.Empty(t, f.events.published)

	require.Len(t, f.store.ids, 1)
	rec, err := f.store.Get(context.Background(), f.store.ids[0])
	require.NoError(t, err)
	assert.Equal(t, domain.DispatchFailed, rec.Status)
	assert.True(t, rec.SyncedDebt)
	assert.False(t, rec.SyncedInteraction)
	assert.False(t, rec.SyncedCare)

	status, err := f.svc.SyncStatus(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DispatchFailed, status.Status)
	assert.True(t, status.DebtManagement)
	assert.False(t, status.CustomerCare)
}

func TestSubmit_FailedDispatchesStayOutOfHistory(t *testing.T) {
	f := newFixture(t)
	f.sinks.fail[dispatch.SinkDebt] = stderrors.New("connection refused")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.svc.Submit(ctx, validRequest())
		assert.Equal(t, errors.ErrCodeDispatchFailed, errors.CodeOf(err))
	}
	assert.Len(t, f.store.ids, 2)

	history, err := NewHistoryService(f.store, nil, fixedNow, logger.Nop()).List(ctx, "HD001", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = f.svc.Latest(ctx, "HD001")
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))

	delete(f.sinks.fail, dispatch.SinkDebt)
	ack, err := f.svc.Submit(ctx, validRequest())
	require.NoError(t, err)

	history, err = NewHistoryService(f.store, nil, fixedNow, logger.Nop()).List(ctx, "HD001", 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ack.RecordID, history[0].ID)
}

func TestSubmit_TaxonomyUnavailable(t *testing.T) {
	f := newFixture(t)
	f.svc.reasons = failingReasons{}

	_, err := f.svc.Submit(context.Background(), validRequest())
	assert.Equal(t, errors.ErrCodeUnavailable, errors.CodeOf(err))
	assert.Empty(t, f.sinks.calls)
}

func TestUpdateLockSchedule(t *testing.T) {
	f := newFixture(t)
	ack, err := f.svc.Submit(context.Background(), validRequest())
	require.NoError(t, err)

	_, err = f.svc.UpdateLockSchedule(context.Background(), &LockScheduleRequest{
		RecordID: ack.RecordID, StaffAccount: "staff002", LockOption: domain.LockCancel,
	})
	assert.Equal(t, errors.ErrCodeForbidden, errors.CodeOf(err))

	_, err = f.svc.UpdateLockSchedule(context.Background(), &LockScheduleRequest{
		RecordID: ack.RecordID, StaffAccount: "staff001", LockOption: domain.LockSchedule,
		LockDate: day(20), LockStatus: domain.LockMaintain,
	})
	assert.Equal(t, errors.ErrCodeValidationFailed, errors.CodeOf(err))

	_, err = f.svc.UpdateLockSchedule(context.Background(), &LockScheduleRequest{
		RecordID: ack.RecordID, StaffAccount: "staff001", LockOption: domain.LockSchedule,
		LockStatus: domain.LockTemporary,
	})
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, []string{validation.FieldLockDate}, appErr.Details.(domain.ValidationErrors).Fields())

	kept, err := f.store.Get(context.Background(), ack.RecordID)
	require.NoError(t, err)
	assert.Equal(t, day(27), kept.Draft.LockDate)

	rec, err := f.svc.UpdateLockSchedule(context.Background(), &LockScheduleRequest{
		RecordID: ack.RecordID, StaffAccount: "staff001", LockOption: domain.LockCancel, LockDate: day(28),
	})
	require.NoError(t, err)
	assert.Nil(t, rec.Draft.LockDate)
	assert.Equal(t, domain.LockCancelled, rec.Draft.LockStatus)

	_, err = f.svc.UpdateLockSchedule(context.Background(), &LockScheduleRequest{
		RecordID: "missing", StaffAccount: "staff001", LockOption: domain.LockNone,
	})
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
}

func TestHistoryService_List(t *testing.T) {
	store := repository.NewMemorySubmissionRepository()
	identity, err := client.LoadStaticIdentity("")
	require.NoError(t, err)
	ctx := context.Background()

	add := func(created time.Time, account, name string) string {
		rec := &domain.SubmissionRecord{
			ContractID:   "HD001",
			StaffAccount: account,
			StaffName:    name,
			Status:       domain.DispatchDispatched,
			CreatedAt:    created,
		}
		require.NoError(t, store.Create(ctx, rec))
		return rec.ID
	}
	add(time.Date(2023, time.December, 31, 23, 0, 0, 0, ict), "staff001", "Nguyễn Văn A")
	early := add(time.Date(2024, time.January, 2, 8, 0, 0, 0, ict), "staff002", "")
	late := add(time.Date(2024, time.January, 19, 8, 0, 0, 0, ict), "staff001", "Nguyễn Văn A")
	add(time.Date(2024, time.February, 1, 0, 0, 0, 0, ict), "staff001", "Nguyễn Văn A")

	svc := NewHistoryService(store, identity, fixedNow, logger.Nop())

	history, err := svc.List(ctx, "HD001", 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, late, history[0].ID)
	assert.Equal(t, early, history[1].ID)
	assert.Equal(t, "Trần Thị B", history[1].StaffName)

	history, err = svc.List(ctx, "HD001", time.December, 2023)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = svc.List(ctx, "HD001", 13, 2024)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}

func TestReasonService_FailureIsUnavailable(t *testing.T) {
	svc := NewReasonService(failingReasons{}, logger.Nop())
	_, err := svc.ListLevel1(context.Background())
	assert.Equal(t, errors.ErrCodeUnavailable, errors.CodeOf(err))
}

func TestReasonService_EmptyIsNotNil(t *testing.T) {
	p, err := taxonomy.LoadStatic("")
	require.NoError(t, err)
	nodes, err := NewReasonService(p, logger.Nop()).ListLevel3(context.Background(), "other", "other-reason")
	require.NoError(t, err)
	assert.NotNil(t, nodes)
	assert.Empty(t, nodes)
}
