package dispatch

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/errors"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/logger"
	"github.com/pesio-ai/be-ar-nonpayment/internal/validation"
)

var ict = time.FixedZone("ICT", 7*60*60)

func now() time.Time { return time.Date(2024, time.January, 20, 10, 30, 0, 0, ict) }

func day(d int) *time.Time {
	t := time.Date(2024, time.January, d, 0, 0, 0, 0, ict)
	return &t
}

type recorder struct {
	calls []string
	fail  map[string]error

	debt        DebtRecord
	interaction InteractionEntry
	care        domain.CareSystemMapping
}

func (r *recorder) RecordNonPaymentReason(_ context.Context, rec DebtRecord) error {
	r.calls = append(r.calls, SinkDebt)
	r.debt = rec
	return r.fail[SinkDebt]
}

func (r *recorder) LogInteraction(_ context.Context, entry InteractionEntry) error {
	r.calls = append(r.calls, SinkInteraction)
	r.interaction = entry
	return r.fail[SinkInteraction]
}

func (r *recorder) UpsertCareRecord(_ context.Context, _ string, rec domain.CareSystemMapping) error {
	r.calls = append(r.calls, SinkCare)
	r.care = rec
	return r.fail[SinkCare]
}

func newDispatcher(r *recorder) *Dispatcher {
	return New(r, r, r, validation.New(now), time.Second, logger.Nop())
}

func validRequest() Request {
	return Request{
		ContractID: "HD001",
		User:       &domain.ActiveUser{Account: "staff001", Role: domain.RoleDebtCollector},
		Draft: domain.SubmissionDraft{
			ReasonLevel1:    "customer-refuses",
			ReasonLevel2:    "financial-difficulty",
			ReasonLevel3:    "job-loss",
			Note:            "Khách mất việc",
			AppointmentDate: day(25),
			AppointmentTime: "14:30",
			LockOption:      domain.LockSchedule,
			LockDate:        day(28),
			LockStatus:      domain.LockTemporary,
		},
		Level3Available: true,
	}
}

func TestSubmit_CallsSinksInOrder(t *testing.T) {
	r := &recorder{}
	var synced []string

	err := newDispatcher(r).Submit(context.Background(), validRequest(), func(sink string) {
		synced = append(synced, sink)
	})
	require.NoError(t, err)

	order := []string{SinkDebt, SinkInteraction, SinkCare}
	assert.Equal(t, order, r.calls)
	assert.Equal(t, order, synced)

	assert.Equal(t, "HD001", r.debt.ContractID)
	assert.Equal(t, "staff001", r.debt.StaffAccount)
	assert.Equal(t, "job-loss", r.debt.ReasonLevel3)
	assert.Equal(t, day(28), r.debt.LockDate)

	assert.Equal(t, InteractionType, r.interaction.Type)
	assert.Equal(t, now(), r.interaction.Timestamp)
	assert.Equal(t, []string{"customer-refuses", "financial-difficulty", "job-loss"}, r.interaction.Reasons)
	assert.Equal(t, day(25), r.interaction.NextAppointment)
}

func TestSubmit_SecondSinkFailureStopsChain(t *testing.T) {
	r := &recorder{fail: map[string]error{SinkInteraction: stderrors.New("503")}}
	req := validRequest()
	before := req.Draft

	err := newDispatcher(r).Submit(context.Background(), req, nil)
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, errors.ErrCodeDispatchFailed, appErr.Code)
	assert.Equal(t, SinkInteraction, appErr.Details)
	assert.Equal(t, []string{SinkDebt, SinkInteraction}, r.calls)
	assert.Equal(t, before, req.Draft)
}

func TestSubmit_ValidationFailureCallsNoSink(t *testing.T) {
	r := &recorder{}
	req := validRequest()
	req.Draft.Note = ""
	req.Draft.LockDate = day(12)

	err := newDispatcher(r).Submit(context.Background(), req, nil)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, errors.ErrCodeValidationFailed, appErr.Code)
	details, ok := appErr.Details.(domain.ValidationErrors)
	require.True(t, ok)
	assert.Equal(t, []string{validation.FieldNote, validation.FieldLockDate}, details.Fields())
	assert.Empty(t, r.calls)
}

func TestSubmit_NormalizesCancelBeforeForwarding(t *testing.T) {
	r := &recorder{}
	req := validRequest()
	req.Draft.LockOption = domain.LockCancel
	req.Draft.LockDate = day(5)

	require.NoError(t, newDispatcher(r).Submit(context.Background(), req, nil))
	assert.Nil(t, r.debt.LockDate)
	assert.Equal(t, string(domain.LockCancelled), r.debt.LockStatus)
	assert.Empty(t, r.care.LockDate)
}

func TestSubmit_DropsLockSectionForOtherRoles(t *testing.T) {
	tests := []struct {
		name   string
		option domain.LockOption
	}{
		{"schedule in the past", domain.LockSchedule},
		{"cancel", domain.LockCancel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &recorder{}
			req := validRequest()
			req.User = &domain.ActiveUser{Account: "staff002", Role: domain.RoleOther}
			req.Draft.LockOption = tt.option
			req.Draft.LockDate = day(2)
			req.Draft.LockStatus = domain.LockTemporary

			require.NoError(t, newDispatcher(r).Submit(context.Background(), req, nil))
			assert.Nil(t, r.debt.LockDate)
			assert.Empty(t, r.debt.LockStatus)
			assert.Empty(t, r.care.LockDate)
			assert.Empty(t, r.care.LockStatus)
		})
	}
}

func TestSubmit_NoUser(t *testing.T) {
	req := validRequest()
	req.User = nil
	err := newDispatcher(&recorder{}).Submit(context.Background(), req, nil)
	assert.Equal(t, errors.ErrCodeUnauthorized, errors.CodeOf(err))
}

type slowSink struct{ recorder }

func (s *slowSink) RecordNonPaymentReason(ctx context.Context, _ DebtRecord) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSubmit_SinkTimeout(t *testing.T) {
	s := &slowSink{}
	d := New(s, s, s, validation.New(now), 20*time.Millisecond, logger.Nop())

	err := d.Submit(context.Background(), validRequest(), nil)
	assert.Equal(t, errors.ErrCodeDispatchFailed, errors.CodeOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, s.calls)
}

func TestMapCareRecord(t *testing.T) {
	tests := []struct {
		name  string
		draft domain.SubmissionDraft
		want  domain.CareSystemMapping
	}{
		{
			name: "scheduled lock",
			draft: domain.SubmissionDraft{
				Note:            "Hẹn thanh toán",
				AppointmentDate: day(5),
				AppointmentTime: "08:05",
				LockDate:        day(28),
				LockStatus:      domain.LockMaintain,
			},
			want: domain.CareSystemMapping{
				ContactChannel:      "MobiX",
				AppointmentSchedule: "05/01/2024 08:05",
				LockDate:            "28/01/2024",
				LockStatus:          "maintain",
				CareNote:            "Hẹn thanh toán",
			},
		},
		{
			name: "no lock",
			draft: domain.SubmissionDraft{
				Note:            "  giữ nguyên khoảng trắng ",
				AppointmentDate: day(21),
				AppointmentTime: "17:45",
			},
			want: domain.CareSystemMapping{
				ContactChannel:      "MobiX",
				AppointmentSchedule: "21/01/2024 17:45",
				CareNote:            "  giữ nguyên khoảng trắng ",
			},
		},
		{
			name:  "default clock",
			draft: domain.SubmissionDraft{AppointmentDate: day(21)},
			want: domain.CareSystemMapping{
				ContactChannel:      "MobiX",
				AppointmentSchedule: "21/01/2024 09:00",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapCareRecord(tt.draft, ict)
			assert.Equal(t, tt.want, got)
			assert.Empty(t, got.PersonContact)
			assert.Empty(t, got.PaymentCapability)
			assert.Empty(t, got.Task)
		})
	}
}

func TestMapCareRecord_UsesBusinessDay(t *testing.T) {
	// Midnight 25 Jan in ICT is still 24 Jan in UTC.
	appt := day(25).UTC()
	lock := day(28).UTC()
	got := MapCareRecord(domain.SubmissionDraft{
		AppointmentDate: &appt,
		AppointmentTime: "10:00",
		LockDate:        &lock,
		LockStatus:      domain.LockMaintain,
	}, ict)

	assert.Equal(t, "25/01/2024 10:00", got.AppointmentSchedule)
	assert.Equal(t, "28/01/2024", got.LockDate)
}

func TestBuildInteractionEntry_OmitsEmptyLevels(t *testing.T) {
	draft := domain.SubmissionDraft{ReasonLevel1: "other", ReasonLevel2: "other-reason"}
	entry := BuildInteractionEntry("HD001", "staff002", draft, now())
	assert.Equal(t, []string{"other", "other-reason"}, entry.Reasons)
}
