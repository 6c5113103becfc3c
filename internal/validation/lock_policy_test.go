package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
)

func scheduleDraft(lockDate *time.Time, status domain.LockStatus) domain.SubmissionDraft {
	d := validDraft()
	d.LockOption = domain.LockSchedule
	d.LockDate = lockDate
	d.LockStatus = status
	return d
}

func TestLockSchedule_Window(t *testing.T) {
	tests := []struct {
		name      string
		lockDate  *time.Time
		status    domain.LockStatus
		wantField string
	}{
		{"before the 13th", day(2024, 1, 12), domain.LockMaintain, FieldLockDate},
		{"in window without status", day(2024, 1, 25), "", FieldLockStatus},
		{"in window with maintain", day(2024, 1, 25), domain.LockMaintain, ""},
		{"in window with temporary", day(2024, 1, 31), domain.LockTemporary, ""},
		{"today", day(2024, 1, 20), domain.LockMaintain, FieldLockDate},
		{"yesterday", day(2024, 1, 19), domain.LockMaintain, FieldLockDate},
		{"first of next month", day(2024, 2, 1), domain.LockMaintain, FieldLockDate},
		{"13th already passed", day(2024, 1, 13), domain.LockMaintain, FieldLockDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(now, scheduleDraft(tt.lockDate, tt.status), collector, true)
			if tt.wantField == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Equal(t, tt.wantField, errs[0].Field)
		})
	}
}

func TestLockSchedule_WindowMessage(t *testing.T) {
	errs := CheckLockSchedule(now, scheduleDraft(day(2024, 1, 12), ""))
	require.Len(t, errs, 1)
	assert.Equal(t, MsgLockDateWindow, errs[0].Message)
}

func TestLockSchedule_NoDateYetIsNotAnError(t *testing.T) {
	assert.Empty(t, CheckLockSchedule(now, scheduleDraft(nil, "")))
}

func TestLockSchedule_CancelledMarkerIsNotAStatus(t *testing.T) {
	errs := CheckLockSchedule(now, scheduleDraft(day(2024, 1, 25), domain.LockCancelled))
	require.Len(t, errs, 1)
	assert.Equal(t, FieldLockStatus, errs[0].Field)
}

func TestLockSchedule_UnknownStatus(t *testing.T) {
	errs := CheckLockSchedule(now, scheduleDraft(day(2024, 1, 25), "permanent"))
	require.Len(t, errs, 1)
	assert.Equal(t, MsgLockStatusValue, errs[0].Message)
}

func TestLockSchedule_IgnoredForOtherRoles(t *testing.T) {
	for _, user := range []*domain.ActiveUser{otherUser, nil} {
		for _, d := range []domain.SubmissionDraft{
			scheduleDraft(day(2024, 1, 2), ""),
			scheduleDraft(day(2024, 1, 20), ""),
			{
				ReasonLevel1: "a", ReasonLevel2: "b", Note: "n",
				AppointmentDate: day(2024, 1, 20),
				LockOption:      domain.LockCancel, LockDate: day(2024, 1, 1),
			},
		} {
			assert.Empty(t, Validate(now, d, user, false))
		}
	}
}

func TestLockSchedule_NoneAndCancelSkipDateRules(t *testing.T) {
	for _, opt := range []domain.LockOption{domain.LockNone, domain.LockCancel} {
		d := validDraft()
		d.LockOption = opt
		d.LockDate = day(2024, 1, 2)
		assert.Empty(t, Validate(now, d, collector, true), opt)
	}
}

func TestInLockWindow_MonthEndFollowsToday(t *testing.T) {
	feb := time.Date(2024, 2, 20, 9, 0, 0, 0, hcm) // leap February ends on the 29th

	assert.True(t, InLockWindow(feb, *day(2024, 2, 29)))
	assert.False(t, InLockWindow(feb, *day(2024, 3, 30)), "day 30 is past February's end")
	// The window compares day-of-month against the current month only, so a
	// later month's date with an in-range day passes.
	assert.True(t, InLockWindow(feb, *day(2024, 3, 21)))
}

func TestInLockWindow_EarlyInMonth(t *testing.T) {
	early := time.Date(2024, 1, 5, 9, 0, 0, 0, hcm)

	assert.True(t, InLockWindow(early, *day(2024, 1, 13)))
	assert.False(t, InLockWindow(early, *day(2024, 1, 12)))
}
