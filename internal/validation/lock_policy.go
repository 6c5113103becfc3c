package validation

import (
	"time"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
)

// CheckLockSchedule applies the lock-schedule state machine to draft.
//
//	none     nothing to check
//	cancel   removes any existing schedule, nothing to check
//	schedule no date yet is fine; a picked date must be inside the lock
//	         window, and once it is, a maintain/temporary status is required
//
// Callers gate this on the debt-collector role.
func CheckLockSchedule(now time.Time, draft domain.SubmissionDraft) domain.ValidationErrors {
	errs := domain.ValidationErrors{}
	if draft.LockOption != domain.LockSchedule || draft.LockDate == nil {
		return errs
	}

	if !InLockWindow(now, *draft.LockDate) {
		errs.Add(FieldLockDate, MsgLockDateWindow)
		return errs
	}

	switch {
	case draft.LockStatus == "" || draft.LockStatus == domain.LockCancelled:
		errs.Add(FieldLockStatus, RequiredMessage(FieldLockStatus))
	case !draft.LockStatus.Schedulable():
		errs.Add(FieldLockStatus, MsgLockStatusValue)
	}
	return errs
}

// InLockWindow reports whether lockDate may be scheduled at now: its day of
// month is between 13 and the last day of now's month, and it falls on a day
// strictly after today.
//
// The month end comes from now, not from lockDate, so only the current
// month's window is ever open.
func InLockWindow(now, lockDate time.Time) bool {
	local := lockDate.In(now.Location())
	day := local.Day()
	if day < MinLockDay || day > domain.EndOfMonthDay(now) {
		return false
	}
	return domain.StartOfDay(local).After(domain.StartOfDay(now))
}
