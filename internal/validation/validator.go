// Package validation implements the non-payment reason form rules and the
// role-gated lock-schedule policy.
//
// Every function here is pure: the current time is an argument, so the same
// input always yields the same ordered error list.
package validation

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
)

// Validate runs every form rule against draft and returns the violations in
// field order: reason levels 1-3, note, appointment date and time, then the
// lock schedule. Rules never short-circuit each other.
//
// level3Available tells whether the taxonomy has level-3 children for the
// selected (level1, level2) pair; level 3 is only required when it does.
// Lock rules apply only to debt collectors.
func Validate(now time.Time, draft domain.SubmissionDraft, user *domain.ActiveUser, level3Available bool) domain.ValidationErrors {
	errs := domain.ValidationErrors{}

	if strings.TrimSpace(draft.ReasonLevel1) == "" {
		errs.Add(FieldReasonLevel1, RequiredMessage(FieldReasonLevel1))
	}
	if strings.TrimSpace(draft.ReasonLevel2) == "" {
		errs.Add(FieldReasonLevel2, RequiredMessage(FieldReasonLevel2))
	}
	if level3Available && strings.TrimSpace(draft.ReasonLevel3) == "" {
		errs.Add(FieldReasonLevel3, RequiredMessage(FieldReasonLevel3))
	}

	checkNote(&errs, draft.Note)
	checkAppointment(&errs, now, draft)

	if user.IsDebtCollector() {
		errs = append(errs, CheckLockSchedule(now, draft)...)
	}

	return errs
}

func checkNote(errs *domain.ValidationErrors, note string) {
	if strings.TrimSpace(note) == "" {
		errs.Add(FieldNote, RequiredMessage(FieldNote))
		return
	}
	if utf8.RuneCountInString(note) > MaxNoteLength {
		errs.Add(FieldNote, MsgNoteTooLong)
	}
}

func checkAppointment(errs *domain.ValidationErrors, now time.Time, draft domain.SubmissionDraft) {
	if draft.AppointmentDate == nil || draft.AppointmentDate.IsZero() {
		errs.Add(FieldAppointmentDate, RequiredMessage(FieldAppointmentDate))
	} else {
		today := domain.StartOfDay(now)
		day := domain.StartOfDay(draft.AppointmentDate.In(now.Location()))
		if day.Before(today) {
			errs.Add(FieldAppointmentDate, MsgPastDate)
		}
	}

	if t := strings.TrimSpace(draft.AppointmentTime); t != "" && !ValidClock(t) {
		errs.Add(FieldAppointmentTime, MsgInvalidTime)
	}
}

// ValidClock reports whether s is a 24h HH:mm time.
func ValidClock(s string) bool {
	if len(s) != 5 {
		return false
	}
	_, err := time.Parse(domain.TimeLayout, s)
	return err == nil
}

// Validator binds Validate to a clock.
type Validator struct {
	now func() time.Time
}

// New creates a Validator reading the current time from now.
func New(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{now: now}
}

// Now returns the validator's current time.
func (v *Validator) Now() time.Time {
	return v.now()
}

// Validate runs Validate at the validator's current time.
func (v *Validator) Validate(draft domain.SubmissionDraft, user *domain.ActiveUser, level3Available bool) domain.ValidationErrors {
	return Validate(v.now(), draft, user, level3Available)
}
