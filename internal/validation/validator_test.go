package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
)

var (
	hcm = time.FixedZone("ICT", 7*3600)
	// 2024-01-20 10:30 local; January ends on the 31st.
	now = time.Date(2024, 1, 20, 10, 30, 0, 0, hcm)

	collector = &domain.ActiveUser{Account: "staff001", Name: "Nguyễn Văn A", Role: domain.RoleDebtCollector}
	otherUser = &domain.ActiveUser{Account: "staff002", Name: "Trần Thị B", Role: domain.RoleOther}
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, hcm)
	return &t
}

func validDraft() domain.SubmissionDraft {
	return domain.SubmissionDraft{
		ReasonLevel1:    "customer-refuses",
		ReasonLevel2:    "financial-difficulty",
		ReasonLevel3:    "job-loss",
		Note:            "Khách hàng hẹn thanh toán cuối tuần",
		AppointmentDate: day(2024, 1, 22),
		AppointmentTime: "09:00",
		LockOption:      domain.LockNone,
	}
}

func TestValidate_ValidDraft(t *testing.T) {
	errs := Validate(now, validDraft(), collector, true)
	assert.Empty(t, errs)
}

func TestValidate_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *domain.SubmissionDraft)
		want   []string
	}{
		{"level1", func(d *domain.SubmissionDraft) { d.ReasonLevel1 = "" }, []string{FieldReasonLevel1}},
		{"level2 whitespace", func(d *domain.SubmissionDraft) { d.ReasonLevel2 = "   " }, []string{FieldReasonLevel2}},
		{"note", func(d *domain.SubmissionDraft) { d.Note = "\t" }, []string{FieldNote}},
		{"level1 and note", func(d *domain.SubmissionDraft) {
			d.ReasonLevel1 = ""
			d.Note = ""
		}, []string{FieldReasonLevel1, FieldNote}},
		{"all three", func(d *domain.SubmissionDraft) {
			d.ReasonLevel1 = ""
			d.ReasonLevel2 = ""
			d.Note = ""
		}, []string{FieldReasonLevel1, FieldReasonLevel2, FieldNote}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(&d)

			errs := Validate(now, d, otherUser, true)

			require.Len(t, errs, len(tt.want))
			for i, field := range tt.want {
				assert.Equal(t, field, errs[i].Field)
				assert.Equal(t, RequiredMessage(field), errs[i].Message)
			}
		})
	}
}

func TestValidate_Level3OnlyRequiredWhenAvailable(t *testing.T) {
	d := validDraft()
	d.ReasonLevel2 = "business-trip"
	d.ReasonLevel3 = ""

	assert.Empty(t, Validate(now, d, otherUser, false))

	errs := Validate(now, d, otherUser, true)
	require.Len(t, errs, 1)
	assert.Equal(t, FieldReasonLevel3, errs[0].Field)
}

func TestValidate_NoteLength(t *testing.T) {
	d := validDraft()

	d.Note = strings.Repeat("ă", MaxNoteLength)
	assert.Empty(t, Validate(now, d, otherUser, true), "500 characters is inclusive")

	d.Note = strings.Repeat("a", MaxNoteLength+1)
	errs := Validate(now, d, otherUser, true)
	require.Len(t, errs, 1)
	assert.Equal(t, FieldNote, errs[0].Field)
	assert.Equal(t, MsgNoteTooLong, errs[0].Message)
}

func TestValidate_AppointmentDate(t *testing.T) {
	tests := []struct {
		name    string
		date    *time.Time
		wantMsg string
	}{
		{"yesterday", day(2024, 1, 19), MsgPastDate},
		{"last year", day(2023, 12, 31), MsgPastDate},
		{"today", day(2024, 1, 20), ""},
		{"today late evening", func() *time.Time { t := time.Date(2024, 1, 20, 23, 59, 0, 0, hcm); return &t }(), ""},
		{"tomorrow", day(2024, 1, 21), ""},
		{"next month", day(2024, 2, 3), ""},
		{"missing", nil, RequiredMessage(FieldAppointmentDate)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			d.AppointmentDate = tt.date

			errs := Validate(now, d, otherUser, true)
			if tt.wantMsg == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Equal(t, FieldAppointmentDate, errs[0].Field)
			assert.Equal(t, tt.wantMsg, errs[0].Message)
		})
	}
}

func TestValidate_AppointmentDateUsesNowLocation(t *testing.T) {
	// 2024-01-19 20:00 UTC is already 2024-01-20 03:00 in ICT.
	utc := time.Date(2024, 1, 19, 20, 0, 0, 0, time.UTC)
	d := validDraft()
	d.AppointmentDate = &utc

	assert.Empty(t, Validate(now, d, otherUser, true))
}

func TestValidate_AppointmentTime(t *testing.T) {
	d := validDraft()
	for _, ok := range []string{"", "00:00", "09:30", "23:59"} {
		d.AppointmentTime = ok
		assert.Empty(t, Validate(now, d, otherUser, true), ok)
	}
	for _, bad := range []string{"9:00", "24:00", "12:60", "noon"} {
		d.AppointmentTime = bad
		errs := Validate(now, d, otherUser, true)
		require.Len(t, errs, 1, bad)
		assert.Equal(t, FieldAppointmentTime, errs[0].Field)
	}
}

func TestValidate_ErrorOrderIsStable(t *testing.T) {
	d := domain.SubmissionDraft{
		AppointmentDate: day(2024, 1, 1),
		LockOption:      domain.LockSchedule,
		LockDate:        day(2024, 1, 5),
	}

	first := Validate(now, d, collector, true)
	second := Validate(now, d, collector, true)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{
		FieldReasonLevel1, FieldReasonLevel2, FieldReasonLevel3,
		FieldNote, FieldAppointmentDate, FieldLockDate,
	}, first.Fields())
}

func TestValidator_UsesClock(t *testing.T) {
	v := New(func() time.Time { return now })
	d := validDraft()
	d.AppointmentDate = day(2024, 1, 19)

	errs := v.Validate(d, otherUser, true)
	require.Len(t, errs, 1)
	assert.Equal(t, now, v.Now())
}
