package validation

// Field names as the form and the API expose them.
const (
	FieldReasonLevel1    = "reasonLevel1"
	FieldReasonLevel2    = "reasonLevel2"
	FieldReasonLevel3    = "reasonLevel3"
	FieldNote            = "note"
	FieldAppointmentDate = "appointmentDate"
	FieldAppointmentTime = "appointmentTime"
	FieldLockDate        = "lockDate"
	FieldLockStatus      = "lockStatus"
)

// Form constraints.
const (
	MaxNoteLength = 500
	MinLockDay    = 13
)

// User-facing messages.
const (
	MsgRequired        = "Vui lòng nhập đầy đủ thông tin"
	MsgPastDate        = "Không thể chọn ngày quá khứ"
	MsgNoteTooLong     = "Ghi chú không được vượt quá 500 ký tự"
	MsgInvalidTime     = "Giờ hẹn không hợp lệ (HH:mm)"
	MsgInvalidReason   = "Nguyên nhân không hợp lệ"
	MsgLockDateWindow  = "Thao tác thất bại. Chỉ cho phép cập nhật lịch khóa từ ngày 13 đến cuối tháng và không cho phép chọn ngày khóa nhỏ hơn hoặc bằng ngày hiện tại."
	MsgLockStatusValue = "Trạng thái khóa không hợp lệ"
)

var fieldLabels = map[string]string{
	FieldReasonLevel1:    "Nguyên nhân cấp 1",
	FieldReasonLevel2:    "Nguyên nhân cấp 2",
	FieldReasonLevel3:    "Nguyên nhân cấp 3",
	FieldNote:            "Ghi chú",
	FieldAppointmentDate: "Ngày hẹn thanh toán",
	FieldAppointmentTime: "Giờ hẹn thanh toán",
	FieldLockDate:        "Ngày dự kiến khóa cước",
	FieldLockStatus:      "Trạng thái khóa",
}

// Label returns the display label of a form field.
func Label(field string) string {
	if l, ok := fieldLabels[field]; ok {
		return l
	}
	return field
}

// RequiredMessage is the message for a missing required field.
func RequiredMessage(field string) string {
	return MsgRequired + " - " + Label(field)
}

// InvalidReasonMessage is the message for a reason code outside its parent.
func InvalidReasonMessage(field string) string {
	return MsgInvalidReason + " - " + Label(field)
}
