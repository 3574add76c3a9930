package reservation

import (
	"errors"
	"fmt"
)

// Soft-fail codes. These are expected, user-correctable outcomes the
// conversational layer phrases as guidance rather than system errors.
const (
	CodeMissingDate          = "MISSING_DATE"
	CodeMissingTime          = "MISSING_TIME"
	CodeInvalidDateFormat    = "INVALID_DATE_FORMAT"
	CodeInvalidTimeFormat    = "INVALID_TIME_FORMAT"
	CodePastDate             = "PAST_DATE"
	CodeLimitReached         = "LIMIT_REACHED"
	CodeSlotTaken            = "SLOT_TAKEN"
	CodePendingExists        = "PENDING_EXISTS"
	CodeReservationNotFound  = "RESERVATION_NOT_FOUND"
	CodeExpired              = "EXPIRED"
	CodeNotOwner             = "NOT_OWNER"
	CodeAlreadyResolved      = "ALREADY_RESOLVED"
	CodeInvalidMonth         = "INVALID_MONTH"
	CodeInvalidYear          = "INVALID_YEAR"
	CodeOutsideWorkingHours  = "OUTSIDE_WORKING_HOURS"
	CodeBookingNotFound      = "BOOKING_NOT_FOUND"
	CodeBookingAlreadyFinal  = "BOOKING_ALREADY_FINAL"
)

// SoftFail is a structured rejection carried as an error value. Store or
// programming failures never take this form; they propagate as plain errors.
type SoftFail struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

func (e *SoftFail) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewSoftFail builds a soft-fail result.
func NewSoftFail(code, message, suggestion string) *SoftFail {
	return &SoftFail{Code: code, Message: message, Suggestion: suggestion}
}

// AsSoftFail unwraps a soft-fail from an error chain.
func AsSoftFail(err error) (*SoftFail, bool) {
	var sf *SoftFail
	if errors.As(err, &sf) {
		return sf, true
	}
	return nil, false
}
