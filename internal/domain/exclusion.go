package domain

import (
	"fmt"
	"strings"
)

// ReasonCode names why a record was excluded. The set is closed.
type ReasonCode string

const (
	ReasonParseError               ReasonCode = "ParseError"
	ReasonBadNumeric               ReasonCode = "BadNumeric"
	ReasonInvalidTimeOrder         ReasonCode = "InvalidTimeOrder"
	ReasonNonPositiveDuration      ReasonCode = "NonPositiveDuration"
	ReasonPickupOutOfBounds        ReasonCode = "PickupOutOfBounds"
	ReasonDropoffOutOfBounds       ReasonCode = "DropoffOutOfBounds"
	ReasonNegativeDistance         ReasonCode = "NegativeDistance"
	ReasonSpeedTooHigh             ReasonCode = "SpeedTooHigh"
	ReasonFareOutOfRange           ReasonCode = "FareOutOfRange"
	ReasonNegativeTip              ReasonCode = "NegativeTip"
	ReasonZeroDistancePositiveFare ReasonCode = "ZeroDistancePositiveFare"
	ReasonDuplicate                ReasonCode = "Duplicate"
)

// ReasonCodes lists every reason code in rule order.
var ReasonCodes = []ReasonCode{
	ReasonParseError,
	ReasonBadNumeric,
	ReasonInvalidTimeOrder,
	ReasonNonPositiveDuration,
	ReasonPickupOutOfBounds,
	ReasonDropoffOutOfBounds,
	ReasonNegativeDistance,
	ReasonSpeedTooHigh,
	ReasonFareOutOfRange,
	ReasonNegativeTip,
	ReasonZeroDistancePositiveFare,
	ReasonDuplicate,
}

// Valid reports whether c is one of ReasonCodes.
func (c ReasonCode) Valid() bool {
	for _, rc := range ReasonCodes {
		if c == rc {
			return true
		}
	}
	return false
}

// ExclusionRecord is one rejected input row. The raw fields echo the input
// text unchanged, so an exclusion is auditable without the source file.
type ExclusionRecord struct {
	RawRowID     int64
	ReasonCode   ReasonCode
	PickupTsRaw  string
	DropoffTsRaw string
	PickupLat    string
	PickupLon    string
	DropoffLat   string
	DropoffLon   string
	DistanceRaw  string
	FareRaw      string
}

// NewExclusionRecord builds the exclusion for raw with the given reason.
func NewExclusionRecord(raw RawRecord, reason ReasonCode) ExclusionRecord {
	return ExclusionRecord{
		RawRowID:     raw.RowID,
		ReasonCode:   reason,
		PickupTsRaw:  SafeText(raw.PickupTs),
		DropoffTsRaw: SafeText(raw.DropoffTs),
		PickupLat:    SafeText(raw.PickupLat),
		PickupLon:    SafeText(raw.PickupLon),
		DropoffLat:   SafeText(raw.DropoffLat),
		DropoffLon:   SafeText(raw.DropoffLon),
		DistanceRaw:  SafeText(raw.Distance),
		FareRaw:      SafeText(raw.Fare),
	}
}

// SafeText returns s with invalid UTF-8 sequences and NUL bytes replaced by
// U+FFFD, so echoed raw text can always be stored in a UTF-8 text column.
func SafeText(s string) string {
	s = strings.ToValidUTF8(s, "\uFFFD")
	return strings.ReplaceAll(s, "\x00", "\uFFFD")
}

// RejectionError is the per-record failure produced by the normalizer and
// the validator. It unwraps to ErrValidation.
type RejectionError struct {
	Reason ReasonCode
	Detail string
}

// Reject builds a RejectionError with a formatted detail message.
func Reject(reason ReasonCode, format string, args ...any) *RejectionError {
	return &RejectionError{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func (e *RejectionError) Error() string {
	return string(e.Reason) + ": " + e.Detail
}

func (e *RejectionError) Unwrap() error {
	return ErrValidation
}
