package relation

import (
	"errors"
	"fmt"
	"strings"
)

// WriteErrorReason categorizes bus write failures.
type WriteErrorReason string

const (
	// WriteNotLeader indicates the local unit lost (or never held) leadership
	// at the time of the write.
	WriteNotLeader WriteErrorReason = "NOT_LEADER"
)

// WriteError is returned by Bus.WriteApplicationData when the write is refused.
type WriteError struct {
	Reason     WriteErrorReason
	RelationID int
	Field      string
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: write of %q on relation %d refused", e.Reason, e.Field, e.RelationID)
}

// IsNotLeader reports whether err is a WriteError caused by missing leadership.
func IsNotLeader(err error) bool {
	var we *WriteError
	if errors.As(err, &we) {
		return we.Reason == WriteNotLeader
	}
	return false
}

// DecodeReason categorizes provider payload decode failures.
type DecodeReason string

const (
	DecodeAbsent       DecodeReason = "ABSENT"
	DecodeMalformed    DecodeReason = "MALFORMED"
	DecodeMissingField DecodeReason = "MISSING_FIELD"
	DecodeInvalidField DecodeReason = "INVALID_FIELD"
)

// PayloadDecodeError describes provider data that could not be turned into a
// ProviderPayload. Consumers treat it as an Invalid verdict.
type PayloadDecodeError struct {
	// Field is the relation field or JSON member at fault.
	Field  string
	Reason DecodeReason
	Err    error
}

func (e *PayloadDecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Field, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Field)
}

func (e *PayloadDecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err is a PayloadDecodeError.
func IsDecodeError(err error) bool {
	var de *PayloadDecodeError
	return errors.As(err, &de)
}

// VersionMismatch is one required capability the provider does not satisfy.
type VersionMismatch struct {
	Capability string
	Required   string
	// Offered is empty when Missing is true.
	Offered string
	Missing bool
}

func (m VersionMismatch) Error() string {
	if m.Missing {
		return fmt.Sprintf("capability %q: required %q, not offered", m.Capability, m.Required)
	}
	return fmt.Sprintf("capability %q: required %q, offered %q", m.Capability, m.Required, m.Offered)
}

// mismatchSummary joins mismatch messages for a single log attribute.
func mismatchSummary(ms []VersionMismatch) string {
	parts := make([]string, len(ms))
	for i, m := range ms {
		parts[i] = m.Error()
	}
	return strings.Join(parts, "; ")
}
