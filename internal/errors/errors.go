package errors

// Error taxonomy for the FIX test harness

import (
	"fmt"
	"time"
)

// ConfigError indicates a problem loading or validating a config file.
type ConfigError struct {
	Path string
	Err  error
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e ConfigError) Unwrap() error { return e.Err }

// EncodingError indicates a message could not be converted to wire bytes.
type EncodingError struct {
	Tag    int
	Reason string
}

func (e EncodingError) Error() string {
	if e.Tag != 0 {
		return fmt.Sprintf("encode failed: tag %d: %s", e.Tag, e.Reason)
	}
	return "encode failed: " + e.Reason
}

// DecodeErrorKind classifies why an inbound message could not be decoded.
type DecodeErrorKind int

const (
	DecodeMalformed DecodeErrorKind = iota
	DecodeChecksumMismatch
	DecodeLengthMismatch
)

func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeChecksumMismatch:
		return "checksum mismatch"
	case DecodeLengthMismatch:
		return "length mismatch"
	default:
		return "malformed message"
	}
}

// DecodingError indicates inbound bytes could not be decoded into a message.
// Decode failure is fatal to that message but not to the connection.
type DecodingError struct {
	Kind   DecodeErrorKind
	Tag    int
	Reason string
}

func (e DecodingError) Error() string {
	if e.Tag != 0 {
		return fmt.Sprintf("decode failed: %s: tag %d: %s", e.Kind, e.Tag, e.Reason)
	}
	return fmt.Sprintf("decode failed: %s: %s", e.Kind, e.Reason)
}

// SequenceGapError indicates an inbound MsgSeqNum skipped the expected value.
// Gaps are reported, not recovered; this tool implements no resend logic.
type SequenceGapError struct {
	Expected int
	Received int
}

func (e SequenceGapError) Error() string {
	return fmt.Sprintf("sequence gap: expected %d, received %d", e.Expected, e.Received)
}

// ConnectionError indicates a problem establishing or using a connection.
type ConnectionError struct {
	Name string
	Err  error
}

func (e ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Name, e.Err)
}

func (e ConnectionError) Unwrap() error { return e.Err }

// ConnectionLostError indicates the connection went away while still in
// use, including while a wait was outstanding. Err carries the failure
// that tore the connection down, if there was one.
type ConnectionLostError struct {
	Name string
	Err  error
}

func (e ConnectionLostError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("connection %s: lost: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("connection %s: peer disconnected", e.Name)
}

func (e ConnectionLostError) Unwrap() error {
	return e.Err
}

// ConnectionTimeoutError indicates an endpoint did not establish within
// its allotted time.
type ConnectionTimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e ConnectionTimeoutError) Error() string {
	return fmt.Sprintf("connection %s: not established within %v", e.Name, e.Timeout)
}

// TestTimeoutError indicates a wait_for_message call exceeded its deadline.
// Title identifies the operation the test body was waiting on.
type TestTimeoutError struct {
	Title   string
	Timeout time.Duration
}

func (e TestTimeoutError) Error() string {
	return fmt.Sprintf("message timeout after %v: %s", e.Timeout, e.Title)
}

// TestInterruptedError indicates the test run was aborted externally
// (signal, or a sibling connection failing) while a wait was outstanding.
type TestInterruptedError struct {
	Reason string
}

func (e TestInterruptedError) Error() string {
	if e.Reason == "" {
		return "test interrupted"
	}
	return "test interrupted: " + e.Reason
}

// AssertionError is raised by the assertion helpers inside test bodies.
// Location is the caller's file:line.
type AssertionError struct {
	Location string
	Message  string
}

func (e AssertionError) Error() string {
	return fmt.Sprintf("assertion failed at %s: %s", e.Location, e.Message)
}
