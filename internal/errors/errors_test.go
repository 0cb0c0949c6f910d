package errors

import (
	stderrors "errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecodeErrorKindString(t *testing.T) {
	assert.Equal(t, "malformed message", DecodeMalformed.String())
	assert.Equal(t, "checksum mismatch", DecodeChecksumMismatch.String())
	assert.Equal(t, "length mismatch", DecodeLengthMismatch.String())
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "encoding with tag",
			err:  EncodingError{Tag: 55, Reason: "missing field"},
			want: "encode failed: tag 55: missing field",
		},
		{
			name: "encoding without tag",
			err:  EncodingError{Reason: "message exceeds max length"},
			want: "encode failed: message exceeds max length",
		},
		{
			name: "decoding checksum",
			err:  DecodingError{Kind: DecodeChecksumMismatch, Tag: 10, Reason: "expected 128, received 100"},
			want: "decode failed: checksum mismatch: tag 10: expected 128, received 100",
		},
		{
			name: "sequence gap",
			err:  SequenceGapError{Expected: 5, Received: 7},
			want: "sequence gap: expected 5, received 7",
		},
		{
			name: "connection lost",
			err:  ConnectionLostError{Name: "client-9940"},
			want: "connection client-9940: peer disconnected",
		},
		{
			name: "connection lost with cause",
			err:  ConnectionLostError{Name: "client-9940", Err: SequenceGapError{Expected: 2, Received: 4}},
			want: "connection client-9940: lost: sequence gap: expected 2, received 4",
		},
		{
			name: "connection timeout",
			err:  ConnectionTimeoutError{Name: "client-9940", Timeout: 10 * time.Second},
			want: "connection client-9940: not established within 10s",
		},
		{
			name: "test timeout",
			err:  TestTimeoutError{Title: "waiting for logon", Timeout: time.Second},
			want: "message timeout after 1s: waiting for logon",
		},
		{
			name: "interrupted with reason",
			err:  TestInterruptedError{Reason: "signal received"},
			want: "test interrupted: signal received",
		},
		{
			name: "interrupted without reason",
			err:  TestInterruptedError{},
			want: "test interrupted",
		},
		{
			name: "assertion",
			err:  AssertionError{Location: "logon.go:42", Message: "tag 35 missing"},
			want: "assertion failed at logon.go:42: tag 35 missing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestConnectionErrorUnwrap(t *testing.T) {
	err := ConnectionError{Name: "server-9940", Err: io.ErrClosedPipe}
	assert.True(t, stderrors.Is(err, io.ErrClosedPipe))
}

func TestConnectionLostErrorUnwrap(t *testing.T) {
	err := error(ConnectionLostError{Name: "client-9940", Err: SequenceGapError{Expected: 2, Received: 4}})
	var gap SequenceGapError
	assert.True(t, stderrors.As(err, &gap))
	assert.Equal(t, 2, gap.Expected)
}

func TestErrorsMatchWithAs(t *testing.T) {
	var gap SequenceGapError
	err := error(SequenceGapError{Expected: 2, Received: 4})
	assert.True(t, stderrors.As(err, &gap))
	assert.Equal(t, 2, gap.Expected)
	assert.Equal(t, 4, gap.Received)
}
