// Package asserts provides the checks test-case bodies use. A failed
// check panics with an AssertionError naming the call site; the
// runner recovers it and reports the test as failed rather than
// crashed.
package asserts

import (
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"

	"github.com/tturner/fixtest/internal/errors"
	"github.com/tturner/fixtest/internal/fix"
)

func fail(format string, v ...interface{}) {
	location := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		location = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	panic(errors.AssertionError{
		Location: location,
		Message:  fmt.Sprintf(format, v...),
	})
}

// Equal fails unless got equals want.
func Equal(got, want interface{}) {
	if !reflect.DeepEqual(got, want) {
		fail("expected %v, got %v", want, got)
	}
}

// NotEqual fails when got equals unwanted.
func NotEqual(got, unwanted interface{}) {
	if reflect.DeepEqual(got, unwanted) {
		fail("expected anything but %v", unwanted)
	}
}

// True fails unless ok holds.
func True(ok bool, what string) {
	if !ok {
		fail("expected %s", what)
	}
}

// False fails when ok holds.
func False(ok bool, what string) {
	if ok {
		fail("expected not %s", what)
	}
}

// Nil fails when v is a non-nil value, rendering the error text when
// v is an error.
func Nil(v interface{}) {
	if v == nil {
		return
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		if rv.IsNil() {
			return
		}
	}
	if err, ok := v.(error); ok {
		fail("unexpected error: %v", err)
	}
	fail("expected nil, got %v", v)
}

// NotNil fails when v is nil.
func NotNil(v interface{}) {
	if v == nil {
		fail("expected a value, got nil")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		if rv.IsNil() {
			fail("expected a value, got nil")
		}
	}
}

// Tag fails unless the message carries tag with exactly value.
func Tag(m *fix.Message, tag int, value string) {
	got, ok := m.Get(tag)
	if !ok {
		fail("%s: missing tag %d", m.Describe(), tag)
	}
	if got != value {
		fail("%s: tag %d: expected %q, got %q", m.Describe(), tag, value, got)
	}
}

// TagExists fails unless the message carries tag, with any value.
func TagExists(m *fix.Message, tag int) {
	if !m.Has(tag) {
		fail("%s: missing tag %d", m.Describe(), tag)
	}
}

// TagAbsent fails when the message carries tag.
func TagAbsent(m *fix.Message, tag int) {
	if m.Has(tag) {
		got, _ := m.Get(tag)
		fail("%s: unexpected tag %d=%s", m.Describe(), tag, got)
	}
}

// MsgType fails unless the message has the given MsgType.
func MsgType(m *fix.Message, msgType string) {
	if m.MsgType() != msgType {
		fail("expected %s, got %s", fix.MsgTypeName(msgType), m.Describe())
	}
}

// Verify fails unless the message matches all three conditions: the
// exact tag values, the tags that must exist, and the tags that must
// not.
func Verify(m *fix.Message, tags []fix.TagValue, exists []int, notExists []int) {
	if !m.Verify(tags, exists, notExists) {
		fail("%s: field check failed", m.Describe())
	}
}
