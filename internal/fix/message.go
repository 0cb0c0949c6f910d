package fix

// FIX message model: an ordered sequence of fields and repeating groups

import (
	"fmt"
	"strconv"
	"strings"
)

// Field is a single (tag, value) pair within a message. Exactly one of
// Value or Group is set: scalar and binary fields carry their wire bytes
// in Value, repeating groups carry their instances in Group (the field's
// wire value is then the instance count).
type Field struct {
	Tag   int
	Value []byte
	Group []*Message
}

// IsGroup reports whether the field is a repeating group.
func (f Field) IsGroup() bool { return f.Group != nil }

// F builds a scalar field. The value may be a string, []byte, integer,
// or anything with a reasonable fmt representation (decimal.Decimal,
// time strings, and the like).
func F(tag int, value interface{}) Field {
	switch v := value.(type) {
	case []byte:
		return Field{Tag: tag, Value: v}
	case string:
		return Field{Tag: tag, Value: []byte(v)}
	default:
		return Field{Tag: tag, Value: []byte(fmt.Sprint(v))}
	}
}

// G builds a repeating-group field. The count on the wire is the number
// of instances.
func G(tag int, instances ...*Message) Field {
	if instances == nil {
		instances = []*Message{}
	}
	return Field{Tag: tag, Group: instances}
}

// TagValue pairs a tag with its expected string value, for Verify and
// the assertion helpers.
type TagValue struct {
	Tag   int
	Value string
}

// Message is an ordered sequence of fields. Iteration order is insertion
// order; the codec applies header ordering and computes tags 8, 9 and 10
// at encode time, so test code never manages those directly.
type Message struct {
	fields []Field
}

// NewMessage builds a message from the given fields, preserving order.
func NewMessage(fields ...Field) *Message {
	m := &Message{fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		m.fields = append(m.fields, f)
	}
	return m
}

// Fields returns the message's fields in order. The slice is shared;
// callers must not mutate it.
func (m *Message) Fields() []Field { return m.fields }

// Len returns the number of top-level fields.
func (m *Message) Len() int { return len(m.fields) }

// Set assigns a scalar value for a tag. An existing field keeps its
// position; a new tag is appended.
func (m *Message) Set(tag int, value interface{}) {
	f := F(tag, value)
	for i := range m.fields {
		if m.fields[i].Tag == tag {
			m.fields[i] = f
			return
		}
	}
	m.fields = append(m.fields, f)
}

// SetGroup assigns a repeating group for a tag, keeping position if the
// tag already exists.
func (m *Message) SetGroup(tag int, instances ...*Message) {
	f := G(tag, instances...)
	for i := range m.fields {
		if m.fields[i].Tag == tag {
			m.fields[i] = f
			return
		}
	}
	m.fields = append(m.fields, f)
}

// append adds a field without replacing existing tags. Used by the
// decoder, where duplicate tags are legal inside the wire order.
func (m *Message) append(f Field) {
	m.fields = append(m.fields, f)
}

// Has reports whether the tag is present at the top level.
func (m *Message) Has(tag int) bool {
	for i := range m.fields {
		if m.fields[i].Tag == tag {
			return true
		}
	}
	return false
}

// Get returns the scalar value of a tag as a string.
func (m *Message) Get(tag int) (string, bool) {
	for i := range m.fields {
		if m.fields[i].Tag == tag && !m.fields[i].IsGroup() {
			return string(m.fields[i].Value), true
		}
	}
	return "", false
}

// GetBytes returns the raw value bytes of a tag.
func (m *Message) GetBytes(tag int) ([]byte, bool) {
	for i := range m.fields {
		if m.fields[i].Tag == tag && !m.fields[i].IsGroup() {
			return m.fields[i].Value, true
		}
	}
	return nil, false
}

// GetInt returns the value of a tag parsed as an integer.
func (m *Message) GetInt(tag int) (int, bool) {
	s, ok := m.Get(tag)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// GetGroup returns the instances of a repeating group.
func (m *Message) GetGroup(tag int) ([]*Message, bool) {
	for i := range m.fields {
		if m.fields[i].Tag == tag && m.fields[i].IsGroup() {
			return m.fields[i].Group, true
		}
	}
	return nil, false
}

// Remove deletes all fields with the given tag.
func (m *Message) Remove(tag int) {
	out := m.fields[:0]
	for _, f := range m.fields {
		if f.Tag != tag {
			out = append(out, f)
		}
	}
	m.fields = out
}

// MsgType returns the value of tag 35, or "" when absent.
func (m *Message) MsgType() string {
	s, _ := m.Get(TagMsgType)
	return s
}

// Clone returns a deep copy of the message.
func (m *Message) Clone() *Message {
	out := &Message{fields: make([]Field, 0, len(m.fields))}
	for _, f := range m.fields {
		if f.IsGroup() {
			instances := make([]*Message, 0, len(f.Group))
			for _, inst := range f.Group {
				instances = append(instances, inst.Clone())
			}
			out.fields = append(out.fields, Field{Tag: f.Tag, Group: instances})
			continue
		}
		value := make([]byte, len(f.Value))
		copy(value, f.Value)
		out.fields = append(out.fields, Field{Tag: f.Tag, Value: value})
	}
	return out
}

// Verify checks tag/value pairs, tag existence and tag absence in one
// call. Returns true only when every condition holds.
func (m *Message) Verify(tags []TagValue, exists []int, notExists []int) bool {
	for _, tv := range tags {
		got, ok := m.Get(tv.Tag)
		if !ok || got != tv.Value {
			return false
		}
	}
	for _, tag := range exists {
		if !m.Has(tag) {
			return false
		}
	}
	for _, tag := range notExists {
		if m.Has(tag) {
			return false
		}
	}
	return true
}

// String renders the message for debugging and trace output:
// "35=A, 49=FixClient, ...". Groups render as count followed by their
// instances' fields.
func (m *Message) String() string {
	var parts []string
	appendFields(&parts, m.fields)
	return strings.Join(parts, ", ")
}

func appendFields(parts *[]string, fields []Field) {
	for _, f := range fields {
		if f.IsGroup() {
			*parts = append(*parts, fmt.Sprintf("%d=%d", f.Tag, len(f.Group)))
			for _, inst := range f.Group {
				appendFields(parts, inst.fields)
			}
			continue
		}
		*parts = append(*parts, fmt.Sprintf("%d=%s", f.Tag, f.Value))
	}
}

// Describe renders a one-line human-readable summary used in trace
// output: the MsgType name, the ExecType name when present, and the
// flattened fields.
func (m *Message) Describe() string {
	desc := MsgTypeName(m.MsgType())
	if execType, ok := m.Get(TagExecType); ok {
		desc += " (" + ExecTypeName(execType) + ")"
	}
	return desc + " : " + m.String()
}
