package fix

// Tag/value wire codec: encoding to and decoding from the FIX
// on-the-wire format.

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/tturner/fixtest/internal/errors"
)

// SOH is the FIX field delimiter.
const SOH = byte(0x01)

// DefaultMaxLength bounds the size of a single message when the link
// configuration does not say otherwise.
const DefaultMaxLength = 2048

// Dictionary is the per-protocol-version field dictionary a link is
// decoded and encoded against. Loaded once per connection; immutable
// afterwards.
//
// Binary fields come in pairs: the declared tag holds the byte count and
// the immediately following tag (declared tag + 1) holds that many raw
// bytes, which may contain any byte value including the delimiter.
type Dictionary struct {
	ProtocolVersion string
	HeaderFields    []int
	BinaryFields    map[int]bool
	RequiredFields  []int
	GroupFields     map[int][]int
	MaxLength       int
}

// NewDictionary fills in the defaults the original field dictionary
// carries: header tags [8 9 35 49 56] and a 2048-byte length cap.
func NewDictionary(version string) *Dictionary {
	return &Dictionary{
		ProtocolVersion: version,
		HeaderFields:    []int{8, 9, 35, 49, 56},
		BinaryFields:    map[int]bool{},
		RequiredFields:  []int{8, 9, 10, 35},
		GroupFields:     map[int][]int{},
		MaxLength:       DefaultMaxLength,
	}
}

// checksumLen is the wire size of the trailing "10=ddd<SOH>" field.
const checksumLen = 7

// Encode converts a message to wire bytes. The header fields appear
// first in dictionary order, then the remaining fields in insertion
// order. BeginString, BodyLength and CheckSum are computed here; any
// values for tags 8, 9 or 10 already in the message are ignored.
func Encode(m *Message, dict *Dictionary) ([]byte, error) {
	if err := checkRequired(m, dict); err != nil {
		return nil, err
	}

	body, err := encodeBody(m, dict)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writeTag(&buf, TagBeginString, []byte(dict.ProtocolVersion))
	writeTag(&buf, TagBodyLength, []byte(strconv.Itoa(len(body))))
	buf.Write(body)

	if dict.MaxLength > 0 && buf.Len()+checksumLen > dict.MaxLength {
		return nil, errors.EncodingError{
			Reason: fmt.Sprintf("message length %d exceeds max %d", buf.Len()+checksumLen, dict.MaxLength),
		}
	}

	writeTag(&buf, TagCheckSum, []byte(formatChecksum(checksum(buf.Bytes()))))
	return buf.Bytes(), nil
}

func checkRequired(m *Message, dict *Dictionary) error {
	for _, tag := range dict.RequiredFields {
		// 8, 9 and 10 are generated below, not author-supplied
		if tag == TagBeginString || tag == TagBodyLength || tag == TagCheckSum {
			continue
		}
		value, ok := m.Get(tag)
		if !ok || len(value) == 0 {
			if _, isGroup := m.GetGroup(tag); isGroup {
				continue
			}
			return errors.EncodingError{Tag: tag, Reason: "missing required field"}
		}
	}
	return nil
}

// encodeBody serializes everything between BodyLength and CheckSum.
func encodeBody(m *Message, dict *Dictionary) ([]byte, error) {
	var buf bytes.Buffer

	headerSet := map[int]bool{}
	for _, tag := range dict.HeaderFields {
		headerSet[tag] = true
	}

	// header fields first, in dictionary order
	for _, tag := range dict.HeaderFields {
		if tag == TagBeginString || tag == TagBodyLength || tag == TagCheckSum {
			continue
		}
		for _, f := range m.Fields() {
			if f.Tag == tag {
				if err := writeField(&buf, f, nil, dict); err != nil {
					return nil, err
				}
				break
			}
		}
	}

	// body fields in insertion order; binary pairs are written together
	fields := m.Fields()
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if f.Tag == TagBeginString || f.Tag == TagBodyLength || f.Tag == TagCheckSum {
			continue
		}
		if headerSet[f.Tag] {
			continue
		}
		var paired *Field
		if dict.BinaryFields[f.Tag] {
			if i+1 >= len(fields) || fields[i+1].Tag != f.Tag+1 {
				return nil, errors.EncodingError{
					Tag:    f.Tag,
					Reason: fmt.Sprintf("binary length field not followed by data field %d", f.Tag+1),
				}
			}
			paired = &fields[i+1]
			i++
		}
		if err := writeField(&buf, f, paired, dict); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// writeField writes one field, expanding groups and validating binary
// pairs. paired is the raw-data field following a binary length field.
func writeField(buf *bytes.Buffer, f Field, paired *Field, dict *Dictionary) error {
	if f.IsGroup() {
		writeTag(buf, f.Tag, []byte(strconv.Itoa(len(f.Group))))
		for _, inst := range f.Group {
			fields := inst.Fields()
			for i := 0; i < len(fields); i++ {
				var p *Field
				if dict.BinaryFields[fields[i].Tag] {
					if i+1 >= len(fields) || fields[i+1].Tag != fields[i].Tag+1 {
						return errors.EncodingError{
							Tag:    fields[i].Tag,
							Reason: fmt.Sprintf("binary length field not followed by data field %d", fields[i].Tag+1),
						}
					}
					p = &fields[i+1]
				}
				if err := writeField(buf, fields[i], p, dict); err != nil {
					return err
				}
				if p != nil {
					i++
				}
			}
		}
		return nil
	}

	if paired != nil {
		declared, err := strconv.Atoi(string(f.Value))
		if err != nil {
			return errors.EncodingError{Tag: f.Tag, Reason: "binary length is not a number"}
		}
		if declared != len(paired.Value) {
			return errors.EncodingError{
				Tag:    f.Tag,
				Reason: fmt.Sprintf("binary length %d does not match data length %d", declared, len(paired.Value)),
			}
		}
		writeTag(buf, f.Tag, f.Value)
		writeTag(buf, paired.Tag, paired.Value)
		return nil
	}

	writeTag(buf, f.Tag, f.Value)
	return nil
}

func writeTag(buf *bytes.Buffer, tag int, value []byte) {
	buf.WriteString(strconv.Itoa(tag))
	buf.WriteByte('=')
	buf.Write(value)
	buf.WriteByte(SOH)
}

func checksum(data []byte) int {
	sum := 0
	for _, b := range data {
		sum = (sum + int(b)) % 256
	}
	return sum
}

func formatChecksum(sum int) string {
	return fmt.Sprintf("%03d", sum)
}

// Decoder reassembles wire bytes into messages. Feed it data as it
// arrives; Next returns one decoded message at a time, or nil when the
// buffered bytes do not yet hold a complete message.
//
// A decode error is fatal to the message but not the stream: the
// offending bytes are dropped and the caller decides whether to
// continue.
type Decoder struct {
	dict *Dictionary
	buf  []byte
}

// NewDecoder creates a decoder for one connection's inbound stream.
func NewDecoder(dict *Dictionary) *Decoder {
	return &Decoder{dict: dict}
}

// Write appends received bytes to the decode buffer.
func (d *Decoder) Write(data []byte) {
	d.buf = append(d.buf, data...)
}

// Reset discards any buffered bytes, readying the decoder for a fresh
// message boundary.
func (d *Decoder) Reset() {
	d.buf = nil
}

// Buffered returns the number of undecoded bytes held.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Next extracts the next complete message from the buffer. It returns
// (nil, nil) when more bytes are needed. On error the buffer is reset;
// resynchronization within a corrupt stream is not attempted.
func (d *Decoder) Next() (*Message, error) {
	msg, err := d.next()
	if err != nil {
		d.Reset()
		return nil, err
	}
	return msg, nil
}

func (d *Decoder) next() (*Message, error) {
	if len(d.buf) == 0 {
		return nil, nil
	}

	// BeginString must open the message
	if !bytes.HasPrefix(d.buf, []byte("8=")) {
		if len(d.buf) < 2 {
			return nil, nil
		}
		return nil, errors.DecodingError{Kind: errors.DecodeMalformed, Tag: 8, Reason: "message does not start with BeginString"}
	}

	beginEnd := bytes.IndexByte(d.buf, SOH)
	if beginEnd < 0 {
		return nil, d.checkRunaway()
	}
	beginString := string(d.buf[2:beginEnd])

	rest := d.buf[beginEnd+1:]
	if !bytes.HasPrefix(rest, []byte("9=")) {
		if len(rest) < 2 {
			return nil, d.checkRunaway()
		}
		return nil, errors.DecodingError{Kind: errors.DecodeMalformed, Tag: 9, Reason: "BodyLength does not follow BeginString"}
	}
	lenEnd := bytes.IndexByte(rest, SOH)
	if lenEnd < 0 {
		return nil, d.checkRunaway()
	}
	bodyLen, err := strconv.Atoi(string(rest[2:lenEnd]))
	if err != nil || bodyLen < 0 {
		return nil, errors.DecodingError{Kind: errors.DecodeMalformed, Tag: 9, Reason: "BodyLength is not a number"}
	}

	headLen := beginEnd + 1 + lenEnd + 1
	total := headLen + bodyLen + checksumLen
	if d.dict.MaxLength > 0 && total > d.dict.MaxLength {
		return nil, errors.DecodingError{
			Kind:   errors.DecodeMalformed,
			Reason: fmt.Sprintf("message length %d exceeds max %d", total, d.dict.MaxLength),
		}
	}
	if len(d.buf) < total {
		return nil, nil
	}

	body := d.buf[headLen : headLen+bodyLen]
	trailer := d.buf[headLen+bodyLen : total]

	// the declared body length must land exactly on the CheckSum field
	if !bytes.HasPrefix(trailer, []byte("10=")) || trailer[checksumLen-1] != SOH {
		return nil, errors.DecodingError{
			Kind:   errors.DecodeLengthMismatch,
			Tag:    9,
			Reason: fmt.Sprintf("declared body length %d does not end at CheckSum", bodyLen),
		}
	}
	declaredSum, err := strconv.Atoi(string(trailer[3 : checksumLen-1]))
	if err != nil {
		return nil, errors.DecodingError{Kind: errors.DecodeMalformed, Tag: 10, Reason: "CheckSum is not a number"}
	}
	computed := checksum(d.buf[:headLen+bodyLen])
	if computed != declaredSum {
		return nil, errors.DecodingError{
			Kind:   errors.DecodeChecksumMismatch,
			Tag:    10,
			Reason: fmt.Sprintf("expected %03d, received %03d", computed, declaredSum),
		}
	}

	fields, err := d.parseBody(body)
	if err != nil {
		return nil, err
	}

	// preserve the exact wire order, including the computed fields
	msg := NewMessage()
	msg.append(F(TagBeginString, beginString))
	msg.append(F(TagBodyLength, strconv.Itoa(bodyLen)))
	for _, f := range fields {
		msg.append(f)
	}
	msg.append(F(TagCheckSum, formatChecksum(declaredSum)))

	d.buf = d.buf[total:]
	return msg, nil
}

// checkRunaway errors out a partial message that can never complete
// within the configured length cap.
func (d *Decoder) checkRunaway() error {
	if d.dict.MaxLength > 0 && len(d.buf) > d.dict.MaxLength {
		return errors.DecodingError{
			Kind:   errors.DecodeMalformed,
			Reason: fmt.Sprintf("message length exceeds max %d", d.dict.MaxLength),
		}
	}
	return nil
}

// cursor walks the body bytes one field at a time.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) done() bool { return c.pos >= len(c.data) }

// readTag consumes "tag=" and returns the tag number.
func (c *cursor) readTag() (int, error) {
	start := c.pos
	for c.pos < len(c.data) && c.data[c.pos] != '=' {
		if c.data[c.pos] < '0' || c.data[c.pos] > '9' {
			return 0, errors.DecodingError{Kind: errors.DecodeMalformed, Reason: fmt.Sprintf("tag is not numeric at offset %d", start)}
		}
		c.pos++
	}
	if c.pos >= len(c.data) {
		return 0, errors.DecodingError{Kind: errors.DecodeMalformed, Reason: "field missing '=' separator"}
	}
	if c.pos == start {
		return 0, errors.DecodingError{Kind: errors.DecodeMalformed, Reason: "field missing tag number"}
	}
	tag, err := strconv.Atoi(string(c.data[start:c.pos]))
	if err != nil {
		return 0, errors.DecodingError{Kind: errors.DecodeMalformed, Reason: "tag is not numeric"}
	}
	c.pos++ // consume '='
	return tag, nil
}

// peekTag returns the next field's tag without consuming it.
func (c *cursor) peekTag() (int, error) {
	saved := c.pos
	tag, err := c.readTag()
	c.pos = saved
	return tag, err
}

// readValue consumes bytes up to and including the delimiter.
func (c *cursor) readValue() ([]byte, error) {
	start := c.pos
	for c.pos < len(c.data) && c.data[c.pos] != SOH {
		c.pos++
	}
	if c.pos >= len(c.data) {
		return nil, errors.DecodingError{Kind: errors.DecodeMalformed, Reason: "field missing delimiter"}
	}
	value := c.data[start:c.pos]
	c.pos++ // consume SOH
	return value, nil
}

// readRaw consumes exactly n bytes followed by the delimiter. Raw bytes
// are not delimiter-escaped, so this must not split on SOH.
func (c *cursor) readRaw(n int) ([]byte, error) {
	if c.pos+n+1 > len(c.data) {
		return nil, errors.DecodingError{Kind: errors.DecodeMalformed, Reason: "binary data truncated"}
	}
	value := c.data[c.pos : c.pos+n]
	c.pos += n
	if c.data[c.pos] != SOH {
		return nil, errors.DecodingError{Kind: errors.DecodeMalformed, Reason: "binary data not followed by delimiter"}
	}
	c.pos++
	return value, nil
}

func (d *Decoder) parseBody(body []byte) ([]Field, error) {
	c := &cursor{data: body}
	var fields []Field
	for !c.done() {
		parsed, err := d.parseNext(c)
		if err != nil {
			return nil, err
		}
		fields = append(fields, parsed...)
	}
	return fields, nil
}

// parseNext consumes one logical field: a scalar, a binary length/data
// pair, or an entire repeating group. Unknown tags decode as ordinary
// scalar fields.
func (d *Decoder) parseNext(c *cursor) ([]Field, error) {
	tag, err := c.readTag()
	if err != nil {
		return nil, err
	}

	if d.dict.BinaryFields[tag] {
		lengthValue, err := c.readValue()
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(string(lengthValue))
		if err != nil || n < 0 {
			return nil, errors.DecodingError{Kind: errors.DecodeMalformed, Tag: tag, Reason: "binary length is not a number"}
		}
		dataTag, err := c.readTag()
		if err != nil {
			return nil, err
		}
		if dataTag != tag+1 {
			return nil, errors.DecodingError{
				Kind:   errors.DecodeMalformed,
				Tag:    tag,
				Reason: fmt.Sprintf("binary length field followed by tag %d, want %d", dataTag, tag+1),
			}
		}
		raw, err := c.readRaw(n)
		if err != nil {
			return nil, err
		}
		return []Field{{Tag: tag, Value: lengthValue}, {Tag: dataTag, Value: raw}}, nil
	}

	if template, ok := d.dict.GroupFields[tag]; ok && len(template) > 0 {
		countValue, err := c.readValue()
		if err != nil {
			return nil, err
		}
		count, err := strconv.Atoi(string(countValue))
		if err != nil || count < 0 {
			return nil, errors.DecodingError{Kind: errors.DecodeMalformed, Tag: tag, Reason: "group count is not a number"}
		}
		instances := make([]*Message, 0, count)
		for i := 0; i < count; i++ {
			inst, err := d.parseGroupInstance(c, tag, template)
			if err != nil {
				return nil, err
			}
			instances = append(instances, inst)
		}
		return []Field{{Tag: tag, Group: instances}}, nil
	}

	value, err := c.readValue()
	if err != nil {
		return nil, err
	}
	return []Field{{Tag: tag, Value: value}}, nil
}

// parseGroupInstance consumes one repetition of a group template. An
// instance starts at the template's first tag and ends at the next
// occurrence of that tag or at any tag outside the template.
func (d *Decoder) parseGroupInstance(c *cursor, groupTag int, template []int) (*Message, error) {
	set := map[int]bool{}
	for _, t := range template {
		set[t] = true
	}
	first := template[0]

	tag, err := c.peekTag()
	if err != nil || tag != first {
		return nil, errors.DecodingError{
			Kind:   errors.DecodeMalformed,
			Tag:    groupTag,
			Reason: fmt.Sprintf("group instance does not start with tag %d", first),
		}
	}

	inst := NewMessage()
	seenFirst := false
	for !c.done() {
		tag, err := c.peekTag()
		if err != nil {
			return nil, err
		}
		if !set[tag] {
			break
		}
		if tag == first && seenFirst {
			break
		}
		parsed, err := d.parseNext(c)
		if err != nil {
			return nil, err
		}
		for _, f := range parsed {
			inst.append(f)
		}
		if tag == first {
			seenFirst = true
		}
	}
	return inst, nil
}
