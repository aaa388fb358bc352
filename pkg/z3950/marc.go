package z3950

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	subfieldDelimiter = 0x1f
	fieldTerminator   = 0x1e
	recordTerminator  = 0x1d

	leaderLen   = 24
	dirEntryLen = 12
)

// ErrMalformedRecord is returned for ISO 2709 data that cannot be parsed.
var ErrMalformedRecord = errors.New("malformed MARC record")

// Subfield is a single coded value inside a data field.
type Subfield struct {
	Code  byte
	Value string
}

// Field is a MARC control or data field. Control fields (tags 001-009)
// carry Value only; data fields carry indicators and subfields.
type Field struct {
	Tag        string
	Indicators string
	Value      string
	Subfields  []Subfield
}

// IsControl reports whether the field is a control field.
func (f Field) IsControl() bool {
	return strings.HasPrefix(f.Tag, "00")
}

// Subfield returns the first value for code, or "".
func (f Field) Subfield(code byte) string {
	for _, sf := range f.Subfields {
		if sf.Code == code {
			return sf.Value
		}
	}
	return ""
}

// Text joins all subfield values with a space.
func (f Field) Text() string {
	if f.IsControl() {
		return f.Value
	}
	parts := make([]string, 0, len(f.Subfields))
	for _, sf := range f.Subfields {
		if v := strings.TrimSpace(sf.Value); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// Record is a parsed MARC record.
type Record struct {
	Leader string
	Fields []Field
}

// ControlField returns the value of the first control field with tag.
func (r *Record) ControlField(tag string) string {
	for _, f := range r.Fields {
		if f.Tag == tag {
			return f.Value
		}
	}
	return ""
}

// FieldsByTag returns every field with tag, in record order.
func (r *Record) FieldsByTag(tag string) []Field {
	var out []Field
	for _, f := range r.Fields {
		if f.Tag == tag {
			out = append(out, f)
		}
	}
	return out
}

// First returns the first field carrying any of tags, checked in the order
// given.
func (r *Record) First(tags ...string) (Field, bool) {
	for _, tag := range tags {
		for _, f := range r.Fields {
			if f.Tag == tag {
				return f, true
			}
		}
	}
	return Field{}, false
}

// ParseMARC parses an ISO 2709 record. Field bytes are split on delimiters
// before charset decoding so multi-byte text never straddles a subfield.
func ParseMARC(data []byte) (*Record, error) {
	if len(data) < leaderLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformedRecord, len(data))
	}
	leader := string(data[:leaderLen])
	baseAddr, err := strconv.Atoi(strings.TrimSpace(leader[12:17]))
	if err != nil {
		return nil, fmt.Errorf("%w: base address %q", ErrMalformedRecord, leader[12:17])
	}
	dirEnd := baseAddr - 1
	if dirEnd < leaderLen || dirEnd > len(data) {
		return nil, fmt.Errorf("%w: base address %d out of range", ErrMalformedRecord, baseAddr)
	}

	rec := &Record{Leader: leader}
	directory := data[leaderLen:dirEnd]
	for i := 0; i+dirEntryLen <= len(directory); i += dirEntryLen {
		entry := directory[i : i+dirEntryLen]
		tag := string(entry[:3])
		length, err1 := strconv.Atoi(string(entry[3:7]))
		start, err2 := strconv.Atoi(string(entry[7:12]))
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: directory entry %q", ErrMalformedRecord, entry)
		}
		fieldStart, fieldEnd := baseAddr+start, baseAddr+start+length
		if fieldEnd > len(data) {
			continue
		}
		raw := bytes.TrimRight(data[fieldStart:fieldEnd], string([]byte{fieldTerminator, recordTerminator}))
		rec.Fields = append(rec.Fields, parseField(tag, raw))
	}
	return rec, nil
}

func parseField(tag string, raw []byte) Field {
	f := Field{Tag: tag}
	if f.IsControl() {
		f.Value = DecodeText(raw)
		return f
	}

	parts := bytes.Split(raw, []byte{subfieldDelimiter})
	if len(parts[0]) > 0 {
		f.Indicators = string(parts[0])
	}
	for _, p := range parts[1:] {
		if len(p) == 0 {
			continue
		}
		f.Subfields = append(f.Subfields, Subfield{Code: p[0], Value: DecodeText(p[1:])})
	}
	return f
}

// BuildMARC encodes fields as an ISO 2709 record with UTF-8 text.
func BuildMARC(fields []Field) []byte {
	var body, dir bytes.Buffer
	for _, f := range fields {
		start := body.Len()
		if f.IsControl() {
			body.WriteString(f.Value)
		} else {
			ind := f.Indicators
			if ind == "" {
				ind = "  "
			}
			body.WriteString(ind)
			for _, sf := range f.Subfields {
				body.WriteByte(subfieldDelimiter)
				body.WriteByte(sf.Code)
				body.WriteString(sf.Value)
			}
		}
		body.WriteByte(fieldTerminator)
		fmt.Fprintf(&dir, "%s%04d%05d", f.Tag, body.Len()-start, start)
	}

	baseAddr := leaderLen + dir.Len() + 1
	total := baseAddr + body.Len() + 1
	out := make([]byte, 0, total)
	out = append(out, fmt.Sprintf("%05dnam a22%05d a 4500", total, baseAddr)...)
	out = append(out, dir.Bytes()...)
	out = append(out, fieldTerminator)
	out = append(out, body.Bytes()...)
	return append(out, recordTerminator)
}
