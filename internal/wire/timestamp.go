package wire

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Timestamp message fields.
const (
	tsTags    protowire.Number = 1
	tsFormats protowire.Number = 2

	tagID  protowire.Number = 1
	tagID2 protowire.Number = 2

	fmtID       protowire.Number = 1
	fmtRows     protowire.Number = 2
	fmtID3      protowire.Number = 3
	fmtDelim    protowire.Number = 4
	fmtTimezone protowire.Number = 5
	fmtColumns  protowire.Number = 6
	fmtPattern  protowire.Number = 7
)

// Parse settings the service applies to uploaded CSV files.
const (
	Delimiter       = ","
	Timezone        = "UTC"
	DateTimePattern = "yyyy-MM-dd'T'HH:mm:ss.SSSSSSZ"
)

// TagPair is an opaque (id, id2) pair the commit endpoint expects.
type TagPair struct {
	ID  uint64
	ID2 uint64
}

// CommitTags are sent unchanged with every commit.
var CommitTags = []TagPair{
	{ID: 3, ID2: 0},
	{ID: 2, ID2: 1},
	{ID: 1, ID2: 2},
	{ID: 6, ID2: 3},
}

// FormatDescriptor tells the service how to parse one uploaded file.
// Rows and Columns both carry the file's row count, header included.
type FormatDescriptor struct {
	ID        uint64
	Rows      uint64
	ID3       uint64
	Delimiter string
	Timezone  string
	Columns   uint64
	Pattern   string
}

// TimestampPayload is the body of a commit request.
type TimestampPayload struct {
	Tags    []TagPair
	Formats []FormatDescriptor
}

// NewTimestampPayload builds the commit payload for a file of rowCount rows.
func NewTimestampPayload(rowCount int) TimestampPayload {
	n := uint64(max(rowCount, 0))
	return TimestampPayload{
		Tags: append([]TagPair(nil), CommitTags...),
		Formats: []FormatDescriptor{{
			ID:        1,
			Rows:      n,
			ID3:       1,
			Delimiter: Delimiter,
			Timezone:  Timezone,
			Columns:   n,
			Pattern:   DateTimePattern,
		}},
	}
}

// EncodeTimestampPayload encodes the commit payload for rowCount rows.
func EncodeTimestampPayload(rowCount int) []byte {
	return NewTimestampPayload(rowCount).Marshal()
}

// Marshal encodes p in protobuf wire format.
func (p TimestampPayload) Marshal() []byte {
	var b []byte
	for _, t := range p.Tags {
		var m []byte
		m = appendVarintField(m, tagID, t.ID)
		m = appendVarintField(m, tagID2, t.ID2)
		b = protowire.AppendTag(b, tsTags, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	for _, f := range p.Formats {
		var m []byte
		m = appendVarintField(m, fmtID, f.ID)
		m = appendVarintField(m, fmtRows, f.Rows)
		m = appendVarintField(m, fmtID3, f.ID3)
		m = appendStringField(m, fmtDelim, f.Delimiter)
		m = appendStringField(m, fmtTimezone, f.Timezone)
		m = appendVarintField(m, fmtColumns, f.Columns)
		m = appendStringField(m, fmtPattern, f.Pattern)
		b = protowire.AppendTag(b, tsFormats, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}
	return b
}

// DecodeTimestampPayload is the inverse of Marshal.
func DecodeTimestampPayload(b []byte) (TimestampPayload, error) {
	var p TimestampPayload
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case tsTags:
			raw, n, err := consumeMessage(num, typ, b)
			if err != nil {
				return 0, err
			}
			t, err := decodeTagPair(raw)
			if err != nil {
				return 0, err
			}
			p.Tags = append(p.Tags, t)
			return n, nil
		case tsFormats:
			raw, n, err := consumeMessage(num, typ, b)
			if err != nil {
				return 0, err
			}
			f, err := decodeFormat(raw)
			if err != nil {
				return 0, err
			}
			p.Formats = append(p.Formats, f)
			return n, nil
		}
		return 0, nil
	})
	if err != nil {
		return TimestampPayload{}, err
	}
	return p, nil
}

func decodeTagPair(b []byte) (TagPair, error) {
	var t TagPair
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case tagID:
			v, n, err := consumeVarint(num, typ, b)
			t.ID = v
			return n, err
		case tagID2:
			v, n, err := consumeVarint(num, typ, b)
			t.ID2 = v
			return n, err
		}
		return 0, nil
	})
	return t, err
}

func decodeFormat(b []byte) (FormatDescriptor, error) {
	var f FormatDescriptor
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var (
			u *uint64
			s *string
		)
		switch num {
		case fmtID:
			u = &f.ID
		case fmtRows:
			u = &f.Rows
		case fmtID3:
			u = &f.ID3
		case fmtColumns:
			u = &f.Columns
		case fmtDelim:
			s = &f.Delimiter
		case fmtTimezone:
			s = &f.Timezone
		case fmtPattern:
			s = &f.Pattern
		default:
			return 0, nil
		}
		if u != nil {
			v, n, err := consumeVarint(num, typ, b)
			*u = v
			return n, err
		}
		v, n, err := consumeString(num, typ, b)
		*s = v
		return n, err
	})
	return f, err
}

// proto3 omits zero scalars.
func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}
