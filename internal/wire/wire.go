// Package wire maps the budgeting service's protobuf messages to Go values.
//
// The schema belongs to the service. Only the fields the importer needs are
// decoded; unknown fields are skipped as the protobuf encoding allows.
package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/cleared-dev/walletimport/internal/model"
)

// Field numbers of the User message.
const (
	userID protowire.Number = 1
)

// Field numbers of the Imports and ImportFile messages.
const (
	importsFiles protowire.Number = 1

	fileID        protowire.Number = 1
	fileName      protowire.Number = 2
	fileAccountID protowire.Number = 3
)

// User is the decoded user-info response.
type User struct {
	ID string
}

// DecodeUser decodes a User message. A message without an id is malformed.
func DecodeUser(b []byte) (User, error) {
	var u User
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != userID {
			return 0, nil
		}
		s, n, err := consumeString(num, typ, b)
		u.ID = s
		return n, err
	})
	if err != nil {
		return User{}, err
	}
	if u.ID == "" {
		return User{}, malformed("user has no id")
	}
	return u, nil
}

// DecodeImportList decodes an Imports message, preserving server order.
func DecodeImportList(b []byte) ([]model.ImportedFile, error) {
	var files []model.ImportedFile
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != importsFiles {
			return 0, nil
		}
		raw, n, err := consumeMessage(num, typ, b)
		if err != nil {
			return 0, err
		}
		f, err := decodeImportFile(raw)
		if err != nil {
			return 0, fmt.Errorf("file %d: %w", len(files), err)
		}
		files = append(files, f)
		return n, nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func decodeImportFile(b []byte) (model.ImportedFile, error) {
	var f model.ImportedFile
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var dst *string
		switch num {
		case fileID:
			dst = &f.ID
		case fileName:
			dst = &f.FileName
		case fileAccountID:
			dst = &f.AccountID
		default:
			return 0, nil
		}
		s, n, err := consumeString(num, typ, b)
		*dst = s
		return n, err
	})
	if err != nil {
		return model.ImportedFile{}, err
	}
	if f.ID == "" {
		return model.ImportedFile{}, malformed("import file has no id")
	}
	return f, nil
}

// walk iterates over the top-level fields of b. fn returns the number of
// bytes it consumed, or 0 to have the field skipped.
func walk(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed("tag: %v", protowire.ParseError(n))
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return malformed("field %d: %v", num, protowire.ParseError(m))
			}
		}
		b = b[m:]
	}
	return nil
}

func consumeString(num protowire.Number, typ protowire.Type, b []byte) (string, int, error) {
	if typ != protowire.BytesType {
		return "", 0, malformed("field %d: wire type %d, want bytes", num, typ)
	}
	s, n := protowire.ConsumeString(b)
	if n < 0 {
		return "", 0, malformed("field %d: %v", num, protowire.ParseError(n))
	}
	return s, n, nil
}

func consumeMessage(num protowire.Number, typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, malformed("field %d: wire type %d, want bytes", num, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, malformed("field %d: %v", num, protowire.ParseError(n))
	}
	return v, n, nil
}

func consumeVarint(num protowire.Number, typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, malformed("field %d: wire type %d, want varint", num, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, malformed("field %d: %v", num, protowire.ParseError(n))
	}
	return v, n, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrMalformedMessage, fmt.Sprintf(format, args...))
}
