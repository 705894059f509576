// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package htsp

import (
	"encoding/binary"
	"fmt"
)

// Frame layout: a 4-byte big-endian body length, then the body. The body is
// the field sequence of a map without its own type tag. Each field is
//
//	1 byte  type tag
//	1 byte  name length
//	4 bytes big-endian data length
//	name bytes
//	data bytes
//
// Integers are big-endian with leading zero bytes stripped (zero encodes as
// zero data bytes). List elements are fields with empty names. Nested maps
// recurse into the same field layout.

// maxFrameSize bounds inbound frames so a corrupt length prefix cannot make
// the reader allocate without limit. TVHeadend's initial sync streams rows
// individually, so real frames stay far below this.
const maxFrameSize = 64 << 20

// ErrFrameTooLarge is returned when an inbound length prefix exceeds
// maxFrameSize.
var ErrFrameTooLarge = fmt.Errorf("htsp: frame exceeds %d bytes", maxFrameSize)

// Encode serializes a message into a length-prefixed frame.
func Encode(m *Message) ([]byte, error) {
	body, err := encodeFields(m.fields)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)
	return frame, nil
}

func encodeFields(fields []field) ([]byte, error) {
	var out []byte
	for _, f := range fields {
		enc, err := encodeField(f)
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}
	return out, nil
}

func encodeField(f field) ([]byte, error) {
	if len(f.name) > 255 {
		return nil, fmt.Errorf("htsp: field name %q exceeds 255 bytes", f.name)
	}

	var tag byte
	var data []byte
	var err error

	switch v := f.value.(type) {
	case int64:
		tag = typeS64
		data = encodeS64(v)
	case string:
		tag = typeStr
		data = []byte(v)
	case []byte:
		tag = typeBin
		data = v
	case *Message:
		tag = typeMap
		data, err = encodeFields(v.fields)
	case []any:
		tag = typeList
		data, err = encodeList(v)
	default:
		return nil, fmt.Errorf("htsp: unsupported field type %T for %q", f.value, f.name)
	}
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 6+len(f.name)+len(data))
	out = append(out, tag, byte(len(f.name)))
	out = binary.BigEndian.AppendUint32(out, uint32(len(data)))
	out = append(out, f.name...)
	out = append(out, data...)
	return out, nil
}

func encodeList(list []any) ([]byte, error) {
	var out []byte
	for _, e := range list {
		enc, err := encodeField(field{value: e})
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}
	return out, nil
}

// encodeS64 writes an integer big-endian with leading zero bytes stripped.
// Negative values occupy the full 8 bytes so sign survives the trip.
func encodeS64(v int64) []byte {
	u := uint64(v)
	n := 0
	for x := u; x != 0; x >>= 8 {
		n++
	}
	out := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(u)
		u >>= 8
	}
	return out
}

// Decode attempts to parse one frame from the front of buf. It returns
// (nil, 0, nil) when buf does not yet hold a complete frame; the caller keeps
// accumulating. On success it returns the message and the number of consumed
// bytes. On a malformed body it still reports the full frame as consumed so
// the caller can skip it and resynchronize on the next length prefix.
func Decode(buf []byte) (*Message, int, error) {
	if len(buf) < 4 {
		return nil, 0, nil
	}
	length := int(binary.BigEndian.Uint32(buf))
	if length > maxFrameSize {
		return nil, 0, ErrFrameTooLarge
	}
	if len(buf) < 4+length {
		return nil, 0, nil
	}

	consumed := 4 + length
	fields, err := decodeFields(buf[4:consumed])
	if err != nil {
		return nil, consumed, fmt.Errorf("htsp: malformed frame: %w", err)
	}

	m := NewMessage()
	for _, f := range fields {
		// Last write wins for duplicate names, matching map semantics.
		m.Set(f.name, f.value)
	}
	return m, consumed, nil
}

func decodeFields(data []byte) ([]field, error) {
	var fields []field
	for len(data) > 0 {
		f, rest, err := decodeField(data)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
		data = rest
	}
	return fields, nil
}

func decodeField(data []byte) (field, []byte, error) {
	if len(data) < 6 {
		return field{}, nil, fmt.Errorf("truncated field header (%d bytes)", len(data))
	}
	tag := data[0]
	nameLen := int(data[1])
	dataLen := int(binary.BigEndian.Uint32(data[2:6]))
	if len(data) < 6+nameLen+dataLen {
		return field{}, nil, fmt.Errorf("field body exceeds frame (need %d, have %d)", 6+nameLen+dataLen, len(data))
	}

	name := string(data[6 : 6+nameLen])
	body := data[6+nameLen : 6+nameLen+dataLen]
	rest := data[6+nameLen+dataLen:]

	var value any
	switch tag {
	case typeS64:
		value = decodeS64(body)
	case typeStr:
		value = string(body)
	case typeBin:
		value = append([]byte(nil), body...)
	case typeMap:
		sub, err := decodeFields(body)
		if err != nil {
			return field{}, nil, err
		}
		m := NewMessage()
		for _, f := range sub {
			m.Set(f.name, f.value)
		}
		value = m
	case typeList:
		list, err := decodeListBody(body)
		if err != nil {
			return field{}, nil, err
		}
		value = list
	default:
		return field{}, nil, fmt.Errorf("unknown field type %d", tag)
	}

	return field{name: name, value: value}, rest, nil
}

func decodeListBody(data []byte) ([]any, error) {
	list := []any{}
	for len(data) > 0 {
		f, rest, err := decodeField(data)
		if err != nil {
			return nil, err
		}
		list = append(list, f.value)
		data = rest
	}
	return list, nil
}

func decodeS64(data []byte) int64 {
	var u uint64
	for _, b := range data {
		u = u<<8 | uint64(b)
	}
	return int64(u)
}
