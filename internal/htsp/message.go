// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

// Package htsp implements the client side of the HTSP protocol: the binary
// htsmsg codec, the connection that owns the socket, the dispatcher that
// correlates replies to requests, and the hello/challenge/digest
// authentication handshake.
//
// HTSP is a stateful, message-oriented TCP protocol. Every message is a map
// of named, typed fields. Requests carry a per-connection `seq` integer that
// the server echoes in the matching reply; everything without a matching seq
// is an asynchronous server-to-client notification.
package htsp

import (
	"fmt"
	"math"
)

// Field type tags on the wire.
const (
	typeMap  = 1
	typeS64  = 2
	typeStr  = 3
	typeBin  = 4
	typeList = 5
)

// field is one named, typed entry of a message. The name is empty for list
// elements. Values are canonicalized to int64, string, []byte, []any or
// *Message.
type field struct {
	name  string
	value any
}

// Message is an ordered mapping from field name to typed value. Field order
// is preserved through encode/decode; lookups go through an index so getters
// stay O(1).
type Message struct {
	fields []field
	index  map[string]int
}

// NewMessage creates an empty message.
func NewMessage() *Message {
	return &Message{index: make(map[string]int)}
}

// NewRequest creates a message with its method field set.
func NewRequest(method string) *Message {
	m := NewMessage()
	m.Set("method", method)
	return m
}

// Method returns the method field, or the empty string.
func (m *Message) Method() string {
	return m.GetStr("method", "")
}

// Seq returns the seq field and whether it is present.
func (m *Message) Seq() (int64, bool) {
	if !m.Contains("seq") {
		return 0, false
	}
	return m.GetInt64("seq", 0), true
}

// Contains reports whether the named field is present.
func (m *Message) Contains(name string) bool {
	_, ok := m.index[name]
	return ok
}

// Len returns the number of fields.
func (m *Message) Len() int {
	return len(m.fields)
}

// Set stores a value under the given name, replacing any existing value but
// keeping the original field position. Supported inputs are integers of any
// width, bool (encoded as 0/1), string, []byte, *Message, and slices of the
// preceding (stored as a list). Unsupported types panic at encode time, not
// here, so Set stays chainable in message-building code.
func (m *Message) Set(name string, v any) *Message {
	cv := canonical(v)
	if i, ok := m.index[name]; ok {
		m.fields[i].value = cv
		return m
	}
	m.index[name] = len(m.fields)
	m.fields = append(m.fields, field{name: name, value: cv})
	return m
}

// canonical maps arbitrary supported inputs onto the wire value types.
func canonical(v any) any {
	switch t := v.(type) {
	case int64, string, []byte, *Message, []any:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int16:
		return int64(t)
	case int8:
		return int64(t)
	case uint:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		if t > math.MaxInt64 {
			return int64(math.MaxInt64)
		}
		return int64(t)
	case bool:
		if t {
			return int64(1)
		}
		return int64(0)
	case []int64:
		list := make([]any, len(t))
		for i, e := range t {
			list[i] = e
		}
		return list
	case []string:
		list := make([]any, len(t))
		for i, e := range t {
			list[i] = e
		}
		return list
	case []*Message:
		list := make([]any, len(t))
		for i, e := range t {
			list[i] = e
		}
		return list
	default:
		return v
	}
}

// Get returns the raw canonical value and whether the field is present.
func (m *Message) Get(name string) (any, bool) {
	i, ok := m.index[name]
	if !ok {
		return nil, false
	}
	return m.fields[i].value, true
}

// GetStr returns the named string field, or def when absent or of another
// type.
func (m *Message) GetStr(name, def string) string {
	if v, ok := m.Get(name); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// GetInt64 returns the named integer field, or def when absent or of another
// type.
func (m *Message) GetInt64(name string, def int64) int64 {
	if v, ok := m.Get(name); ok {
		if n, ok := v.(int64); ok {
			return n
		}
	}
	return def
}

// GetBin returns the named binary field, or nil.
func (m *Message) GetBin(name string) []byte {
	if v, ok := m.Get(name); ok {
		if b, ok := v.([]byte); ok {
			return b
		}
	}
	return nil
}

// GetList returns the named list field, or nil.
func (m *Message) GetList(name string) []any {
	if v, ok := m.Get(name); ok {
		if l, ok := v.([]any); ok {
			return l
		}
	}
	return nil
}

// GetMsgList returns the message elements of the named list field. Non-map
// elements are skipped.
func (m *Message) GetMsgList(name string) []*Message {
	list := m.GetList(name)
	out := make([]*Message, 0, len(list))
	for _, e := range list {
		if sub, ok := e.(*Message); ok {
			out = append(out, sub)
		}
	}
	return out
}

// GetIntList returns the integer elements of the named list field.
func (m *Message) GetIntList(name string) []int64 {
	list := m.GetList(name)
	out := make([]int64, 0, len(list))
	for _, e := range list {
		if n, ok := e.(int64); ok {
			out = append(out, n)
		}
	}
	return out
}

// GetMsg returns the named nested message field, or nil.
func (m *Message) GetMsg(name string) *Message {
	if v, ok := m.Get(name); ok {
		if sub, ok := v.(*Message); ok {
			return sub
		}
	}
	return nil
}

// Equal reports structural equality: same fields in the same order with
// equal values. Used by the codec round-trip tests.
func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	if len(m.fields) != len(o.fields) {
		return false
	}
	for i := range m.fields {
		if m.fields[i].name != o.fields[i].name {
			return false
		}
		if !valueEqual(m.fields[i].value, o.fields[i].value) {
			return false
		}
	}
	return true
}

func valueEqual(a, b any) bool {
	switch av := a.(type) {
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []byte:
		bv, ok := b.([]byte)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i] != bv[i] {
				return false
			}
		}
		return true
	case *Message:
		bv, ok := b.(*Message)
		return ok && av.Equal(bv)
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders the method and field names for logging.
func (m *Message) String() string {
	names := make([]string, len(m.fields))
	for i, f := range m.fields {
		names[i] = f.name
	}
	return fmt.Sprintf("htsp.Message{method=%s fields=%v}", m.Method(), names)
}
