// pvrmirror - TVHeadend HTSP Client and PVR State Mirror
// Copyright 2026 The pvrmirror authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pvrmirror/pvrmirror

package htsp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestCodecRoundTrip(t *testing.T) {
	msg := NewRequest("eventAdd").
		Set("seq", int64(12)).
		Set("eventId", int64(1<<40)).
		Set("negative", int64(-3600)).
		Set("zero", int64(0)).
		Set("title", "News at Ten").
		Set("empty", "").
		Set("payload", []byte{0x00, 0xDE, 0xAD}).
		Set("nested", NewMessage().Set("inner", int64(5))).
		Set("ids", []int64{10, 20, 30}).
		Set("events", []*Message{
			NewMessage().Set("eventId", int64(1)),
			NewMessage().Set("eventId", int64(2)),
		})

	frame, err := Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, consumed, err := Decode(frame)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded == nil {
		t.Fatal("Decode returned nil for a complete frame")
	}
	if consumed != len(frame) {
		t.Errorf("consumed = %d, want %d", consumed, len(frame))
	}
	if !msg.Equal(decoded) {
		t.Errorf("round trip mismatch:\n sent %s\n got  %s", msg, decoded)
	}
}

func TestCodecIntegerWidths(t *testing.T) {
	tests := []struct {
		name  string
		value int64
		width int
	}{
		{"zero", 0, 0},
		{"one_byte", 0x7F, 1},
		{"high_bit_byte", 0xFF, 1},
		{"two_bytes", 0x0100, 2},
		{"max", 0x7FFFFFFFFFFFFFFF, 8},
		{"negative", -1, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := encodeS64(tt.value)
			if len(enc) != tt.width {
				t.Errorf("encodeS64(%d) width = %d, want %d", tt.value, len(enc), tt.width)
			}
			if got := decodeS64(enc); got != tt.value {
				t.Errorf("decodeS64(encodeS64(%d)) = %d", tt.value, got)
			}
		})
	}
}

func TestCodecWireBytes(t *testing.T) {
	frame, err := Encode(NewMessage().Set("a", int64(1)))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{
		0, 0, 0, 8, // length prefix
		2,          // s64 type tag
		1,          // name length
		0, 0, 0, 1, // data length
		'a',
		1,
	}
	if !bytes.Equal(frame, want) {
		t.Errorf("frame = % x, want % x", frame, want)
	}
}

func TestCodecPartialBuffer(t *testing.T) {
	frame, err := Encode(NewMessage().Set("channelId", int64(7)).Set("channelName", "One"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	// Every strict prefix must report need-more without consuming anything.
	for i := 0; i < len(frame); i++ {
		msg, consumed, err := Decode(frame[:i])
		if err != nil {
			t.Fatalf("Decode(%d bytes): %v", i, err)
		}
		if msg != nil || consumed != 0 {
			t.Fatalf("Decode(%d bytes) = (%v, %d), want need-more", i, msg, consumed)
		}
	}

	msg, consumed, err := Decode(frame)
	if err != nil || msg == nil || consumed != len(frame) {
		t.Fatalf("Decode(full) = (%v, %d, %v)", msg, consumed, err)
	}
}

func TestCodecConsecutiveFrames(t *testing.T) {
	first, _ := Encode(NewRequest("channelAdd").Set("channelId", int64(1)))
	second, _ := Encode(NewRequest("channelDelete").Set("channelId", int64(2)))
	buf := append(append([]byte{}, first...), second...)

	msg, consumed, err := Decode(buf)
	if err != nil || msg == nil {
		t.Fatalf("first Decode = (%v, %v)", msg, err)
	}
	if msg.Method() != "channelAdd" {
		t.Errorf("first method = %q", msg.Method())
	}
	buf = buf[consumed:]

	msg, consumed, err = Decode(buf)
	if err != nil || msg == nil {
		t.Fatalf("second Decode = (%v, %v)", msg, err)
	}
	if msg.Method() != "channelDelete" {
		t.Errorf("second method = %q", msg.Method())
	}
	if consumed != len(buf) {
		t.Errorf("second consumed = %d, want %d", consumed, len(buf))
	}
}

func TestCodecFrameTooLarge(t *testing.T) {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(maxFrameSize+1))
	_, _, err := Decode(prefix[:])
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("Decode oversized prefix err = %v, want ErrFrameTooLarge", err)
	}
}

func TestCodecMalformedFrameIsSkippable(t *testing.T) {
	// A complete frame whose body truncates a field mid-header. The decoder
	// must report how many bytes to discard so the stream can resync.
	body := []byte{2, 5, 0, 0, 0, 9} // claims 5-byte name but frame ends here
	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)

	msg, consumed, err := Decode(frame)
	if err == nil {
		t.Fatalf("Decode malformed frame succeeded: %v", msg)
	}
	if consumed != len(frame) {
		t.Errorf("consumed = %d, want %d (whole frame)", consumed, len(frame))
	}
}

func TestCodecEmptyMessage(t *testing.T) {
	frame, err := Encode(NewMessage())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	msg, consumed, err := Decode(frame)
	if err != nil || msg == nil {
		t.Fatalf("Decode = (%v, %v)", msg, err)
	}
	if msg.Len() != 0 || consumed != 4 {
		t.Errorf("empty message decode = len %d, consumed %d", msg.Len(), consumed)
	}
}
