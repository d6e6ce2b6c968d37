package resp

import (
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Value Types
// --------------------------------------------------------------------------

// Value is one of the typed values exchanged over the wire:
// SimpleString, Error, Integer, BulkString or Array.
type Value interface {
	// AppendWire appends the wire encoding of the value to b and returns the extended buffer
	AppendWire(b []byte) []byte
	// String returns a human-readable form of the value (used for logging)
	String() string
}

// SimpleString is a non binary-safe status reply (e.g. "OK", "PONG").
type SimpleString string

// Error is an error reply. The message must not contain CR or LF; both are
// replaced by spaces when encoding.
type Error string

// Integer is a signed 64-bit integer reply.
type Integer int64

// BulkString is a binary-safe byte string. A nil BulkString is the null bulk string.
type BulkString []byte

// Array is an ordered sequence of values. A nil Array is the null array.
type Array []Value

const crlf = "\r\n"

// Common replies
var (
	OK   = SimpleString("OK")
	Pong = SimpleString("PONG")
	Null = BulkString(nil)
)

// NewBulkString returns a non-null bulk string for b (an empty b stays non-null).
func NewBulkString(b []byte) BulkString {
	if b == nil {
		return BulkString{}
	}
	return BulkString(b)
}

// Encode returns the wire encoding of v.
func Encode(v Value) []byte {
	return v.AppendWire(nil)
}

// IsError reports whether v is an Error reply.
func IsError(v Value) bool {
	_, ok := v.(Error)
	return ok
}

// --------------------------------------------------------------------------
// Wire Encoding
// --------------------------------------------------------------------------

func (s SimpleString) AppendWire(b []byte) []byte {
	b = append(b, '+')
	b = appendLine(b, string(s))
	return append(b, crlf...)
}

func (e Error) AppendWire(b []byte) []byte {
	b = append(b, '-')
	b = appendLine(b, string(e))
	return append(b, crlf...)
}

func (i Integer) AppendWire(b []byte) []byte {
	b = append(b, ':')
	b = strconv.AppendInt(b, int64(i), 10)
	return append(b, crlf...)
}

func (s BulkString) AppendWire(b []byte) []byte {
	if s == nil {
		return append(b, "$-1\r\n"...)
	}
	b = append(b, '$')
	b = strconv.AppendInt(b, int64(len(s)), 10)
	b = append(b, crlf...)
	b = append(b, s...)
	return append(b, crlf...)
}

func (a Array) AppendWire(b []byte) []byte {
	if a == nil {
		return append(b, "*-1\r\n"...)
	}
	b = append(b, '*')
	b = strconv.AppendInt(b, int64(len(a)), 10)
	b = append(b, crlf...)
	for _, v := range a {
		b = v.AppendWire(b)
	}
	return b
}

// appendLine appends s with CR and LF replaced by spaces, so that simple
// strings and errors never break the line framing.
func appendLine(b []byte, s string) []byte {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\r' || c == '\n' {
			c = ' '
		}
		b = append(b, c)
	}
	return b
}

// --------------------------------------------------------------------------
// Debug Encoding
// --------------------------------------------------------------------------

func (s SimpleString) String() string { return string(s) }

func (e Error) String() string { return string(e) }

func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }

func (s BulkString) String() string {
	if s == nil {
		return "(nil)"
	}
	return strconv.Quote(string(s))
}

func (a Array) String() string {
	if a == nil {
		return "(nil)"
	}
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = v.String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// --------------------------------------------------------------------------
// Command Frames
// --------------------------------------------------------------------------

// Frame is a decoded command: element 0 is the command name, the rest are
// arguments. A nil element stands for a null bulk string.
type Frame [][]byte

// Name returns the command name as sent by the client (case preserved).
func (f Frame) Name() string {
	if len(f) == 0 {
		return ""
	}
	return string(f[0])
}

// Args returns the arguments following the command name.
func (f Frame) Args() [][]byte {
	if len(f) == 0 {
		return nil
	}
	return f[1:]
}

func (f Frame) String() string {
	parts := make([]string, len(f))
	for i, e := range f {
		parts[i] = BulkString(e).String()
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// NewFrame builds a frame from string arguments.
func NewFrame(args ...string) Frame {
	f := make(Frame, len(args))
	for i, a := range args {
		f[i] = []byte(a)
	}
	return f
}

// AppendFrame appends the wire encoding of f (an array of bulk strings) to b.
// This is the format used both for requests and for the append-only log.
func AppendFrame(b []byte, f Frame) []byte {
	b = append(b, '*')
	b = strconv.AppendInt(b, int64(len(f)), 10)
	b = append(b, crlf...)
	for _, e := range f {
		b = BulkString(e).AppendWire(b)
	}
	return b
}

// EncodeFrame returns the wire encoding of f.
func EncodeFrame(f Frame) []byte {
	return AppendFrame(nil, f)
}
