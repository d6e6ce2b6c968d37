package resp

import (
	"bufio"
	"bytes"
	"testing"
)

func TestWireEncoding(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"simple string", OK, "+OK\r\n"},
		{"error", Error("ERR syntax error"), "-ERR syntax error\r\n"},
		{"error with newline", Error("ERR a\r\nb"), "-ERR a  b\r\n"},
		{"integer", Integer(42), ":42\r\n"},
		{"negative integer", Integer(-7), ":-7\r\n"},
		{"bulk string", BulkString("hello"), "$5\r\nhello\r\n"},
		{"empty bulk string", NewBulkString(nil), "$0\r\n\r\n"},
		{"null bulk string", Null, "$-1\r\n"},
		{"empty array", Array{}, "*0\r\n"},
		{"null array", Array(nil), "*-1\r\n"},
		{"nested array", Array{BulkString("a"), Integer(1)}, "*2\r\n$1\r\na\r\n:1\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(Encode(tt.value)); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestDebugString(t *testing.T) {
	tests := []struct {
		value Value
		want  string
	}{
		{Pong, "PONG"},
		{Error("ERR x"), "ERR x"},
		{Integer(3), "3"},
		{BulkString("v"), `"v"`},
		{Null, "(nil)"},
		{Array{BulkString("a"), BulkString("b")}, `["a","b"]`},
	}

	for _, tt := range tests {
		if got := tt.value.String(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}

func TestAppendFrame(t *testing.T) {
	got := string(EncodeFrame(Frame{[]byte("SET"), []byte("k"), nil}))
	want := "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$-1\r\n"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestReadValue(t *testing.T) {
	values := []Value{
		OK,
		Error("WRONGTYPE Operation against a key holding the wrong kind of value"),
		Integer(-12),
		BulkString([]byte{0, '\r', '\n', 1}),
		NewBulkString(nil),
		Null,
		Array{BulkString("a"), Array{Integer(1)}, Null},
		Array(nil),
	}

	var wire []byte
	for _, v := range values {
		wire = v.AppendWire(wire)
	}
	r := bufio.NewReader(bytes.NewReader(wire))

	for i, want := range values {
		got, err := ReadValue(r)
		if err != nil {
			t.Fatalf("value %d: unexpected error %v", i, err)
		}
		if !bytes.Equal(Encode(got), Encode(want)) {
			t.Errorf("value %d: expected %s, got %s", i, want, got)
		}
	}
}

func TestReadValueUnknownType(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte("?what\r\n")))
	if _, err := ReadValue(r); err == nil {
		t.Error("expected error for unknown reply type")
	}
}
