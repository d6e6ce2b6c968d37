package resp

import (
	"bytes"
	"errors"
	"testing"
)

// extractAll feeds input to the decoder in chunks of chunkSize bytes and
// returns every frame it extracts, mimicking the transport read loop.
func extractAll(t *testing.T, input []byte, chunkSize int) []Frame {
	t.Helper()

	var (
		buf    []byte
		frames []Frame
	)
	for off := 0; off < len(input); off += chunkSize {
		end := off + chunkSize
		if end > len(input) {
			end = len(input)
		}
		buf = append(buf, input[off:end]...)

		for {
			frame, n, err := ExtractFrame(buf)
			if err != nil {
				t.Fatalf("unexpected error at offset %d: %v", off, err)
			}
			if n == 0 {
				break
			}
			frames = append(frames, frame)
			buf = buf[n:]
		}
	}

	if len(buf) != 0 {
		t.Fatalf("expected empty buffer after decoding, %d bytes left", len(buf))
	}
	return frames
}

func framesEqual(a, b []Frame) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if (a[i][j] == nil) != (b[i][j] == nil) || !bytes.Equal(a[i][j], b[i][j]) {
				return false
			}
		}
	}
	return true
}

func TestExtractFrameSimple(t *testing.T) {
	input := []byte("*2\r\n$4\r\nECHO\r\n$5\r\nhello\r\n")

	frame, n, err := ExtractFrame(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != len(input) {
		t.Errorf("expected %d consumed bytes, got %d", len(input), n)
	}
	if frame.Name() != "ECHO" || len(frame.Args()) != 1 || string(frame.Args()[0]) != "hello" {
		t.Errorf("unexpected frame %s", frame)
	}
}

func TestExtractFrameEmptyBuffer(t *testing.T) {
	frame, n, err := ExtractFrame(nil)
	if frame != nil || n != 0 || err != nil {
		t.Errorf("expected (nil, 0, nil), got (%v, %d, %v)", frame, n, err)
	}
}

func TestExtractFrameIncomplete(t *testing.T) {
	full := []byte("*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n")

	// every strict prefix must be reported as incomplete and consume nothing
	for i := 0; i < len(full); i++ {
		frame, n, err := ExtractFrame(full[:i])
		if err != nil {
			t.Fatalf("prefix %d: unexpected error %v", i, err)
		}
		if frame != nil || n != 0 {
			t.Fatalf("prefix %d: expected no frame, got %s (%d bytes)", i, frame, n)
		}
	}
}

func TestExtractFramePipelined(t *testing.T) {
	input := []byte("*1\r\n$4\r\nPING\r\n*2\r\n$3\r\nGET\r\n$1\r\nk\r\n")

	frame, n, err := ExtractFrame(input)
	if err != nil {
		t.Fatal(err)
	}
	if frame.Name() != "PING" || n != 14 {
		t.Fatalf("unexpected first frame %s (%d bytes)", frame, n)
	}

	frame, m, err := ExtractFrame(input[n:])
	if err != nil {
		t.Fatal(err)
	}
	if frame.Name() != "GET" || n+m != len(input) {
		t.Fatalf("unexpected second frame %s (%d bytes)", frame, m)
	}
}

func TestExtractFrameBinarySafe(t *testing.T) {
	payload := []byte{0, '\r', '\n', 0xff, '*', '$'}
	input := EncodeFrame(Frame{[]byte("SET"), []byte("bin"), payload})

	frame, n, err := ExtractFrame(input)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(input) {
		t.Errorf("expected %d consumed bytes, got %d", len(input), n)
	}
	if !bytes.Equal(frame[2], payload) {
		t.Errorf("payload mismatch: %q vs %q", frame[2], payload)
	}
}

func TestExtractFrameNullAndEmptyElements(t *testing.T) {
	input := []byte("*3\r\n$3\r\nSET\r\n$-1\r\n$0\r\n\r\n")

	frame, n, err := ExtractFrame(input)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(input) {
		t.Fatalf("expected %d consumed bytes, got %d", len(input), n)
	}
	if frame[1] != nil {
		t.Errorf("expected null element, got %q", frame[1])
	}
	if frame[2] == nil || len(frame[2]) != 0 {
		t.Errorf("expected empty non-null element, got %#v", frame[2])
	}
}

func TestExtractFrameDoesNotAliasBuffer(t *testing.T) {
	input := []byte("*1\r\n$4\r\nPING\r\n")
	frame, _, err := ExtractFrame(input)
	if err != nil {
		t.Fatal(err)
	}
	input[8] = 'X'
	if frame.Name() != "PING" {
		t.Errorf("frame aliases the input buffer: %s", frame)
	}
}

func TestExtractFrameChunkIndependence(t *testing.T) {
	var input []byte
	commands := []Frame{
		NewFrame("PING"),
		NewFrame("SET", "key", "value", "PX", "100"),
		{[]byte("RPUSH"), []byte("list"), {}, []byte{0, 1, 2, '\r', '\n'}},
		NewFrame("LRANGE", "list", "0", "10"),
		{[]byte("ECHO"), nil},
		NewFrame("INCR", "counter"),
	}
	for _, c := range commands {
		input = AppendFrame(input, c)
	}

	whole := extractAll(t, input, len(input))
	if !framesEqual(whole, commands) {
		t.Fatalf("single-chunk decode mismatch: %v", whole)
	}

	for _, size := range []int{1, 2, 3, 5, 7, 13, 64} {
		got := extractAll(t, input, size)
		if !framesEqual(got, whole) {
			t.Errorf("chunk size %d: got %v, want %v", size, got, whole)
		}
	}
}

func TestExtractFrameMalformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"inline command", "PING\r\n"},
		{"non numeric array length", "*x\r\n"},
		{"negative array length", "*-1\r\n"},
		{"non numeric bulk length", "*1\r\n$abc\r\n"},
		{"element not bulk", "*1\r\n+OK\r\n"},
		{"missing payload terminator", "*1\r\n$4\r\nPINGxx"},
		{"invalid bulk length", "*1\r\n$-5\r\n"},
		{"stray LF in partial header", "*1\n"},
		{"garbage before CRLF", "*1a"},
		{"empty length", "*\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, n, err := ExtractFrame([]byte(tt.input))
			if err == nil {
				t.Fatalf("expected protocol error, got frame %v (%d bytes)", frame, n)
			}
			if !errors.Is(err, ErrProtocol) {
				t.Errorf("expected error wrapping ErrProtocol, got %v", err)
			}
			if n != 0 {
				t.Errorf("malformed input must not consume bytes, consumed %d", n)
			}
		})
	}
}

func TestExtractFrameHeaderTooLong(t *testing.T) {
	input := append([]byte("*"), bytes.Repeat([]byte("1"), MaxHeaderLength+1)...)
	if _, _, err := ExtractFrame(input); !errors.Is(err, ErrProtocol) {
		t.Errorf("expected protocol error for overlong header, got %v", err)
	}
}

func TestExtractFrameEmptyArray(t *testing.T) {
	frame, n, err := ExtractFrame([]byte("*0\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 || len(frame) != 0 {
		t.Errorf("expected empty frame consuming 4 bytes, got %v (%d)", frame, n)
	}
}
