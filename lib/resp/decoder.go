package resp

import (
	"bytes"
	"errors"
	"fmt"
)

// Decoder limits. Frames exceeding them are rejected as protocol errors.
const (
	MaxFrameElements = 1024 * 1024       // max elements in one command frame
	MaxBulkLength    = 512 * 1024 * 1024 // max payload of one bulk string
	MaxHeaderLength  = 64 * 1024         // max bytes of an unterminated header line
)

// ErrProtocol is wrapped by every error returned for malformed input.
// Malformed input is never treated as "incomplete": the connection is expected
// to be closed by the caller.
var ErrProtocol = errors.New("protocol error")

func protocolErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

// ExtractFrame tries to decode exactly one command frame from the start of buf.
//
//   - incomplete frame: returns (nil, 0, nil), the caller should wait for more bytes
//   - complete frame:   returns (frame, consumed, nil), the caller must drop the first consumed bytes
//   - malformed input:  returns (nil, 0, err) with err wrapping ErrProtocol
//
// Nothing is consumed until the header and all announced elements are present.
// The returned elements are copies and do not alias buf.
func ExtractFrame(buf []byte) (Frame, int, error) {
	if len(buf) == 0 {
		return nil, 0, nil
	}
	if buf[0] != '*' {
		return nil, 0, protocolErr("expected '*', got %q", buf[0])
	}

	n, pos, ok, err := readLength(buf, 1)
	if err != nil || !ok {
		return nil, 0, err
	}
	if n < 0 || n > MaxFrameElements {
		return nil, 0, protocolErr("invalid multibulk length %d", n)
	}

	// first pass: validate that all elements are present without copying
	type span struct{ start, end int }
	spans := make([]span, 0, min(n, 64))
	for i := 0; i < n; i++ {
		if pos >= len(buf) {
			return nil, 0, nil
		}
		if buf[pos] != '$' {
			return nil, 0, protocolErr("expected '$', got %q", buf[pos])
		}

		l, next, ok, err := readLength(buf, pos+1)
		if err != nil || !ok {
			return nil, 0, err
		}

		// null element
		if l == -1 {
			spans = append(spans, span{-1, -1})
			pos = next
			continue
		}
		if l < 0 || l > MaxBulkLength {
			return nil, 0, protocolErr("invalid bulk length %d", l)
		}

		// payload plus trailing CRLF
		if len(buf)-next < l+2 {
			return nil, 0, nil
		}
		if buf[next+l] != '\r' || buf[next+l+1] != '\n' {
			return nil, 0, protocolErr("bulk string of length %d not terminated by CRLF", l)
		}
		spans = append(spans, span{next, next + l})
		pos = next + l + 2
	}

	// second pass: copy the payloads
	frame := make(Frame, n)
	for i, s := range spans {
		if s.start < 0 {
			continue
		}
		elem := make([]byte, s.end-s.start)
		copy(elem, buf[s.start:s.end])
		frame[i] = elem
	}

	return frame, pos, nil
}

// readLength parses a decimal length terminated by CRLF starting at buf[start].
// It returns the value, the position after the CRLF and whether a full line was present.
func readLength(buf []byte, start int) (int, int, bool, error) {
	idx := bytes.Index(buf[start:], []byte(crlf))
	if idx < 0 {
		if len(buf)-start > MaxHeaderLength {
			return 0, 0, false, protocolErr("header line too long")
		}
		// a stray LF or a non digit means the line will never parse
		if err := checkPartialLength(buf[start:]); err != nil {
			return 0, 0, false, err
		}
		return 0, 0, false, nil
	}

	line := buf[start : start+idx]
	n, err := parseInt(line)
	if err != nil {
		return 0, 0, false, err
	}
	return n, start + idx + 2, true, nil
}

// checkPartialLength rejects a not yet terminated length line early if it
// already contains bytes that cannot be part of a length.
func checkPartialLength(b []byte) error {
	for i, c := range b {
		switch {
		case c >= '0' && c <= '9':
		case c == '-' && i == 0:
		case c == '\r' && i == len(b)-1:
		default:
			return protocolErr("invalid length byte %q", c)
		}
	}
	return nil
}

// parseInt parses an optionally negative decimal number without allocations.
func parseInt(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, protocolErr("empty length")
	}
	neg := false
	if b[0] == '-' {
		neg = true
		b = b[1:]
		if len(b) == 0 {
			return 0, protocolErr("invalid length '-'")
		}
	}
	n := 0
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, protocolErr("invalid length byte %q", c)
		}
		n = n*10 + int(c-'0')
		if n > MaxBulkLength {
			return 0, protocolErr("length out of range")
		}
	}
	if neg {
		n = -n
	}
	return n, nil
}
