package resp

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// ReadValue reads one complete reply of any type from r.
// It is the client-side counterpart of ExtractFrame and blocks until the value is complete.
func ReadValue(r *bufio.Reader) (Value, error) {
	prefix, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	line, err := readLine(r)
	if err != nil {
		return nil, err
	}

	switch prefix {
	case '+':
		return SimpleString(line), nil
	case '-':
		return Error(line), nil
	case ':':
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, protocolErr("invalid integer %q", line)
		}
		return Integer(n), nil
	case '$':
		l, err := parseInt([]byte(line))
		if err != nil {
			return nil, err
		}
		if l == -1 {
			return Null, nil
		}
		if l < 0 {
			return nil, protocolErr("invalid bulk length %d", l)
		}
		data := make([]byte, l+2)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}
		if data[l] != '\r' || data[l+1] != '\n' {
			return nil, protocolErr("bulk string of length %d not terminated by CRLF", l)
		}
		return BulkString(data[:l:l]), nil
	case '*':
		n, err := parseInt([]byte(line))
		if err != nil {
			return nil, err
		}
		if n == -1 {
			return Array(nil), nil
		}
		if n < 0 || n > MaxFrameElements {
			return nil, protocolErr("invalid multibulk length %d", n)
		}
		arr := make(Array, n)
		for i := range arr {
			if arr[i], err = ReadValue(r); err != nil {
				return nil, err
			}
		}
		return arr, nil
	default:
		return nil, protocolErr("unknown reply type %q", prefix)
	}
}

// readLine reads up to CRLF and returns the line without the terminator.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return "", fmt.Errorf("%w: line not terminated by CRLF", ErrProtocol)
	}
	return line[:len(line)-2], nil
}
