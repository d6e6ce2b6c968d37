package aof

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ValentinKolb/respkv/lib/resp"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("aof")

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	// ErrCorrupt is returned by Replay when the log contains bytes that are not
	// a valid command frame or a frame whose replay produced an error reply.
	ErrCorrupt = errors.New("log corruption")

	// ErrTruncated is returned by Replay when the log ends in the middle of a
	// frame, e.g. after a crash during a write. It wraps ErrCorrupt.
	ErrTruncated = fmt.Errorf("%w: truncated frame at end of log", ErrCorrupt)

	// ErrClosed is returned by LogCommand after Close
	ErrClosed = errors.New("log is closed")
)

// replayChunkSize is the number of bytes read from the log per read call
const replayChunkSize = 4 * 1024

// --------------------------------------------------------------------------
// Persister
// --------------------------------------------------------------------------

// Options configures a Persister
type Options struct {
	Fsync bool // Sync the file after every logged command
}

// Persister appends committed mutating commands to a log file in the RESP
// frame encoding. A log is therefore a valid client stream and can be replayed
// by feeding it through the same decoder the server uses.
type Persister struct {
	mu    sync.Mutex
	file  *os.File
	path  string
	opts  Options
	buf   []byte // reused encode buffer
	bytes int64  // bytes written since open
}

// Open opens (and creates if missing) the log at path for appending.
func Open(path string, opts Options) (*Persister, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log %s: %w", path, err)
	}

	Logger.Infof("opened log %s (fsync=%t)", path, opts.Fsync)

	return &Persister{
		file: file,
		path: path,
		opts: opts,
	}, nil
}

// LogCommand appends frame to the log. The frame is encoded into one buffer
// and written with a single write call so that a crash leaves at most one
// partial frame at the end of the file.
//
// Thread-safety: This method is thread-safe. Callers that need the log order to
// match the order in which commands were applied must serialize both steps themselves.
func (p *Persister) LogCommand(frame resp.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return ErrClosed
	}

	p.buf = resp.AppendFrame(p.buf[:0], frame)

	n, err := p.file.Write(p.buf)
	p.bytes += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write to log %s: %w", p.path, err)
	}

	if p.opts.Fsync {
		if err := p.file.Sync(); err != nil {
			return fmt.Errorf("failed to sync log %s: %w", p.path, err)
		}
	}

	return nil
}

// Path returns the path of the log file
func (p *Persister) Path() string {
	return p.path
}

// BytesWritten returns the number of bytes appended since Open
func (p *Persister) BytesWritten() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bytes
}

// Close syncs and closes the log file. Closing twice is a no-op.
func (p *Persister) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return nil
	}

	syncErr := p.file.Sync()
	closeErr := p.file.Close()
	p.file = nil

	if syncErr != nil {
		return fmt.Errorf("failed to sync log %s: %w", p.path, syncErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close log %s: %w", p.path, closeErr)
	}
	return nil
}

// --------------------------------------------------------------------------
// Replay
// --------------------------------------------------------------------------

// ReplayStats describes the outcome of a replay
type ReplayStats struct {
	Frames int   // Number of frames applied
	Bytes  int64 // Number of bytes consumed by applied frames
}

// Replay reads command frames from r and calls apply for each of them in log order.
//
// Replay stops at the first problem and returns an error wrapping ErrCorrupt:
//   - bytes that can not be decoded as a frame
//   - a frame for which apply returns an error reply
//   - an incomplete frame at the end of the input (ErrTruncated)
//
// Frames applied before the problem stay applied. The returned stats always
// describe the applied prefix of the log.
func Replay(r io.Reader, apply func(frame resp.Frame) resp.Value) (ReplayStats, error) {
	var (
		stats ReplayStats
		buf   []byte
		chunk = make([]byte, replayChunkSize)
	)

	for {
		n, readErr := r.Read(chunk)
		buf = append(buf, chunk[:n]...)

		// apply every complete frame in the buffer
		for {
			frame, consumed, err := resp.ExtractFrame(buf)
			if err != nil {
				return stats, fmt.Errorf("%w: frame %d at offset %d: %v", ErrCorrupt, stats.Frames, stats.Bytes, err)
			}
			if consumed == 0 {
				break
			}

			if len(frame) > 0 {
				if reply := apply(frame); resp.IsError(reply) {
					return stats, fmt.Errorf("%w: frame %d (%s) at offset %d failed: %s",
						ErrCorrupt, stats.Frames, frame.Name(), stats.Bytes, reply)
				}
				stats.Frames++
			}

			stats.Bytes += int64(consumed)
			buf = buf[consumed:]
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return stats, fmt.Errorf("failed to read log: %w", readErr)
		}
	}

	if len(buf) > 0 {
		return stats, fmt.Errorf("%w (%d dangling bytes at offset %d)", ErrTruncated, len(buf), stats.Bytes)
	}

	return stats, nil
}

// ReplayFile replays the log at path. A missing file is an empty log.
func ReplayFile(path string, apply func(frame resp.Frame) resp.Value) (ReplayStats, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		Logger.Infof("no log found at %s, starting with an empty store", path)
		return ReplayStats{}, nil
	}
	if err != nil {
		return ReplayStats{}, fmt.Errorf("failed to open log %s: %w", path, err)
	}
	defer file.Close()

	stats, err := Replay(file, apply)
	if err != nil {
		return stats, fmt.Errorf("replay of %s failed: %w", path, err)
	}

	Logger.Infof("replayed %d commands (%d bytes) from %s", stats.Frames, stats.Bytes, path)
	return stats, nil
}

// --------------------------------------------------------------------------
// Recovery
// --------------------------------------------------------------------------

// SplitCorrupt moves everything after offset (the valid prefix reported by
// Replay) into a new file next to the log and truncates the log to offset.
// The records after the corruption are kept in the returned file.
// If the log ends at offset nothing is moved and tailPath is empty.
func SplitCorrupt(path string, offset int64) (tailPath string, err error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return "", fmt.Errorf("failed to open log %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat log %s: %w", path, err)
	}
	if offset < 0 || offset > info.Size() {
		return "", fmt.Errorf("offset %d outside of log %s (%d bytes)", offset, path, info.Size())
	}
	if offset == info.Size() {
		return "", nil
	}

	// the tail must be durable before the log loses it
	tailPath = fmt.Sprintf("%s.corrupt-%d", path, offset)
	tail, err := os.OpenFile(tailPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", tailPath, err)
	}
	_, copyErr := io.Copy(tail, io.NewSectionReader(file, offset, info.Size()-offset))
	syncErr := tail.Sync()
	closeErr := tail.Close()
	if err := errors.Join(copyErr, syncErr, closeErr); err != nil {
		return "", fmt.Errorf("failed to save corrupt tail to %s: %w", tailPath, err)
	}

	if err := file.Truncate(offset); err != nil {
		return tailPath, fmt.Errorf("failed to truncate log %s: %w", path, err)
	}
	if err := file.Sync(); err != nil {
		return tailPath, fmt.Errorf("failed to sync log %s: %w", path, err)
	}

	Logger.Warningf("moved %d bytes after offset %d of %s to %s", info.Size()-offset, offset, path, tailPath)
	return tailPath, nil
}
