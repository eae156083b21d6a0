// Package raw is the non-blocking syscall shim: open/close/read/write/seek
// on OS descriptors, with would-block errors swallowed as "not done yet"
// rather than surfaced as failures. It is grounded on
// golang.org/x/sys/unix rather than the bare syscall package, matching
// the pack's preference for x/sys/unix at the descriptor-syscall layer.
package raw

import (
	"io"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// OsFd is a raw OS file descriptor.
type OsFd = int

// DefaultPerm is the permission bits ("owner rw, group/other r") applied
// to newly created regular files.
const DefaultPerm = unix.S_IRUSR | unix.S_IWUSR | unix.S_IRGRP | unix.S_IROTH

// End selects read-only / write-only / read-write open mode, and append
// behavior for the write-capable modes.
type End struct {
	kind   endKind
	append bool
}

type endKind int

const (
	endRead endKind = iota
	endWrite
	endReadWrite
)

func EndRead() End                 { return End{kind: endRead} }
func EndWrite(append bool) End     { return End{kind: endWrite, append: append} }
func EndReadWrite(append bool) End { return End{kind: endReadWrite, append: append} }

// Create selects creation semantics for Open.
type Create struct {
	kind  createKind
	trunc bool
}

type createKind int

const (
	createNew createKind = iota
	create
	doNotCreate
)

func CreateNew() Create              { return Create{kind: createNew} }
func CreateOrOpen(trunc bool) Create { return Create{kind: create, trunc: trunc} }
func DoNotCreate(trunc bool) Create  { return Create{kind: doNotCreate, trunc: trunc} }

// Open opens path under the given end/create semantics and immediately
// forces the resulting descriptor into non-blocking mode.
func Open(path string, end End, cr Create) (OsFd, error) {
	flags := unix.O_NONBLOCK
	switch end.kind {
	case endRead:
		flags |= unix.O_RDONLY
	case endWrite:
		flags |= unix.O_WRONLY
		if end.append {
			flags |= unix.O_APPEND
		}
	case endReadWrite:
		flags |= unix.O_RDWR
		if end.append {
			flags |= unix.O_APPEND
		}
	}

	var fd int
	var err error
	switch cr.kind {
	case createNew:
		if mkErr := unix.Mknod(path, unix.S_IFREG|DefaultPerm, 0); mkErr != nil {
			return 0, errors.Wrapf(mkErr, "mknod %s", path)
		}
		fd, err = unix.Open(path, flags, DefaultPerm)
	case create:
		if cr.trunc {
			flags |= unix.O_TRUNC
		}
		fd, err = unix.Open(path, flags|unix.O_CREAT, DefaultPerm)
	case doNotCreate:
		if cr.trunc {
			flags |= unix.O_TRUNC
		}
		fd, err = unix.Open(path, flags, DefaultPerm)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "open %s", path)
	}
	return fd, nil
}

// Close is best-effort: it is called exactly once, from File's finalizer
// or explicit Close.
func Close(fd OsFd) error {
	return unix.Close(fd)
}

// SetNonBlocking forces fd into non-blocking mode. Idempotent.
func SetNonBlocking(fd OsFd) (OsFd, error) {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFL, 0)
	if err != nil {
		return 0, errors.Wrap(err, "fcntl F_GETFL")
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFL, flags|unix.O_NONBLOCK); err != nil {
		return 0, errors.Wrap(err, "fcntl F_SETFL")
	}
	return fd, nil
}

func Stdin() (OsFd, error)  { return SetNonBlocking(unix.Stdin) }
func Stdout() (OsFd, error) { return SetNonBlocking(unix.Stdout) }
func Stderr() (OsFd, error) { return SetNonBlocking(unix.Stderr) }

// Event is implemented by RawInput and RawOutput: a single non-blocking
// syscall driven to completion across repeated, non-blocking Advance
// calls.
type Event interface {
	IsDone() bool
	Advance() error
}

// RawInput drives a single non-blocking read of count bytes.
type RawInput struct {
	fd    OsFd
	count int
	read  []byte
}

// Read constructs a pending raw read of count bytes from fd.
func Read(fd OsFd, count int) *RawInput {
	return &RawInput{fd: fd, count: count, read: make([]byte, count)}
}

func (r *RawInput) IsDone() bool { return r.count == 0 }

// Advance issues one non-blocking read syscall. A would-block error is
// swallowed (the event is simply not done yet); any other errno is
// surfaced.
func (r *RawInput) Advance() error {
	if r.IsDone() {
		return nil
	}
	offset := len(r.read) - r.count
	n, err := unix.Read(r.fd, r.read[offset:])
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return nil
		}
		return errors.Wrap(err, "read")
	}
	if n == 0 {
		// EOF: nothing more will ever arrive, so stop waiting for the
		// remaining bytes rather than spin forever.
		r.count = 0
		r.read = r.read[:offset]
		return nil
	}
	r.count -= n
	return nil
}

// Take consumes the event, returning the bytes actually read (which may
// be shorter than requested if EOF was reached first).
func (r *RawInput) Take() []byte {
	return r.read[:len(r.read)-r.count]
}

// RawOutput drives a single non-blocking write of its data.
type RawOutput struct {
	fd      OsFd
	data    []byte
	written int
}

func Write(fd OsFd, data []byte) *RawOutput {
	return &RawOutput{fd: fd, data: data}
}

func (w *RawOutput) IsDone() bool { return w.written >= len(w.data) }

func (w *RawOutput) Advance() error {
	if w.IsDone() {
		return nil
	}
	n, err := unix.Write(w.fd, w.data[w.written:])
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return nil
		}
		return errors.Wrap(err, "write")
	}
	w.written += n
	return nil
}

func (w *RawOutput) Take() int { return w.written }

// SeekWhence selects the reference point for a seek, mirroring Rust's
// std::io::SeekFrom.
type SeekWhence int

const (
	SeekFromStart   SeekWhence = iota // Start(u64): Offset holds the absolute target as a uint64
	SeekFromCurrent                   // Current(i64): relative to the current position
	SeekFromEnd                       // End(i64): relative to EOF
)

// SeekFrom is a seek target; Start is valid only when Whence ==
// SeekFromStart, Relative only otherwise.
type SeekFrom struct {
	Whence   SeekWhence
	Start    uint64
	Relative int64
}

// Seek performs an absolute / relative / from-end seek, supporting 64-bit
// offsets even where the host off_t is narrower by stepping in
// math.MaxInt64-sized chunks and clamping to math.MaxUint64 on overflow.
// Overflow is not an error; any other errno is surfaced.
func Seek(fd OsFd, from SeekFrom) (uint64, error) {
	switch from.Whence {
	case SeekFromCurrent:
		pos, err := unix.Seek(fd, from.Relative, io.SeekCurrent)
		return clampSeek(pos, err)
	case SeekFromEnd:
		pos, err := unix.Seek(fd, from.Relative, io.SeekEnd)
		return clampSeek(pos, err)
	case SeekFromStart:
		if _, err := unix.Seek(fd, 0, io.SeekStart); err != nil {
			return 0, errors.Wrap(err, "seek")
		}
		remaining := from.Start
		var pos int64
		for remaining > 0 {
			step := remaining
			if step > math.MaxInt64 {
				step = math.MaxInt64
			}
			var err error
			pos, err = unix.Seek(fd, int64(step), io.SeekCurrent)
			if err != nil {
				if errors.Is(err, unix.EOVERFLOW) {
					return math.MaxUint64, nil
				}
				return 0, errors.Wrap(err, "seek")
			}
			remaining -= step
		}
		return uint64(pos), nil
	default:
		return 0, errors.Errorf("raw: invalid seek whence %d", from.Whence)
	}
}

func clampSeek(pos int64, err error) (uint64, error) {
	if err != nil {
		if errors.Is(err, unix.EOVERFLOW) {
			return math.MaxUint64, nil
		}
		return 0, errors.Wrap(err, "seek")
	}
	return uint64(pos), nil
}
