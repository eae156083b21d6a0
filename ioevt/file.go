// Package ioevt implements the buffered File and its four non-blocking
// I/O event state machines (Input, Output, Flush, Seek), built on top of
// the ioevt/raw syscall shim.
package ioevt

import (
	"runtime"
	"sync"

	deadlock "github.com/sasha-s/go-deadlock"

	"github.com/sandia-minimega/alm/ioevt/raw"
	"github.com/sandia-minimega/alm/minilog"
)

// DflBufSz is the default I/O buffer size in bytes.
const DflBufSz = 0x800

// File is a shared, reference-counted record owning an OS descriptor plus
// its input and output buffers. The single-user latch (in_use) is a
// test-and-set flag distinct from the buffer locks: it serializes
// ownership of whichever I/O event is currently driving a syscall on this
// file, so two event objects can never interleave bytes on the same
// descriptor.
type File struct {
	osFd raw.OsFd

	inUseMu deadlock.Mutex
	inUse   bool

	ibufMu   deadlock.Mutex
	ibuf     []byte
	ibufSize int

	obufMu   deadlock.Mutex
	obuf     []byte
	obufSize int

	closeOnce sync.Once
}

// FromRaw wraps an already-open, already-non-blocking descriptor. ibufSize
// and obufSize are the declared buffer sizes used to size reads and to
// decide when buffered writes flush.
func FromRaw(fd raw.OsFd, ibufSize, obufSize int) *File {
	f := &File{
		osFd:     fd,
		ibuf:     make([]byte, 0, ibufSize),
		ibufSize: ibufSize,
		obuf:     make([]byte, 0, obufSize),
		obufSize: obufSize,
	}
	runtime.SetFinalizer(f, (*File).finalize)
	return f
}

func (f *File) finalize() { f.Close() }

// Close releases the OS descriptor exactly once, whether invoked
// explicitly or by the finalizer standing in for Rust's Drop.
func (f *File) Close() error {
	var err error
	f.closeOnce.Do(func() {
		runtime.SetFinalizer(f, nil)
		err = raw.Close(f.osFd)
		if err != nil {
			minilog.Error("ioevt: close fd %d: %v", f.osFd, err)
		}
	})
	return err
}

// swapUseLock is an atomic test-and-set on the single-user latch: it
// returns the previous value and installs val. An event that wants to
// drive real I/O must first observe swapUseLock(true) == false; the
// winning event must later call swapUseLock(false) and, in debug builds,
// assert the previous value was true (see releaseLatch on each event
// type).
func (f *File) swapUseLock(val bool) bool {
	f.inUseMu.Lock()
	defer f.inUseMu.Unlock()
	prev := f.inUse
	f.inUse = val
	return prev
}

func (f *File) Read(count int) *Input   { return newInput(f, count) }
func (f *File) Write(data []byte) *Output { return newOutput(f, data) }
func (f *File) Flush() *Flush           { return newFlush(f) }
func (f *File) Seek(from raw.SeekFrom) *Seek { return newSeek(f, from) }

var (
	stdin     *File
	stdinOnce sync.Once
	stdout     *File
	stdoutOnce sync.Once
	stderr     *File
	stderrOnce sync.Once
)

// Stdin, Stdout, Stderr are process-wide standard stream handles,
// memoized on first access via sync.Once (a single-initialization
// pattern visible to all goroutines, per spec.md §9 — never a bare
// mutable global).
func Stdin() *File {
	stdinOnce.Do(func() {
		fd, err := raw.Stdin()
		if err != nil {
			minilog.Fatal("ioevt: stdin: %v", err)
		}
		stdin = FromRaw(fd, 0, 0)
	})
	return stdin
}

func Stdout() *File {
	stdoutOnce.Do(func() {
		fd, err := raw.Stdout()
		if err != nil {
			minilog.Fatal("ioevt: stdout: %v", err)
		}
		stdout = FromRaw(fd, 0, DflBufSz)
	})
	return stdout
}

func Stderr() *File {
	stderrOnce.Do(func() {
		fd, err := raw.Stderr()
		if err != nil {
			minilog.Fatal("ioevt: stderr: %v", err)
		}
		stderr = FromRaw(fd, 0, DflBufSz)
	})
	return stderr
}
