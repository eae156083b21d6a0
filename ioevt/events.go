package ioevt

import "github.com/sandia-minimega/alm/ioevt/raw"

// Event is the common shape of all four I/O state machines: IsDone
// reports whether the status tag is terminal, Advance drives one more
// non-blocking step. The scheduler polls Advance on not-yet-done events;
// it never needs to know which concrete kind it holds.
type Event interface {
	IsDone() bool
	Advance() error
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// --- Input -------------------------------------------------------------

type InputStatus int

const (
	InputPending InputStatus = iota
	InputDone
)

// Input reads exactly n bytes from a File, buffering any surplus the
// underlying raw read returns for later reads.
type Input struct {
	file       *File
	n          int
	raw        *raw.RawInput
	reqn       int
	holdsLatch bool
	status     InputStatus
	result     []byte
}

func newInput(f *File, n int) *Input {
	return &Input{file: f, n: n, status: InputPending}
}

func (in *Input) IsDone() bool { return in.status == InputDone }

func (in *Input) Advance() error { return in.tryFetch() }

// Take returns the bytes read. Only meaningful once IsDone reports true.
func (in *Input) Take() []byte { return in.result }

func (in *Input) releaseLatch() {
	if !in.holdsLatch {
		return
	}
	if prev := in.file.swapUseLock(false); !prev {
		panic("ioevt: Input released a latch it did not hold")
	}
	in.holdsLatch = false
}

// tryFetch implements spec.md §4.3's Input state machine.
func (in *Input) tryFetch() error {
	if in.status == InputDone {
		return nil
	}

	if in.raw == nil && !in.holdsLatch {
		if in.file.swapUseLock(true) {
			return nil // another event owns the file right now
		}
		in.holdsLatch = true
	}

	for {
		if in.raw == nil {
			in.file.ibufMu.Lock()
			if len(in.file.ibuf) >= in.n {
				result := make([]byte, in.n)
				copy(result, in.file.ibuf[:in.n])
				in.file.ibuf = in.file.ibuf[in.n:]
				in.file.ibufMu.Unlock()

				in.result = result
				in.status = InputDone
				in.releaseLatch()
				return nil
			}
			need := maxInt(in.n, in.file.ibufSize) - len(in.file.ibuf)
			in.file.ibufMu.Unlock()

			in.reqn = need
			in.raw = raw.Read(in.file.osFd, need)
		}

		if err := in.raw.Advance(); err != nil {
			return err
		}
		if !in.raw.IsDone() {
			return nil // driving the raw read; resume on next poll
		}

		data := in.raw.Take()
		got, req := len(data), in.reqn
		in.raw = nil

		in.file.ibufMu.Lock()
		in.file.ibuf = append(in.file.ibuf, data...)

		if got < req {
			// The raw read came back short of what was asked for: the
			// descriptor hit EOF. Re-issuing would just observe EOF again
			// and spin forever, so finish with whatever ended up
			// buffered instead of waiting for bytes that will never
			// arrive.
			n := in.n
			if avail := len(in.file.ibuf); avail < n {
				n = avail
			}
			result := make([]byte, n)
			copy(result, in.file.ibuf[:n])
			in.file.ibuf = in.file.ibuf[n:]
			in.file.ibufMu.Unlock()

			in.result = result
			in.status = InputDone
			in.releaseLatch()
			return nil
		}
		in.file.ibufMu.Unlock()
		// loop: re-check whether we now have enough bytes
	}
}

// --- Output --------------------------------------------------------------

type OutputStatus int

const (
	OutputPending OutputStatus = iota
	OutputDone
)

// Output appends data to a File's output buffer, issuing a single raw
// write only once the buffer reaches its declared flush threshold.
type Output struct {
	file       *File
	data       []byte
	raw        *raw.RawOutput
	holdsLatch bool
	status     OutputStatus
}

func newOutput(f *File, data []byte) *Output {
	return &Output{file: f, data: data, status: OutputPending}
}

func (o *Output) IsDone() bool { return o.status == OutputDone }

func (o *Output) Advance() error { return o.tryForward() }

func (o *Output) releaseLatch() {
	if !o.holdsLatch {
		return
	}
	if prev := o.file.swapUseLock(false); !prev {
		panic("ioevt: Output released a latch it did not hold")
	}
	o.holdsLatch = false
}

// tryForward implements spec.md §4.3's Output state machine.
func (o *Output) tryForward() error {
	if o.raw != nil {
		if err := o.raw.Advance(); err != nil {
			return err
		}
		if !o.raw.IsDone() {
			return nil
		}
		o.raw = nil
		o.status = OutputDone
		o.releaseLatch()
		return nil
	}

	if o.status == OutputDone {
		return nil
	}

	if !o.holdsLatch {
		if o.file.swapUseLock(true) {
			return nil
		}
		o.holdsLatch = true
	}

	o.file.obufMu.Lock()
	o.file.obuf = append(o.file.obuf, o.data...)
	o.data = nil
	full := o.file.obufSize > 0 && len(o.file.obuf) >= o.file.obufSize
	var toWrite []byte
	if full {
		toWrite = o.file.obuf
		o.file.obuf = nil
	}
	o.file.obufMu.Unlock()

	if !full {
		o.status = OutputDone
		o.releaseLatch()
		return nil
	}

	o.raw = raw.Write(o.file.osFd, toWrite)
	if err := o.raw.Advance(); err != nil {
		return err
	}
	if !o.raw.IsDone() {
		return nil
	}
	o.raw = nil
	o.status = OutputDone
	o.releaseLatch()
	return nil
}

// --- Flush -----------------------------------------------------------------

type FlushStatus int

const (
	FlushPending FlushStatus = iota
	FlushDoneRead
	FlushDoneAll
)

// Flush drains both the input and output buffers of a File, reporting
// whatever was sitting in either buffer at the moment the latch was
// acquired.
type Flush struct {
	file       *File
	raw        *raw.RawOutput
	holdsLatch bool
	status     FlushStatus
	inputDrain []byte
}

func newFlush(f *File) *Flush {
	return &Flush{file: f, status: FlushPending}
}

func (fl *Flush) IsDone() bool { return fl.status == FlushDoneAll }

func (fl *Flush) Advance() error { return fl.tryFlush() }

// InputDrain returns whatever was sitting in the input buffer when the
// flush acquired the latch; meaningful once status has reached
// FlushDoneRead or later.
func (fl *Flush) InputDrain() []byte { return fl.inputDrain }

func (fl *Flush) releaseLatch() {
	if !fl.holdsLatch {
		return
	}
	if prev := fl.file.swapUseLock(false); !prev {
		panic("ioevt: Flush released a latch it did not hold")
	}
	fl.holdsLatch = false
}

// tryFlush implements spec.md §4.3's Flush state machine.
func (fl *Flush) tryFlush() error {
	if fl.status == FlushDoneAll {
		return nil
	}

	if fl.raw != nil {
		if err := fl.raw.Advance(); err != nil {
			return err
		}
		if !fl.raw.IsDone() {
			return nil
		}
		fl.raw = nil
		fl.status = FlushDoneAll
		fl.releaseLatch()
		return nil
	}

	if !fl.holdsLatch {
		if fl.file.swapUseLock(true) {
			return nil
		}
		fl.holdsLatch = true
	}

	if fl.status == FlushPending {
		fl.file.ibufMu.Lock()
		fl.inputDrain = fl.file.ibuf
		fl.file.ibuf = nil
		fl.file.ibufMu.Unlock()
		fl.status = FlushDoneRead
	}

	fl.file.obufMu.Lock()
	out := fl.file.obuf
	fl.file.obuf = nil
	fl.file.obufMu.Unlock()

	if len(out) == 0 {
		fl.status = FlushDoneAll
		fl.releaseLatch()
		return nil
	}

	fl.raw = raw.Write(fl.file.osFd, out)
	if err := fl.raw.Advance(); err != nil {
		return err
	}
	if !fl.raw.IsDone() {
		return nil
	}
	fl.raw = nil
	fl.status = FlushDoneAll
	fl.releaseLatch()
	return nil
}

// --- Seek --------------------------------------------------------------

type SeekStatus int

const (
	SeekPending SeekStatus = iota
	SeekDone
)

// Seek is terminal by construction: one raw_seek call, releasing the
// latch as soon as it completes. (spec.md §9's open question — the
// observed source never releases the latch on Seek — is resolved here in
// favor of releasing on completion, to avoid permanently wedging the
// file's latch.)
type Seek struct {
	file       *File
	from       raw.SeekFrom
	holdsLatch bool
	status     SeekStatus
	offset     uint64
}

func newSeek(f *File, from raw.SeekFrom) *Seek {
	return &Seek{file: f, from: from, status: SeekPending}
}

func (s *Seek) IsDone() bool { return s.status == SeekDone }

func (s *Seek) Advance() error { return s.trySeek() }

// Offset returns the resulting absolute offset; meaningful once IsDone.
func (s *Seek) Offset() uint64 { return s.offset }

func (s *Seek) trySeek() error {
	if s.status == SeekDone {
		return nil
	}
	if !s.holdsLatch {
		if s.file.swapUseLock(true) {
			return nil
		}
		s.holdsLatch = true
	}

	off, err := raw.Seek(s.file.osFd, s.from)
	if err != nil {
		return err
	}
	s.offset = off
	s.status = SeekDone
	if prev := s.file.swapUseLock(false); !prev {
		panic("ioevt: Seek released a latch it did not hold")
	}
	s.holdsLatch = false
	return nil
}
