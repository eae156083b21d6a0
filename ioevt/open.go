package ioevt

import "github.com/sandia-minimega/alm/ioevt/raw"

// Opener is a builder for File-opening options, mirroring the original
// source's FdOpener: a path plus end/create semantics and declared buffer
// sizes, finished off with Done().
type Opener struct {
	path   string
	end    raw.End
	create raw.Create
	ibuf   int
	obuf   int
}

// Open starts building an Opener for path, defaulting to read-only,
// do-not-create, with the default input buffer and no output buffer.
func Open(path string) *Opener {
	return &Opener{
		path:   path,
		end:    raw.EndRead(),
		create: raw.DoNotCreate(false),
		ibuf:   DflBufSz,
		obuf:   0,
	}
}

func (o *Opener) Read() *Opener {
	o.end = raw.EndRead()
	o.ibuf, o.obuf = DflBufSz, 0
	return o
}

func (o *Opener) Write() *Opener {
	o.end = raw.EndWrite(false)
	o.ibuf, o.obuf = 0, DflBufSz
	return o
}

func (o *Opener) Append() *Opener {
	o.end = raw.EndWrite(true)
	o.ibuf, o.obuf = 0, DflBufSz
	return o
}

func (o *Opener) ReadWrite() *Opener {
	o.end = raw.EndReadWrite(false)
	o.ibuf, o.obuf = DflBufSz, DflBufSz
	return o
}

func (o *Opener) ReadAppend() *Opener {
	o.end = raw.EndReadWrite(true)
	o.ibuf, o.obuf = DflBufSz, DflBufSz
	return o
}

func (o *Opener) InputBufSize(n int) *Opener  { o.ibuf = n; return o }
func (o *Opener) OutputBufSize(n int) *Opener { o.obuf = n; return o }

func (o *Opener) CreateNew() *Opener     { o.create = raw.CreateNew(); return o }
func (o *Opener) Create() *Opener        { o.create = raw.CreateOrOpen(false); return o }
func (o *Opener) DoNotCreate() *Opener   { o.create = raw.DoNotCreate(false); return o }
func (o *Opener) CreateOrTrunc() *Opener { o.create = raw.CreateOrOpen(true); return o }
func (o *Opener) Trunc() *Opener         { o.create = raw.DoNotCreate(true); return o }

// Done opens the file under the accumulated options.
func (o *Opener) Done() (*File, error) {
	fd, err := raw.Open(o.path, o.end, o.create)
	if err != nil {
		return nil, err
	}
	return FromRaw(fd, o.ibuf, o.obuf), nil
}
