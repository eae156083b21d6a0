//go:build amd64

package jit

import (
	"bytes"
	"encoding/binary"
	"runtime"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// hostReg maps each virtual register to the low-three-bit encoding of the
// amd64 general-purpose register backing it: A→RAX(0), B→RBX(3),
// C→RCX(1), D→RDX(2). None of the four need a REX extension bit.
var hostReg = [4]byte{0, 3, 1, 2}

// ptrReg is R11: the scratch register the prelude copies the incoming
// RegSet pointer into, freeing up RAX to double as virtual register A for
// the body. It is never written back and never exposed to the caller.
const ptrReg = 3 // R11's low three bits; REX.B selects the extended half

func emitREX(buf *bytes.Buffer, w, b bool) {
	rex := byte(0x40)
	if w {
		rex |= 0x08
	}
	if b {
		rex |= 0x01
	}
	buf.WriteByte(rex)
}

func modRM(mod, reg, rm byte) byte {
	return mod<<6 | (reg&7)<<3 | (rm & 7)
}

// emitSavePtr emits "mov r11, rax": on entry, Go's amd64 internal ABI
// passes the function's first pointer argument in RAX, so the prelude
// must rescue it into a scratch register before RAX is repurposed as
// virtual register A.
func emitSavePtr(buf *bytes.Buffer) {
	emitREX(buf, true, true)
	buf.WriteByte(0x89)
	buf.WriteByte(modRM(0b11, 0, ptrReg))
}

// emitLoad emits "mov hostReg[w], [r11+w*8]".
func emitLoad(buf *bytes.Buffer, w WordReg) {
	emitREX(buf, true, true)
	buf.WriteByte(0x8B)
	buf.WriteByte(modRM(0b01, hostReg[w], ptrReg))
	buf.WriteByte(byte(w) * 8)
}

// emitStore emits "mov [r11+w*8], hostReg[w]".
func emitStore(buf *bytes.Buffer, w WordReg) {
	emitREX(buf, true, true)
	buf.WriteByte(0x89)
	buf.WriteByte(modRM(0b01, hostReg[w], ptrReg))
	buf.WriteByte(byte(w) * 8)
}

func emitAdd(buf *bytes.Buffer, dst, src WordReg) {
	emitREX(buf, true, false)
	buf.WriteByte(0x01)
	buf.WriteByte(modRM(0b11, hostReg[src], hostReg[dst]))
}

func emitNeg(buf *bytes.Buffer, dst WordReg) {
	emitREX(buf, true, false)
	buf.WriteByte(0xF7)
	buf.WriteByte(modRM(0b11, 3, hostReg[dst])) // opcode extension /3 selects NEG
}

func emitMovReg(buf *bytes.Buffer, dst, src WordReg) {
	emitREX(buf, true, false)
	buf.WriteByte(0x89)
	buf.WriteByte(modRM(0b11, hostReg[src], hostReg[dst]))
}

func emitImmMov(buf *bytes.Buffer, dst WordReg, imm uint64) {
	emitREX(buf, true, false)
	buf.WriteByte(0xB8 + hostReg[dst])
	var lit [8]byte
	binary.LittleEndian.PutUint64(lit[:], imm)
	buf.Write(lit[:])
}

// assemble lowers ast to a straight-line byte sequence: prelude (rescue
// the pointer, load all four registers), body, postlude (store all four
// registers), ret.
func assemble(ast []Op) []byte {
	var buf bytes.Buffer

	emitSavePtr(&buf)
	for _, w := range [...]WordReg{A, B, C, D} {
		emitLoad(&buf, w)
	}

	for _, op := range ast {
		switch op.Kind {
		case OpAdd:
			emitAdd(&buf, op.Dst, op.Src)
		case OpNeg:
			emitNeg(&buf, op.Dst)
		case OpMov:
			emitMovReg(&buf, op.Dst, op.Src)
		case OpImmMov:
			emitImmMov(&buf, op.Dst, op.Imm)
		}
	}

	for _, w := range [...]WordReg{A, B, C, D} {
		emitStore(&buf, w)
	}
	buf.WriteByte(0xC3) // ret

	return buf.Bytes()
}

// CompiledFunc owns a page of W^X-protected executable memory holding
// one assembled function. It is released exactly once, on Close or on
// the finalizer standing in for it, mirroring spec.md §5's "executable
// code buffers own their pages and release them on drop".
type CompiledFunc struct {
	mem       []byte
	closeOnce sync.Once
}

// Compile assembles ast and maps it into executable memory. Resource
// exhaustion during the mmap/mprotect calls is the only failure mode and
// is fatal for the caller, per spec.
func Compile(ast []Op) (*CompiledFunc, error) {
	code := assemble(ast)

	mem, err := unix.Mmap(-1, 0, len(code), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, errors.Wrap(err, "jit: mmap executable buffer")
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		unix.Munmap(mem)
		return nil, errors.Wrap(err, "jit: mprotect executable buffer")
	}

	f := &CompiledFunc{mem: mem}
	runtime.SetFinalizer(f, (*CompiledFunc).finalize)
	return f, nil
}

func (f *CompiledFunc) finalize() { f.Close() }

// Close unmaps the executable buffer. Safe to call more than once.
func (f *CompiledFunc) Close() error {
	var err error
	f.closeOnce.Do(func() {
		runtime.SetFinalizer(f, nil)
		err = unix.Munmap(f.mem)
	})
	return err
}

// Run invokes the compiled function against regs in place. The cast from
// a raw code pointer to a Go func value relies on Go's amd64 internal
// ABI passing the sole pointer argument in RAX — see emitSavePtr.
//
// A Go func value is itself a pointer to a structure whose first word is
// the entry address, so the cast needs two levels of indirection: code
// points at the instructions, and the funcval must point at code, not at
// the instructions directly.
func (f *CompiledFunc) Run(regs *RegSet) {
	type fn func(*RegSet)
	var call fn
	code := &f.mem[0]
	target := (*unsafe.Pointer)(unsafe.Pointer(&call))
	*target = unsafe.Pointer(&code)
	call(regs)
}
