// Package value implements the VM's tagged-union Value taxonomy: Nil,
// Byte, IWord, UWord, I64, U64, F64, Array, Tuple, Function, Edi, and
// Extension (an opaque payload). Compound payloads (Array, Tuple,
// Function) are immutable once constructed and shared by reference, so
// copying a Value never copies the underlying bytes.
package value

import "github.com/sandia-minimega/alm/edi"

// Type is the tag of a Value or ArrayType.
type Type int

const (
	TypeNil Type = iota
	TypeByte
	TypeIWord
	TypeUWord
	TypeI64
	TypeU64
	TypeF64
	TypeArray
	TypeTuple
	TypeFunction
	TypeEdi
	TypeExtension
)

// Typed is implemented by anything that carries a Type tag.
type Typed interface {
	TypeCode() Type
}

// Value is the tagged union every VM register and channel message holds.
// Exactly one of the typed fields below is meaningful, selected by Tag.
type Value struct {
	tag  Type
	b    byte
	iw   int
	uw   uint
	i64  int64
	u64  uint64
	f64  float64
	arr  Array
	tup  Tuple
	fn   Function
	edi  edi.Edi
	ext  any
}

func Nil() Value                { return Value{tag: TypeNil} }
func FromByte(b byte) Value     { return Value{tag: TypeByte, b: b} }
func FromIWord(w int) Value     { return Value{tag: TypeIWord, iw: w} }
func FromUWord(w uint) Value    { return Value{tag: TypeUWord, uw: w} }
func FromI64(v int64) Value     { return Value{tag: TypeI64, i64: v} }
func FromU64(v uint64) Value    { return Value{tag: TypeU64, u64: v} }
func FromF64(v float64) Value   { return Value{tag: TypeF64, f64: v} }
func FromArray(a Array) Value   { return Value{tag: TypeArray, arr: a} }
func FromTuple(t Tuple) Value   { return Value{tag: TypeTuple, tup: t} }
func FromFunction(f Function) Value { return Value{tag: TypeFunction, fn: f} }
func FromEdi(e edi.Edi) Value   { return Value{tag: TypeEdi, edi: e} }
func FromExtension(p any) Value { return Value{tag: TypeExtension, ext: p} }

func (v Value) TypeCode() Type { return v.tag }

func (v Value) Byte() (byte, bool)      { return v.b, v.tag == TypeByte }
func (v Value) IWord() (int, bool)      { return v.iw, v.tag == TypeIWord }
func (v Value) UWord() (uint, bool)     { return v.uw, v.tag == TypeUWord }
func (v Value) I64() (int64, bool)      { return v.i64, v.tag == TypeI64 }
func (v Value) U64() (uint64, bool)     { return v.u64, v.tag == TypeU64 }
func (v Value) F64() (float64, bool)    { return v.f64, v.tag == TypeF64 }
func (v Value) Array() (Array, bool)    { return v.arr, v.tag == TypeArray }
func (v Value) Tuple() (Tuple, bool)    { return v.tup, v.tag == TypeTuple }
func (v Value) Function() (Function, bool) { return v.fn, v.tag == TypeFunction }
func (v Value) Edi() (edi.Edi, bool)    { return v.edi, v.tag == TypeEdi }
func (v Value) Extension() (any, bool)  { return v.ext, v.tag == TypeExtension }

// ArrayType tags the homogeneous element type of an Array, carrying the
// shared backing slice for every variant except Nil (which only carries a
// length, matching the original's ArrayType::Nil(usize) placeholder for
// an array of nil values).
type ArrayType struct {
	tag      Type
	nilLen   int
	bytes    []byte
	iwords   []int
	uwords   []uint
	i64s     []int64
	u64s     []uint64
	f64s     []float64
	arrays   []Array
	tuples   []Tuple
	funcs    []Function
	exts     []any
}

func (t *ArrayType) TypeCode() Type { return t.tag }

func NilArrayType(n int) *ArrayType          { return &ArrayType{tag: TypeNil, nilLen: n} }
func ByteArrayType(b []byte) *ArrayType       { return &ArrayType{tag: TypeByte, bytes: b} }
func IWordArrayType(w []int) *ArrayType       { return &ArrayType{tag: TypeIWord, iwords: w} }
func UWordArrayType(w []uint) *ArrayType      { return &ArrayType{tag: TypeUWord, uwords: w} }
func I64ArrayType(v []int64) *ArrayType       { return &ArrayType{tag: TypeI64, i64s: v} }
func U64ArrayType(v []uint64) *ArrayType      { return &ArrayType{tag: TypeU64, u64s: v} }
func F64ArrayType(v []float64) *ArrayType     { return &ArrayType{tag: TypeF64, f64s: v} }
func ArrayArrayType(v []Array) *ArrayType     { return &ArrayType{tag: TypeArray, arrays: v} }
func TupleArrayType(v []Tuple) *ArrayType     { return &ArrayType{tag: TypeTuple, tuples: v} }
func FunctionArrayType(v []Function) *ArrayType { return &ArrayType{tag: TypeFunction, funcs: v} }
func ExtensionArrayType(v []any) *ArrayType   { return &ArrayType{tag: TypeExtension, exts: v} }

// Array is a shared, immutable, homogeneous sequence of values, tagged by
// its element type.
type Array struct {
	memory *ArrayType
}

// NewArray wraps an ArrayType as a shareable Array value. A nil memory
// pointer denotes the zero-length Nil-typed array used to seed an
// uninitialized register slot.
func NewArray(t *ArrayType) Array {
	if t == nil {
		t = NilArrayType(0)
	}
	return Array{memory: t}
}

func (a Array) TypeCode() Type { return a.memory.TypeCode() }
func (a Array) Type() *ArrayType { return a.memory }

// Tuple is a shared, immutable, heterogeneous sequence of values.
type Tuple struct {
	elems []Value
}

func NewTuple(elems []Value) Tuple { return Tuple{elems: elems} }

func (t Tuple) Len() int        { return len(t.elems) }
func (t Tuple) At(i int) Value  { return t.elems[i] }
func (t Tuple) TypeCode() Type  { return TypeTuple }

// functionInner is the shared, immutable body of a Function: its closure
// environment, compiled bytecode, and name. Function equality is
// reference equality of this record, not structural equality of its
// fields.
type functionInner struct {
	env  Value
	bc   []byte
	name []byte
}

// Function is a (environment, bytecode, name) triple shared by pointer.
// The bytecode's own instruction set is opaque to this package and to the
// VM core: see spec.md §9, "the bytecode interpreter that consumes
// Function.bc is not defined by this core".
type Function struct {
	memory *functionInner
}

func NewFunction(env Value, bc []byte, name []byte) Function {
	return Function{memory: &functionInner{env: env, bc: bc, name: name}}
}

func (f Function) Env() Value    { return f.memory.env }
func (f Function) Bytecode() []byte { return f.memory.bc }
func (f Function) Name() []byte  { return f.memory.name }
func (f Function) TypeCode() Type { return TypeFunction }

// Equal reports reference equality: the two Functions share the same
// underlying record.
func (f Function) Equal(o Function) bool { return f.memory == o.memory }

// NoOp is the "@<no op>" placeholder function a freshly constructed
// register slot holds before a process has a real start function.
func NoOp() Function {
	return NewFunction(Nil(), nil, []byte("@<no op>"))
}
