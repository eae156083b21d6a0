//go:build !amd64

package jit

import "github.com/pkg/errors"

// CompiledFunc is unused on non-amd64 hosts: there is no native backend
// outside the amd64 encoder in compile_amd64.go. Callers that only need
// the semantics should use Interpret, which is portable.
type CompiledFunc struct{}

// Compile always fails on non-amd64 hosts.
func Compile(ast []Op) (*CompiledFunc, error) {
	return nil, errors.New("jit: native compilation is only implemented for amd64")
}

func (f *CompiledFunc) Run(regs *RegSet) {}

func (f *CompiledFunc) Close() error { return nil }
