//go:build amd64

package jit

import "testing"

// TestCompileRunMatchesInterpret is testable property 8: the native
// backend and the portable reference interpreter must agree on every
// AST and initial register block.
func TestCompileRunMatchesInterpret(t *testing.T) {
	cases := []struct {
		name string
		ast  []Op
		regs RegSet
	}{
		{
			name: "AddNeg",
			ast:  []Op{Add(A, B), Neg(C)},
			regs: RegSet{Wa: 5, Wb: 8, Wc: 10, Wd: 0},
		},
		{
			name: "ImmMov",
			ast:  []Op{ImmMov(D, 0x1234), Mov(A, D)},
			regs: RegSet{},
		},
		{
			name: "AddWraps",
			ast:  []Op{Add(A, B)},
			regs: RegSet{Wa: 0xFFFFFFFFFFFFFFFF, Wb: 2},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			want := Interpret(c.ast, c.regs)

			fn, err := Compile(c.ast)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			defer fn.Close()

			got := c.regs
			fn.Run(&got)

			if got != want {
				t.Errorf("Run(%s) = %+v, want %+v (from Interpret)", c.name, got, want)
			}
		})
	}
}
