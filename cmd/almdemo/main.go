// Command almdemo runs the register-AST program from the walkthrough: add
// two registers, negate a third, then (interactively) let a user poke at
// registers through a line editor instead of the hardcoded program.
package main

import (
	"flag"
	"fmt"
	"io"
	"runtime"
	"strconv"
	"strings"

	"github.com/kr/pty"
	"github.com/peterh/liner"

	"github.com/sandia-minimega/alm/ioevt"
	"github.com/sandia-minimega/alm/ioevt/raw"
	"github.com/sandia-minimega/alm/jit"
	"github.com/sandia-minimega/alm/minilog"
)

func main() {
	interactive := flag.Bool("i", false, "drop into a liner REPL to poke at registers after the demo program runs")
	native := flag.Bool("native", false, "run the compiled amd64 backend instead of the portable interpreter")
	usePty := flag.Bool("pty", false, "open a pseudo-terminal and wire it up as an ioevt.File before running")
	flag.Parse()

	minilog.AddLogger("stdout", io.Discard, minilog.WARN, true)

	if *usePty {
		demoPty()
	}

	ast := []jit.Op{
		jit.Add(jit.A, jit.B),
		jit.Neg(jit.C),
	}
	regs := jit.RegSet{Wa: 5, Wb: 8, Wc: 10, Wd: 0}

	fmt.Printf("%+v\n", regs)

	if *native && runtime.GOARCH == "amd64" {
		regs = runNative(ast, regs)
	} else {
		regs = jit.Interpret(ast, regs)
	}

	fmt.Printf("%+v\n", regs)

	if *interactive {
		repl(regs)
	}
}

func runNative(ast []jit.Op, regs jit.RegSet) jit.RegSet {
	fn, err := jit.Compile(ast)
	if err != nil {
		minilog.Error("native compile failed, falling back to interpreter: %v", err)
		return jit.Interpret(ast, regs)
	}
	defer fn.Close()

	fn.Run(&regs)
	return regs
}

// demoPty opens a pseudo-terminal, wraps the master side as a non-blocking
// ioevt.File, and writes a one-line banner through the event state machine
// so the File's buffered-write path gets exercised outside of a VM.
func demoPty() {
	master, slave, err := pty.Open()
	if err != nil {
		minilog.Error("pty.Open: %v", err)
		return
	}
	defer slave.Close()

	fd, err := raw.SetNonBlocking(int(master.Fd()))
	if err != nil {
		minilog.Error("set nonblocking: %v", err)
		master.Close()
		return
	}

	f := ioevt.FromRaw(fd, ioevt.DflBufSz, ioevt.DflBufSz)
	defer f.Close()

	out := f.Write([]byte("almdemo: pty attached\n"))
	for !out.IsDone() {
		out.Advance()
	}
	fmt.Printf("wrote %d bytes to %s\n", out.Take(), slave.Name())
}

// repl is a minimal line editor loop for inspecting and poking at the
// four registers after the demo program has run. It understands two
// commands: "show" and "set <reg> <value>".
func repl(regs jit.RegSet) {
	input := liner.NewLiner()
	defer input.Close()
	input.SetCtrlCAborts(true)

	fmt.Println("almdemo REPL: 'show', 'set a|b|c|d <value>', ^d to quit")
	for {
		line, err := input.Prompt("almdemo> ")
		if err == liner.ErrPromptAborted {
			continue
		} else if err == io.EOF {
			return
		} else if err != nil {
			minilog.Error("prompt: %v", err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		input.AppendHistory(line)

		fields := strings.Fields(line)
		switch fields[0] {
		case "show":
			fmt.Printf("%+v\n", regs)
		case "set":
			if len(fields) != 3 {
				fmt.Println("usage: set a|b|c|d <value>")
				continue
			}
			v, err := strconv.ParseUint(fields[2], 0, 64)
			if err != nil {
				fmt.Printf("bad value: %v\n", err)
				continue
			}
			switch fields[1] {
			case "a":
				regs.Wa = v
			case "b":
				regs.Wb = v
			case "c":
				regs.Wc = v
			case "d":
				regs.Wd = v
			default:
				fmt.Println("unknown register, want a|b|c|d")
			}
		default:
			fmt.Println("unknown command, want 'show' or 'set'")
		}
	}
}
