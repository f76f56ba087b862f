// Command lox is the REPL and file-runner driver for the interpreter
// in github.com/kristofer/loxvm/pkg/vm.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/kristofer/loxvm/pkg/vm"
)

func main() {
	trace := flag.Bool("trace", false, "print each executed instruction and the value stack to stderr")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "lox - a bytecode interpreter for a small dynamically-typed language")
		fmt.Fprintln(os.Stderr, "\nUsage:")
		fmt.Fprintln(os.Stderr, "  lox [-trace]            Start an interactive REPL")
		fmt.Fprintln(os.Stderr, "  lox [-trace] FILE       Run a lox source file")
	}
	flag.Parse()

	switch flag.NArg() {
	case 0:
		runREPL(*trace)
	case 1:
		runFile(flag.Arg(0), *trace)
	default:
		flag.Usage()
		os.Exit(64)
	}
}

// runREPL reads one line at a time from stdin and interprets it
// against a persistent VM, so variables and functions declared on one
// line remain visible on the next. Compile and runtime errors print
// to stderr but never end the session. The "> " prompt is only worth
// printing when a human is at the other end of stdin; piped input
// (scripts, tests) gets none of the noise.
func runREPL(trace bool) {
	v := vm.New(os.Stdout, os.Stderr)
	v.Trace = trace
	interactive := isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())

	scanner := bufio.NewScanner(os.Stdin)
	if interactive {
		fmt.Print("> ")
	}
	for scanner.Scan() {
		v.Interpret(scanner.Text())
		if interactive {
			fmt.Print("> ")
		}
	}
	if interactive {
		fmt.Println()
	}
}

// runFile interprets an entire source file in one Interpret call and
// exits with the status the spec maps interpret results to.
func runFile(path string, trace bool) {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading '%s': %v\n", path, err)
		os.Exit(74)
	}

	v := vm.New(os.Stdout, os.Stderr)
	v.Trace = trace
	switch v.Interpret(string(source)) {
	case vm.InterpretCompileError:
		os.Exit(65)
	case vm.InterpretRuntimeError:
		os.Exit(70)
	}
}
