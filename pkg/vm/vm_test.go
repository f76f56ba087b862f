package vm

import (
	"bytes"
	"strings"
	"testing"
)

func run(t *testing.T, source string) (stdout, stderr string, result InterpretResult) {
	t.Helper()
	var out, err bytes.Buffer
	v := New(&out, &err)
	result = v.Interpret(source)
	return out.String(), err.String(), result
}

func TestArithmeticExpression(t *testing.T) {
	out, _, result := run(t, "print 1 + 2 * 3;")
	if result != InterpretOK {
		t.Fatalf("result = %v, want OK", result)
	}
	if out != "7\n" {
		t.Errorf("stdout = %q, want %q", out, "7\n")
	}
}

func TestStringConcatenation(t *testing.T) {
	out, _, result := run(t, `print "foo" + "bar";`)
	if result != InterpretOK {
		t.Fatalf("result = %v, want OK", result)
	}
	if out != "foobar\n" {
		t.Errorf("stdout = %q, want %q", out, "foobar\n")
	}
}

func TestBlockScopingAndShadowing(t *testing.T) {
	out, _, result := run(t, `var x = 1; { var x = 2; print x; } print x;`)
	if result != InterpretOK {
		t.Fatalf("result = %v, want OK", result)
	}
	if out != "2\n1\n" {
		t.Errorf("stdout = %q, want %q", out, "2\n1\n")
	}
}

func TestRecursiveFibonacci(t *testing.T) {
	src := `fun fib(n) { if (n < 2) return n; return fib(n-1) + fib(n-2); } print fib(10);`
	out, _, result := run(t, src)
	if result != InterpretOK {
		t.Fatalf("result = %v, want OK", result)
	}
	if out != "55\n" {
		t.Errorf("stdout = %q, want %q", out, "55\n")
	}
}

func TestClosureCapturesUpvalueAcrossCalls(t *testing.T) {
	src := `
	fun makeCounter() {
		var i = 0;
		fun count() {
			i = i + 1;
			print i;
		}
		return count;
	}
	var c = makeCounter();
	c(); c(); c();
	`
	out, _, result := run(t, src)
	if result != InterpretOK {
		t.Fatalf("result = %v, want OK", result)
	}
	if out != "1\n2\n3\n" {
		t.Errorf("stdout = %q, want %q", out, "1\n2\n3\n")
	}
}

func TestClosuresOverLoopVariableAreDistinct(t *testing.T) {
	src := `
	var closures = nil;
	fun make() {
		var fns = nil;
		for (var i = 1; i <= 3; i = i + 1) {
			var captured = i;
			fun show() { print captured; }
			if (fns == nil) { fns = show; } else { show(); }
		}
		return fns;
	}
	var first = make();
	first();
	`
	out, _, result := run(t, src)
	if result != InterpretOK {
		t.Fatalf("result = %v, want OK", result)
	}
	// Each iteration's `captured` is a distinct local, so closures over it
	// must not all observe the final value once their scope has closed.
	if out != "2\n3\n1\n" {
		t.Errorf("stdout = %q, want %q", out, "2\n3\n1\n")
	}
}

func TestRuntimeTypeErrorOnAddStringAndNumber(t *testing.T) {
	_, errOut, result := run(t, `print 1 + "a";`)
	if result != InterpretRuntimeError {
		t.Fatalf("result = %v, want RuntimeError", result)
	}
	if !strings.Contains(errOut, "Operands must be two numbers or two strings.") {
		t.Errorf("stderr = %q, missing type error message", errOut)
	}
	if !strings.Contains(errOut, "[line 1] in script") {
		t.Errorf("stderr = %q, missing stack trace line", errOut)
	}
}

func TestUndefinedGlobalIsRuntimeError(t *testing.T) {
	_, errOut, result := run(t, "print nope;")
	if result != InterpretRuntimeError {
		t.Fatalf("result = %v, want RuntimeError", result)
	}
	if !strings.Contains(errOut, "Undefined variable 'nope'.") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestAssignToUndefinedGlobalLeavesNoZombie(t *testing.T) {
	var errBuf bytes.Buffer
	v := New(&bytes.Buffer{}, &errBuf)
	result := v.Interpret("x = 1;")
	errOut := errBuf.String()
	if result != InterpretRuntimeError {
		t.Fatalf("result = %v, want RuntimeError", result)
	}
	if !strings.Contains(errOut, "Undefined variable 'x'.") {
		t.Errorf("stderr = %q", errOut)
	}
	// The failed assignment must not leave x defined for a later program.
	if result := v.Interpret("print x;"); result != InterpretRuntimeError {
		t.Errorf("reading x after failed assignment: result = %v, want RuntimeError", result)
	}
}

func TestCallArityMismatch(t *testing.T) {
	_, errOut, result := run(t, "fun f(a, b) { return a + b; } f(1);")
	if result != InterpretRuntimeError {
		t.Fatalf("result = %v, want RuntimeError", result)
	}
	if !strings.Contains(errOut, "Expected 2 arguments but got 1.") {
		t.Errorf("stderr = %q", errOut)
	}
}

func TestCompileErrorShortCircuitsExecution(t *testing.T) {
	_, _, result := run(t, "1 +;")
	if result != InterpretCompileError {
		t.Fatalf("result = %v, want CompileError", result)
	}
}

func TestGlobalsPersistAcrossInterpretCalls(t *testing.T) {
	var out bytes.Buffer
	v := New(&out, &bytes.Buffer{})
	if result := v.Interpret("var x = 1;"); result != InterpretOK {
		t.Fatalf("first Interpret = %v", result)
	}
	if result := v.Interpret("print x;"); result != InterpretOK {
		t.Fatalf("second Interpret = %v", result)
	}
	if out.String() != "1\n" {
		t.Errorf("stdout = %q, want %q", out.String(), "1\n")
	}
}

func TestClockNativeReturnsNumber(t *testing.T) {
	out, _, result := run(t, "print clock() >= 0;")
	if result != InterpretOK {
		t.Fatalf("result = %v, want OK", result)
	}
	if out != "true\n" {
		t.Errorf("stdout = %q, want %q", out, "true\n")
	}
}
