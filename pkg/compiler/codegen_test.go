package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func generate(t *testing.T, src string) (string, error) {
	t.Helper()
	prog, err := parseSource(t, src)
	be.Err(t, err, nil)
	return Generate(prog, nil)
}

func mustGenerate(t *testing.T, src string) string {
	t.Helper()
	out, err := generate(t, src)
	be.Err(t, err, nil)
	return out
}

// section returns the lines from label: up to the next function label.
func section(out, label string, stopAt ...string) []string {
	lines := strings.Split(out, "\n")
	var got []string
	in := false
	for _, l := range lines {
		if l == label+":" {
			in = true
			continue
		}
		if in {
			for _, s := range stopAt {
				if l == s+":" {
					return got
				}
			}
			got = append(got, l)
		}
	}
	return got
}

func TestGeneratePrologue(t *testing.T) {
	out := mustGenerate(t, "function main() { return 0; }")
	be.True(t, strings.HasPrefix(out, "ORG 0\nB main\nSP     EQU     R6\nstack  DATA    0x1200\n\n"))
}

func TestGenerateMainLayout(t *testing.T) {
	out := mustGenerate(t, "function main() { return 7; }")
	want := `ORG 0
B main
SP     EQU     R6
stack  DATA    0x1200

main:
MOV R1, #0
MOV R2, #0
MOV R3, #0
MOV R4, #0
MOV R5, #0
LD SP, [R0, #stack]
LD R1, [PC, #1]
ADD PC, PC, #1
DEFW 7
LD PC, [PC, #0]
DEFW __end
__end:
B __end
`
	be.Equal(t, out, want)
}

func TestGenerateLocalLoads(t *testing.T) {
	out := mustGenerate(t, "function main() { int x = 1; int y = x; return y; }")
	body := section(out, "main", endLabel)
	want := []string{
		"MOV R1, #0", "MOV R2, #0", "MOV R3, #0", "MOV R4, #0", "MOV R5, #0",
		"LD SP, [R0, #stack]",
		"LD R1, [PC, #1]", "ADD PC, PC, #1", "DEFW 1",
		"ST R1, [SP]", "ADD SP, SP, #1",
		"LD R1, [SP, #-1]",
		"ST R1, [SP]", "ADD SP, SP, #1",
		"LD R1, [SP, #-1]",
		"LD PC, [PC, #0]", "DEFW __end",
	}
	be.Equal(t, body, want)
}

func TestGenerateFunctionOrder(t *testing.T) {
	out := mustGenerate(t, "function a() { return 1; }\nfunction main() { return a(); }\nfunction b() { return 2; }")
	iMain := strings.Index(out, "\nmain:\n")
	iEnd := strings.Index(out, "\n__end:\n")
	iA := strings.Index(out, "\na:\n")
	iB := strings.Index(out, "\nb:\n")
	be.True(t, iMain > 0)
	be.True(t, iMain < iEnd)
	be.True(t, iEnd < iA)
	be.True(t, iA < iB)
}

func TestGenerateCallAndReturn(t *testing.T) {
	out := mustGenerate(t, "function inc(n) { return n + 1; }\nfunction main() { int x = 4; return inc(x); }")

	mainBody := strings.Join(section(out, "main", endLabel), "\n")
	be.True(t, strings.Contains(mainBody, `LD R1, [SP, #-1]
ST R1, [SP]
ADD SP, SP, #1
ADD R2, PC, #5
ST R2, [SP]
ADD SP, SP, #1
ST SP, [R0, #stack]
LD PC, [PC, #0]
DEFW inc`))

	inc := section(out, "inc")
	// n sits below the return address.
	be.Equal(t, inc[6], "LD R1, [SP, #-2]")
	tail := strings.Join(inc[len(inc)-4:], "\n")
	be.Equal(t, tail, "LD R2, [SP, #-1]\nSUB SP, SP, #2\nMOV PC, R2\n")
}

func TestGenerateImplicitReturn(t *testing.T) {
	out := mustGenerate(t, "function f() { int a = 1; }\nfunction main() { f(); }")
	f := strings.Join(section(out, "f"), "\n")
	be.True(t, strings.HasSuffix(f, "MOV R1, #0\nLD R2, [SP, #-2]\nSUB SP, SP, #2\nMOV PC, R2\n"))

	mainBody := strings.Join(section(out, "main", endLabel), "\n")
	be.True(t, strings.HasSuffix(mainBody, "MOV R1, #0\nLD PC, [PC, #0]\nDEFW __end"))
}

func TestGenerateFarFrameAccess(t *testing.T) {
	var src strings.Builder
	src.WriteString("function main() {\n")
	for i := 0; i < 20; i++ {
		src.WriteString("int v" + string(rune('a'+i)) + " = 0;\n")
	}
	src.WriteString("return va;\n}")
	out := mustGenerate(t, src.String())
	be.True(t, strings.Contains(out, "LD R2, [PC, #1]\nADD PC, PC, #1\nDEFW -20\nLD R1, [SP, R2]\n"))
}

func TestGenerateLargeFrameDrop(t *testing.T) {
	var src strings.Builder
	src.WriteString("function f(p) {\n")
	for i := 0; i < 15; i++ {
		src.WriteString("int v" + string(rune('a'+i)) + " = p;\n")
	}
	src.WriteString("return p;\n}\nfunction main() { return f(1); }")
	out := mustGenerate(t, src.String())
	// 15 locals, return address and one argument.
	be.True(t, strings.Contains(out, "DEFW 17\nSUB SP, SP, R3\nMOV PC, R2\n"))
}

func TestGenerateGlobals(t *testing.T) {
	out := mustGenerate(t, "int a = 5;\nbool t = true;\nint b = a + 1;\nint c;\nfunction main() { c = b; return a; }")
	be.True(t, strings.HasSuffix(out, "a:\nDEFW 5\nt:\nDEFW 1\nb:\nDEFW 0\nc:\nDEFW 0\n"))

	mainBody := strings.Join(section(out, "main", endLabel), "\n")
	// b's initialiser runs on entry to main.
	be.True(t, strings.Contains(mainBody, `LD SP, [R0, #stack]
LD R2, [PC, #1]
ADD PC, PC, #1
DEFW a
LD R1, [R2, #0]
ST R1, [SP]
ADD SP, SP, #1
LD R1, [PC, #1]
ADD PC, PC, #1
DEFW 1
SUB SP, SP, #1
LD R2, [SP]
ADD R1, R2, R1
LD R2, [PC, #1]
ADD PC, PC, #1
DEFW b
ST R1, [R2, #0]`))
	be.True(t, !strings.Contains(mainBody, "DEFW a\nST R1"))
}

func TestGenerateOperators(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"a + b", "ADD R1, R2, R1"},
		{"a - b", "SUB R1, R2, R1"},
		{"a & b", "AND R1, R2, R1"},
		{"a | b", "OR R1, R2, R1"},
		{"a ^ b", "AND R3, R2, R1\nOR R1, R2, R1\nSUB R3, R0, R3\nSUB R3, R3, #1\nAND R1, R1, R3"},
		{"a == b", "CMP R2, R1\nMOV R1, #1\nBEQ L0\nMOV R1, #0\nL0:"},
		{"a != b", "BNE L0"},
		{"a < b", "BLT L0"},
		{"a > b", "BGT L0"},
		{"a <= b", "BLE L0"},
		{"a >= b", "BGE L0"},
		{"-a", "SUB R1, R0, R1"},
		{"~a", "SUB R1, R0, R1\nSUB R1, R1, #1"},
		{"!a", "CMP R1, #0\nMOV R1, #1\nBEQ L0\nMOV R1, #0\nL0:"},
		{"a && b", "MOV R3, #0\nCMP R2, #0\nBEQ L0\nCMP R1, #0\nBEQ L0\nMOV R3, #1\nL0:\nMOV R1, R3"},
		{"a || b", "MOV R3, #1\nCMP R2, #0\nBNE L0\nCMP R1, #0\nBNE L0\nMOV R3, #0\nL0:\nMOV R1, R3"},
		{"a << b", "L0:\nCMP R1, #0\nBLE L1\nADD R2, R2, R2\nSUB R1, R1, #1\nB L0\nL1:\nMOV R1, R2"},
		{"a >> b", "ADD R2, R2, R0, ASR"},
		{"a * b", "BGE L0"},
		{"a / b", "CMP R2, R1\nBCC L3"},
	}
	for _, tc := range tests {
		t.Run(tc.expr, func(t *testing.T) {
			out := mustGenerate(t, "int a = 6;\nint b = 3;\nfunction main() { return "+tc.expr+"; }")
			be.True(t, strings.Contains(out, tc.want))
		})
	}
}

func TestGenerateBinaryPopsLeftOperand(t *testing.T) {
	out := mustGenerate(t, "function main() { return 9 - 4; }")
	be.True(t, strings.Contains(out, `DEFW 9
ST R1, [SP]
ADD SP, SP, #1
LD R1, [PC, #1]
ADD PC, PC, #1
DEFW 4
SUB SP, SP, #1
LD R2, [SP]
SUB R1, R2, R1`))
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"no main", "function f() { return 1; }", ErrNoMain},
		{"empty program", "", ErrNoMain},
		{"forward call", "function main() { return g(); }\nfunction g() { return 1; }", ErrCallOrder},
		{"unused function", "function f() { return 1; }\nfunction main() { return 0; }", nil},
		{"undefined function", "function main() { return nope(); }", ErrUndefined},
		{"call a global", "int g = 1;\nfunction main() { return g(); }", ErrUndefined},
		{"arity", "function f(a) { return a; }\nfunction main() { return f(1, 2); }", ErrArity},
		{"undefined variable", "function main() { return y; }", ErrUndefined},
		{"use before declaration", "function main() { int a = b; int b = 1; return a; }", ErrUndefined},
		{"self reference", "function main() { int a = a; return a; }", ErrUndefined},
		{"assign undeclared", "function main() { z = 1; return 0; }", ErrUndefined},
		{"duplicate function", "function main() { }\nfunction main() { }", ErrRedeclared},
		{"function shadows global", "int f = 1;\nfunction f() { }\nfunction main() { }", ErrRedeclared},
		{"duplicate global", "int g;\nint g;\nfunction main() { }", ErrRedeclared},
		{"duplicate local", "function main() { int a = 1; int a = 2; }", ErrRedeclared},
		{"reserved global", "int stack = 1;\nfunction main() { }", ErrReserved},
		{"reserved function", "function R3() { }\nfunction main() { }", ErrReserved},
		{"reserved label", "function main() { int L2 = 1; return L2; }", nil},
		{"later global", "int a = b;\nint b = 1;\nfunction main() { return a; }", ErrUndefined},
		{"self global", "int a = a + 1;\nfunction main() { return a; }", ErrUndefined},
		{"literal too large", "function main() { return 70000; }", ErrRange},
		{"global too large", "int g = 65536;\nfunction main() { return g; }", ErrRange},
		{"main with parameters", "function main(a) { return a; }", ErrArity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, err := generate(t, tc.src)
			be.Err(t, err, tc.want)
			if tc.want != nil {
				be.Equal(t, out, "")
				var genErr *GenerationError
				be.True(t, errors.As(err, &genErr))
			}
		})
	}
}

func TestGenerateGlobalCallRejected(t *testing.T) {
	_, err := generate(t, "int g = f();\nfunction f() { return 1; }\nfunction main() { return g; }")
	be.Err(t, err, ErrCallOrder)
}

func TestGenerateRecursionAndMainCallsAllowed(t *testing.T) {
	_, err := generate(t, "function f(n) { return f(n); }\nfunction g() { return main(); }\nfunction main() { return 0; }")
	be.Err(t, err, nil)
}

func TestGenerationErrorMessage(t *testing.T) {
	_, err := generate(t, "function main() {\n  return g();\n}\nfunction g() { return 1; }")
	be.Err(t, err, "line 2:10: in main: call to function declared later: g is declared after main")

	_, err = generate(t, "function f() { }")
	be.Equal(t, err.Error(), "no main function")
}

func TestGenerateFillsSymbolTable(t *testing.T) {
	prog, err := parseSource(t, "int g = 3;\nfunction main() { int x = g; return x; }")
	be.Err(t, err, nil)
	syms := NewSymbolTable()
	_, err = Generate(prog, syms)
	be.Err(t, err, nil)
	be.Equal(t, len(syms.Globals()), 1)
	be.Equal(t, syms.Locals(), 1)
}

func TestGenerateBenchmarkSources(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int16
	}{
		{"simple", simpleSource, 7},
		{"complex", complexSource, 88},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := mustGenerate(t, tc.src)
			be.True(t, strings.HasPrefix(out, prologue))
			be.Equal(t, result(t, tc.src), tc.want)
		})
	}
}
