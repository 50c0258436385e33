package compiler

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestUnusedFunctions(t *testing.T) {
	prog, err := parseSource(t, `
function leaf() { return 1; }
function helper() { return leaf(); }
function orphan() { return leaf(); }
function main() { int x = helper(); return x; }
function after() { return 0; }
`)
	be.Err(t, err, nil)
	be.Equal(t, UnusedFunctions(prog), []string{"orphan", "after"})
}

func TestUnusedFunctionsWithoutMain(t *testing.T) {
	prog, err := parseSource(t, "function a() { } function b() { }")
	be.Err(t, err, nil)
	be.Equal(t, UnusedFunctions(prog), []string{"a", "b"})
}

func TestFindCalls(t *testing.T) {
	prog, err := parseSource(t, "function main() { return f(1) + g(x) * h(); }")
	be.Err(t, err, nil)

	calls := findCallsStmt(prog.Functions[0].Body[0])
	names := make([]string, len(calls))
	for i, c := range calls {
		names[i] = c.Name
	}
	be.Equal(t, names, []string{"f", "g", "h"})
}
