package compiler

// checkProgram validates the names and calls of prog before any emission:
// function and global names are unique and unreserved, main has no
// parameters, every call targets a known function with the right number of
// arguments, and calls respect declare-before-use.
//
// A call from f to g is accepted when g is declared before f, when g is f
// itself, or when g is main. Anything else is ErrCallOrder; the generator
// lays functions out in that order and relies on it.
func checkProgram(prog *Program) error {
	order := make(map[string]int)
	for _, g := range prog.Globals {
		order[g.Name] = -1
	}
	for i, fn := range prog.Functions {
		if reservedName(fn.Name) {
			return genErrorf("", fn.Pos, ErrReserved, "%q cannot name a function", fn.Name)
		}
		if _, dup := order[fn.Name]; dup {
			return genErrorf("", fn.Pos, ErrRedeclared, "function %q", fn.Name)
		}
		order[fn.Name] = i
		if fn.Name == "main" && len(fn.Params) > 0 {
			return genErrorf("", fn.Pos, ErrArity, "main takes no parameters")
		}
	}

	for _, g := range prog.Globals {
		if calls := findCalls(g.Init); len(calls) > 0 {
			return genErrorf("", calls[0].Pos, ErrCallOrder, "global %q cannot call %s", g.Name, calls[0].Name)
		}
	}

	for i, fn := range prog.Functions {
		var calls []*FunctionCall
		for _, stmt := range fn.Body {
			calls = append(calls, findCallsStmt(stmt)...)
		}
		for _, call := range calls {
			idx, known := order[call.Name]
			if !known || idx < 0 {
				return genErrorf(fn.Name, call.Pos, ErrUndefined, "function %q", call.Name)
			}
			callee := prog.Functions[idx]
			if idx > i && call.Name != "main" {
				return genErrorf(fn.Name, call.Pos, ErrCallOrder, "%s is declared after %s", call.Name, fn.Name)
			}
			if len(call.Args) != len(callee.Params) {
				return genErrorf(fn.Name, call.Pos, ErrArity, "%s takes %d, got %d", call.Name, len(callee.Params), len(call.Args))
			}
		}
	}
	return nil
}

// UnusedFunctions returns, in declaration order, the functions that cannot
// be reached from main through calls.
func UnusedFunctions(prog *Program) []string {
	funcs := make(map[string]*Function)
	for _, fn := range prog.Functions {
		funcs[fn.Name] = fn
	}

	reachable := make(map[string]bool)
	var worklist []string
	addReachable := func(name string) {
		if !reachable[name] {
			reachable[name] = true
			worklist = append(worklist, name)
		}
	}
	if _, ok := funcs["main"]; ok {
		addReachable("main")
	}

	for len(worklist) > 0 {
		curr := worklist[0]
		worklist = worklist[1:]

		fn, exists := funcs[curr]
		if !exists {
			continue
		}
		for _, stmt := range fn.Body {
			for _, call := range findCallsStmt(stmt) {
				addReachable(call.Name)
			}
		}
	}

	var unused []string
	for _, fn := range prog.Functions {
		if !reachable[fn.Name] {
			unused = append(unused, fn.Name)
		}
	}
	return unused
}

// findCalls returns the calls of a postfix sequence in evaluation order.
func findCalls(p Postfix) []*FunctionCall {
	var calls []*FunctionCall
	for _, e := range p {
		switch n := e.(type) {
		case *FunctionCall:
			calls = append(calls, n)
		case *Integer, *Boolean, *Identifier, *Operator:
			// no calls here
		}
	}
	return calls
}

func findCallsStmt(s Stmt) []*FunctionCall {
	switch n := s.(type) {
	case *VarDecl:
		return findCalls(n.Init)
	case *Assignment:
		return findCalls(n.Value)
	case *Return:
		return findCalls(n.Value)
	case *Arithmetic:
		return findCalls(n.Value)
	}
	return nil
}
