package main

import (
	"flag"
	"fmt"
	"os"

	"stumpc/pkg/compiler"
)

func main() {
	outPath := flag.String("o", "output.s", "output assembly file path")
	verbose := flag.Bool("v", false, "print stage progress, tokens, AST and symbols")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-o path] [-v] <input.stump>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	inPath := flag.Arg(0)

	data, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read error:", err)
		os.Exit(1)
	}
	src := string(data)

	progress := func(msg string) {
		if *verbose {
			fmt.Println(msg)
		}
	}

	progress("starting")
	tokens, err := compiler.Lex(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "lex error:", err)
		os.Exit(1)
	}
	if *verbose {
		fmt.Printf("Tokens (%d)\n", len(tokens))
		for _, tok := range tokens {
			fmt.Println(" ", tok)
		}
		fmt.Println()
	}

	progress("successful lexing, now parsing")
	prog, err := compiler.Parse(tokens, src)
	if err != nil {
		fmt.Fprintln(os.Stderr, "parse error:", err)
		os.Exit(1)
	}
	if *verbose {
		fmt.Println("AST")
		fmt.Print(prog)
		fmt.Println()
	}

	progress("successful parsing, now generating")
	syms := compiler.NewSymbolTable()
	assembly, err := compiler.Generate(prog, syms)
	if err != nil {
		fmt.Fprintln(os.Stderr, "codegen error:", err)
		os.Exit(1)
	}
	if *verbose {
		for _, name := range compiler.UnusedFunctions(prog) {
			fmt.Printf("warning: function %s is never called from main\n", name)
		}
		fmt.Print(syms)
		fmt.Println()
	}

	if err := os.WriteFile(*outPath, []byte(assembly), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %q: %v\n", *outPath, err)
		os.Exit(1)
	}
	progress("code generated")
	fmt.Printf("wrote %s\n", *outPath)
}
