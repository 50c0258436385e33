package compiler

import (
	"fmt"

	"stumpc/pkg/asm"
)

// Compile runs the whole pipeline and assembles the result. The returned
// errors keep their type (*LexicalError, *SyntaxError, *GenerationError),
// except for assembler failures which are wrapped.
func Compile(src string) (*string, []byte, error) {
	tokens, err := Lex(src)
	if err != nil {
		return nil, nil, err
	}

	prog, err := Parse(tokens, src)
	if err != nil {
		return nil, nil, err
	}

	assembly, err := Generate(prog, nil)
	if err != nil {
		return nil, nil, err
	}

	machineCode, _, err := asm.Assemble(assembly)
	if err != nil {
		return &assembly, nil, fmt.Errorf("assembly error: %w", err)
	}

	return &assembly, machineCode, nil
}
