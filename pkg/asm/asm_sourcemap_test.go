package asm

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestAssembleSourceMap(t *testing.T) {
	code := `
; Line 2: comment
MOV R1, #1      ; Line 3: word 0
                ; Line 4: empty
LABEL:          ; Line 5: label only
ADD R1, R1, R1  ; Line 6: word 1
SP EQU R6       ; Line 7: no word
ORG 0x0010      ; Line 8: pads words 2..15
B LABEL         ; Line 9: word 16
DEFW 7          ; Line 10: word 17
`
	_, sourceMap, err := Assemble(code)
	be.Err(t, err, nil)

	tests := []struct {
		addr uint16
		line int
	}{
		{0x0000, 3},
		{0x0001, 6},
		{0x0010, 9},
		{0x0011, 10},
	}
	for _, tc := range tests {
		be.Equal(t, sourceMap[tc.addr], tc.line)
	}
	be.Equal(t, len(sourceMap), 4)
}
