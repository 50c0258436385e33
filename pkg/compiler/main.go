// Package compiler lexes, parses and generates code for STUMP, a small
// C-like language, targeting the STUMP 16-bit register machine.
//
// Pipeline: source -> Lex -> Parse (shunting-yard expressions) -> Generate -> assembly text
package compiler
