package compiler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CaseInput is the language tag of the source fence of a case.
const CaseInput = "stump"

// AssertionKind is the language tag of an assertion fence.
type AssertionKind string

const (
	AssertPostfix      AssertionKind = "postfix"
	AssertAsmContains  AssertionKind = "asm-contains"
	AssertResult       AssertionKind = "result"
	AssertCompileError AssertionKind = "compile-error"
)

// Assertion is one expectation attached to a case.
type Assertion struct {
	Kind    AssertionKind
	Content string
	Line    int
}

// Case is a compiler test written in Markdown:
//
//	## Test: precedence
//	```stump
//	1+2*3;
//	```
//	```postfix
//	[1 2 3 * +]
//	```
type Case struct {
	Name       string
	Input      string
	Line       int
	Assertions []Assertion
}

// ExtractCases collects the cases of a Markdown document. A case starts at a
// heading "Test: name" and needs one stump fence and at least one assertion.
// Fences without a language are ignored; any other language is an error.
func ExtractCases(markdown string) ([]Case, error) {
	source := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var cases []Case
	var current *Case

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			heading := headingText(n, source)
			if !strings.HasPrefix(heading, "Test: ") {
				return ast.WalkContinue, nil
			}
			if current != nil {
				if err := current.validate(); err != nil {
					return ast.WalkStop, err
				}
				cases = append(cases, *current)
			}
			current = &Case{Name: strings.TrimPrefix(heading, "Test: ")}

		case *ast.FencedCodeBlock:
			language := string(n.Language(source))
			if language == "" {
				return ast.WalkContinue, nil
			}
			line := lineOf(n, source)
			if current == nil {
				return ast.WalkStop, fmt.Errorf("line %d: %s fence found outside of test case", line, language)
			}
			content := strings.TrimRight(fenceContent(n, source), "\n")

			if language == CaseInput {
				if current.Input != "" {
					return ast.WalkStop, fmt.Errorf("line %d: multiple input fences found in test '%s'", line, current.Name)
				}
				current.Input = content
				current.Line = line
				return ast.WalkContinue, nil
			}
			if !isAssertionKind(language) {
				return ast.WalkStop, fmt.Errorf("line %d: unknown fence language '%s' in test '%s'", line, language, current.Name)
			}
			current.Assertions = append(current.Assertions, Assertion{
				Kind:    AssertionKind(language),
				Content: content,
				Line:    line,
			})
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking markdown: %w", err)
	}

	if current != nil {
		if err := current.validate(); err != nil {
			return nil, err
		}
		cases = append(cases, *current)
	}
	return cases, nil
}

func (c *Case) validate() error {
	if c.Input == "" {
		return fmt.Errorf("test '%s' has no input fence", c.Name)
	}
	if len(c.Assertions) == 0 {
		return fmt.Errorf("test '%s' has no assertion fences", c.Name)
	}
	return nil
}

func isAssertionKind(language string) bool {
	switch AssertionKind(language) {
	case AssertPostfix, AssertAsmContains, AssertResult, AssertCompileError:
		return true
	}
	return false
}

func headingText(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := n.(*ast.Text); ok && entering {
			buf.Write(t.Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func fenceContent(block *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	for i := 0; i < block.Lines().Len(); i++ {
		line := block.Lines().At(i)
		buf.Write(line.Value(source))
	}
	return buf.String()
}

// lineOf is the 1-based line of the first content line of node.
func lineOf(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	start := node.Lines().At(0).Start
	return bytes.Count(source[:min(start, len(source))], []byte("\n")) + 1
}
