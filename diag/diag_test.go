package diag

import (
	"strings"
	"testing"

	"solang/token"
)

func TestDeduplication(t *testing.T) {
	diagnostics := New()
	span := token.Span{File: 0, Start: 4, End: 8}
	diagnostics.Errorf(span, "duplicate declaration of 'x'")
	diagnostics.Errorf(span, "duplicate declaration of 'x'")
	diagnostics.Errorf(span, "another message")
	if diagnostics.Len() != 2 {
		t.Errorf("Len() = %d, want 2 after dedupe", diagnostics.Len())
	}
}

func TestHasErrors(t *testing.T) {
	diagnostics := New()
	diagnostics.Warnf(token.Span{}, "just a warning")
	if diagnostics.HasErrors() {
		t.Error("warnings are not errors")
	}
	diagnostics.Errorf(token.Span{}, "now an error")
	if !diagnostics.HasErrors() {
		t.Error("error not registered")
	}
}

func TestAllIsSortedBySpan(t *testing.T) {
	diagnostics := New()
	diagnostics.Errorf(token.Span{File: 0, Start: 50, End: 51}, "second")
	diagnostics.Errorf(token.Span{File: 0, Start: 10, End: 11}, "first")
	all := diagnostics.All()
	if all[0].Message != "first" || all[1].Message != "second" {
		t.Errorf("order = %q, %q", all[0].Message, all[1].Message)
	}
}

func TestPosition(t *testing.T) {
	fs := &FileSet{}
	fs.AddFile("a.sol", "contract c {\n  uint x\n}\n")
	line, column := fs.Position(0, 15)
	if line != 2 || column != 3 {
		t.Errorf("Position = %d:%d, want 2:3", line, column)
	}
}

func TestRenderCaret(t *testing.T) {
	fs := &FileSet{}
	fs.AddFile("a.sol", "uint x = yy;\n")
	rendered := fs.Render(Diagnostic{
		Severity: Error,
		Span:     token.Span{File: 0, Start: 9, End: 11},
		Message:  "unknown identifier 'yy'",
	})
	if !strings.Contains(rendered, "a.sol:1:10: error: unknown identifier 'yy'") {
		t.Errorf("header missing: %q", rendered)
	}
	if !strings.Contains(rendered, "^^") {
		t.Errorf("caret underline missing: %q", rendered)
	}
}

func TestRenderNotes(t *testing.T) {
	fs := &FileSet{}
	fs.AddFile("a.sol", "uint x;\nuint x;\n")
	rendered := fs.Render(Diagnostic{
		Severity: Error,
		Span:     token.Span{File: 0, Start: 8, End: 14},
		Message:  "duplicate declaration of 'x'",
		Notes:    []Note{{Span: token.Span{File: 0, Start: 0, End: 6}, Message: "previous declaration is here"}},
	})
	if !strings.Contains(rendered, "note: previous declaration is here") {
		t.Errorf("note missing: %q", rendered)
	}
}
