// Package diag collects, deduplicates and renders the diagnostics
// produced by every stage of the pipeline. Diagnostics are never
// fatal inside a stage; the driver checks HasErrors at each stage
// boundary and aborts the pipeline there.
package diag

import (
	"fmt"
	"sort"
	"strings"

	"solang/token"
)

// Severity of a diagnostic.
type Severity int

const (
	Error Severity = iota
	Warning
	Info
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "info"
	}
}

// Note attaches secondary information to a diagnostic, anchored at
// its own span (for example the earlier declaration in a duplicate
// declaration error).
type Note struct {
	Span    token.Span
	Message string
}

// Diagnostic is one reportable finding.
type Diagnostic struct {
	Severity Severity
	Span     token.Span
	Message  string
	Notes    []Note
}

// Diagnostics accumulates findings across pipeline stages and
// deduplicates them by (span, message).
type Diagnostics struct {
	list []Diagnostic
	seen map[string]bool
}

func New() *Diagnostics {
	return &Diagnostics{seen: make(map[string]bool)}
}

// Add records a diagnostic unless an identical (span, message) pair
// was recorded before.
func (d *Diagnostics) Add(diagnostic Diagnostic) {
	key := fmt.Sprintf("%d:%d:%d:%s", diagnostic.Span.File, diagnostic.Span.Start, diagnostic.Span.End, diagnostic.Message)
	if d.seen[key] {
		return
	}
	d.seen[key] = true
	d.list = append(d.list, diagnostic)
}

// Errorf records an Error diagnostic at span.
func (d *Diagnostics) Errorf(span token.Span, format string, args ...any) {
	d.Add(Diagnostic{Severity: Error, Span: span, Message: fmt.Sprintf(format, args...)})
}

// Warnf records a Warning diagnostic at span.
func (d *Diagnostics) Warnf(span token.Span, format string, args ...any) {
	d.Add(Diagnostic{Severity: Warning, Span: span, Message: fmt.Sprintf(format, args...)})
}

// Infof records an Info diagnostic at span.
func (d *Diagnostics) Infof(span token.Span, format string, args ...any) {
	d.Add(Diagnostic{Severity: Info, Span: span, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any Error-severity diagnostic has been
// recorded so far.
func (d *Diagnostics) HasErrors() bool {
	for _, diagnostic := range d.list {
		if diagnostic.Severity == Error {
			return true
		}
	}
	return false
}

// All returns the recorded diagnostics ordered by file and start
// offset. The slice is a copy; the language-server collaborator
// consumes it unformatted.
func (d *Diagnostics) All() []Diagnostic {
	out := make([]Diagnostic, len(d.list))
	copy(out, d.list)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Span.File != out[j].Span.File {
			return out[i].Span.File < out[j].Span.File
		}
		return out[i].Span.Start < out[j].Span.Start
	})
	return out
}

// Len returns the number of recorded diagnostics.
func (d *Diagnostics) Len() int {
	return len(d.list)
}

// FileSet resolves spans back to file names and line/column positions
// for rendering. Sources are registered in source-unit id order.
type FileSet struct {
	names   []string
	sources []string
}

// AddFile registers a source buffer and returns its file id.
func (fs *FileSet) AddFile(name, source string) int {
	fs.names = append(fs.names, name)
	fs.sources = append(fs.sources, source)
	return len(fs.names) - 1
}

// Name returns the registered file name for id.
func (fs *FileSet) Name(id int) string {
	if id < 0 || id >= len(fs.names) {
		return "<unknown>"
	}
	return fs.names[id]
}

// Source returns the registered buffer for id.
func (fs *FileSet) Source(id int) string {
	if id < 0 || id >= len(fs.sources) {
		return ""
	}
	return fs.sources[id]
}

// Position converts a byte offset in file id to 1-based line and
// column numbers.
func (fs *FileSet) Position(id, offset int) (line, column int) {
	source := fs.Source(id)
	if offset > len(source) {
		offset = len(source)
	}
	line, column = 1, 1
	for _, char := range source[:offset] {
		if char == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}

// Render formats one diagnostic as
//
//	file:line:column: severity: message
//	        source line
//	        ^~~~ caret underline
//
// followed by one line per note.
func (fs *FileSet) Render(diagnostic Diagnostic) string {
	var builder strings.Builder
	line, column := fs.Position(diagnostic.Span.File, diagnostic.Span.Start)
	fmt.Fprintf(&builder, "%s:%d:%d: %s: %s\n", fs.Name(diagnostic.Span.File), line, column, diagnostic.Severity, diagnostic.Message)

	source := fs.Source(diagnostic.Span.File)
	lineStart := diagnostic.Span.Start
	for lineStart > 0 && lineStart <= len(source) && source[lineStart-1] != '\n' {
		lineStart--
	}
	lineEnd := diagnostic.Span.Start
	for lineEnd < len(source) && source[lineEnd] != '\n' {
		lineEnd++
	}
	if lineStart < lineEnd {
		fmt.Fprintf(&builder, "\t%s\n", source[lineStart:lineEnd])
		width := diagnostic.Span.End - diagnostic.Span.Start
		if width < 1 {
			width = 1
		}
		if diagnostic.Span.Start+width > lineEnd {
			width = lineEnd - diagnostic.Span.Start
			if width < 1 {
				width = 1
			}
		}
		fmt.Fprintf(&builder, "\t%s%s\n", strings.Repeat(" ", diagnostic.Span.Start-lineStart), strings.Repeat("^", width))
	}
	for _, note := range diagnostic.Notes {
		noteLine, noteColumn := fs.Position(note.Span.File, note.Span.Start)
		fmt.Fprintf(&builder, "\t%s:%d:%d: note: %s\n", fs.Name(note.Span.File), noteLine, noteColumn, note.Message)
	}
	return builder.String()
}
