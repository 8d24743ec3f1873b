// Package macro strips compile-time-only macro calls such as
// definePageMeta({...}) out of page sources and surfaces their statically
// known arguments.
//
// The transform operates on text only. Nothing is evaluated: the argument of
// a macro call must be a literal, otherwise extraction fails with a
// recoverable MacroExtractionError and callers keep the source unmodified.
package macro

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/conneroisu/pagegen/internal/errors"
	"github.com/conneroisu/pagegen/internal/jsvalue"
)

// DefaultMacros maps macro function names to the export they produce in the
// ?macro=true variant of a module.
var DefaultMacros = map[string]string{"definePageMeta": "meta"}

// DefaultExtensions are the module extensions the transform applies to.
var DefaultExtensions = []string{".vue", ".js", ".jsx", ".mjs", ".ts", ".tsx"}

// Options configures extraction.
type Options struct {
	// Macros maps function name to export name. Empty means DefaultMacros.
	Macros map[string]string
	// Extensions limits which module ids the bundler transform accepts.
	Extensions []string
}

func (o Options) macros() map[string]string {
	if len(o.Macros) == 0 {
		return DefaultMacros
	}
	return o.Macros
}

func (o Options) extensions() []string {
	if len(o.Extensions) == 0 {
		return DefaultExtensions
	}
	return o.Extensions
}

// exportNames returns the configured export names in sorted order.
func (o Options) exportNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, export := range o.macros() {
		if !seen[export] {
			seen[export] = true
			names = append(names, export)
		}
	}
	sort.Strings(names)
	return names
}

// Result is the outcome of a successful extraction.
type Result struct {
	// Code is the source with every macro call statement removed.
	Code string
	// Exports holds the extracted argument per export name.
	Exports map[string]*jsvalue.Object
	// Changed reports whether any call was removed.
	Changed bool
}

// Export returns the value extracted for an export name, or nil.
func (r *Result) Export(name string) *jsvalue.Object {
	if r == nil {
		return nil
	}
	return r.Exports[name]
}

type call struct {
	name   string
	export string
	start  int
	end    int
	value  *jsvalue.Object
}

type region struct {
	start int
	end   int
}

var scriptBlockRe = regexp.MustCompile(`(?is)<script\b[^>]*>(.*?)</script\s*>`)

// scriptRegions returns the byte ranges of the bodies of every <script>
// block in a single-file component.
func scriptRegions(src string) []region {
	var regions []region
	for _, m := range scriptBlockRe.FindAllStringSubmatchIndex(src, -1) {
		regions = append(regions, region{start: m[2], end: m[3]})
	}
	return regions
}

// Extract removes macro calls from src and returns their arguments. file is
// used for error locations and to detect single-file components.
func Extract(file, src string, opts Options) (*Result, error) {
	regions := []region{{start: 0, end: len(src)}}
	if strings.EqualFold(filepath.Ext(file), ".vue") {
		regions = scriptRegions(src)
	}

	macros := opts.macros()
	jsx := isJSXFile(file)
	var calls []call
	seen := make(map[string]int)
	for _, r := range regions {
		found, err := findCalls(src[r.start:r.end], macros, jsx)
		if err != nil {
			return nil, extractionError(file, src, r.start, err)
		}
		for _, c := range found {
			c.start += r.start
			c.end += r.start
			if _, dup := seen[c.export]; dup {
				line, col := position(src, c.start)
				return nil, errors.NewMacroExtractionError(file, line, col,
					fmt.Sprintf("%s may only be called once per file", c.name))
			}
			seen[c.export] = c.start
			calls = append(calls, c)
		}
	}

	res := &Result{Code: src, Exports: make(map[string]*jsvalue.Object)}
	if len(calls) == 0 {
		return res, nil
	}

	for _, c := range calls {
		res.Exports[c.export] = c.value
	}
	res.Code = removeCalls(src, calls)
	res.Changed = true
	return res, nil
}

// isJSXFile reports whether file may contain JSX elements.
func isJSXFile(file string) bool {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".jsx", ".tsx":
		return true
	}
	return false
}

func extractionError(file, src string, base int, err error) error {
	offset := 0
	switch e := err.(type) {
	case *lexError:
		offset = e.offset
	case *syntaxError:
		offset = e.offset
	}
	line, col := position(src, base+offset)
	return errors.NewMacroExtractionError(file, line, col, err.Error())
}

// findCalls scans one script body for top-level macro call statements.
func findCalls(text string, macros map[string]string, jsx bool) ([]call, error) {
	lx := newLexer(text, jsx)
	var calls []call
	var prev *token

	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokEOF {
			return calls, nil
		}

		if export, ok := macros[tok.text]; ok && tok.kind == tokIdent && tok.depth == 0 && !isMemberOrDeclaration(prev) {
			open, err := lx.peek()
			if err != nil {
				return nil, err
			}
			if open.is(tokPunct, "(") {
				if !startsStatement(prev, tok) {
					return nil, &syntaxError{offset: tok.start,
						msg: fmt.Sprintf("%s must be called as a standalone top-level statement", tok.text)}
				}
				c, err := parseCall(lx, tok, export)
				if err != nil {
					return nil, err
				}
				calls = append(calls, c)
				prev = &token{kind: tokPunct, text: ";"}
				continue
			}
		}

		t := tok
		prev = &t
	}
}

var declarationKeywords = map[string]bool{
	"function": true, "const": true, "let": true, "var": true, "class": true,
	"import": true, "export": true, "new": true,
}

func isMemberOrDeclaration(prev *token) bool {
	if prev == nil {
		return false
	}
	if prev.is(tokPunct, ".") || prev.is(tokPunct, "?.") {
		return true
	}
	return prev.kind == tokIdent && declarationKeywords[prev.text]
}

// startsStatement reports whether tok begins a new statement, either after
// an explicit terminator or through automatic semicolon insertion.
func startsStatement(prev *token, tok token) bool {
	if prev == nil || prev.is(tokPunct, ";") || prev.is(tokPunct, "}") {
		return true
	}
	if !tok.nlBefore {
		return false
	}
	switch prev.kind {
	case tokIdent:
		return !regexPrecedingKeywords[prev.text]
	case tokNumber, tokString, tokRegex, tokJSX:
		return true
	case tokTemplate:
		return !prev.subst
	case tokPunct:
		return prev.text == ")" || prev.text == "]"
	}
	return false
}

func parseCall(lx *lexer, name token, export string) (call, error) {
	if _, err := lx.next(); err != nil {
		return call{}, err
	}

	first, err := lx.peek()
	if err != nil {
		return call{}, err
	}
	if first.is(tokPunct, ")") {
		return call{}, &syntaxError{offset: name.start,
			msg: fmt.Sprintf("%s expects a single object literal argument", name.text)}
	}

	p := &literalParser{lx: lx}
	value, err := p.parseValue()
	if err != nil {
		return call{}, err
	}
	obj, ok := value.(*jsvalue.Object)
	if !ok {
		return call{}, &syntaxError{offset: first.start,
			msg: fmt.Sprintf("%s expects an object literal argument", name.text)}
	}

	closing, err := lx.next()
	if err != nil {
		return call{}, err
	}
	if closing.is(tokPunct, ",") {
		if closing, err = lx.next(); err != nil {
			return call{}, err
		}
	}
	if !closing.is(tokPunct, ")") {
		return call{}, &syntaxError{offset: closing.start,
			msg: fmt.Sprintf("%s expects a single object literal argument", name.text)}
	}

	end := closing.end
	after, err := lx.peek()
	if err != nil {
		return call{}, err
	}
	switch {
	case after.is(tokPunct, ";"):
		_, _ = lx.next()
		end = after.end
	case after.kind == tokEOF || after.nlBefore || after.is(tokPunct, "}"):
	default:
		return call{}, &syntaxError{offset: after.start,
			msg: fmt.Sprintf("%s must be called as a standalone top-level statement", name.text)}
	}

	return call{name: name.text, export: export, start: name.start, end: end, value: obj}, nil
}

// removeCalls deletes each call statement. When a call occupies its own line
// the whole line goes, including indentation and the line break.
func removeCalls(src string, calls []call) string {
	var b strings.Builder
	last := 0
	for _, c := range calls {
		start, end := c.start, c.end

		lineStart := strings.LastIndexByte(src[:start], '\n') + 1
		if strings.TrimLeft(src[lineStart:start], " \t") == "" {
			start = lineStart
			rest := end
			for rest < len(src) && (src[rest] == ' ' || src[rest] == '\t') {
				rest++
			}
			switch {
			case rest == len(src):
				end = rest
			case strings.HasPrefix(src[rest:], "\r\n"):
				end = rest + 2
			case src[rest] == '\n':
				end = rest + 1
			default:
				end = rest
			}
		}

		b.WriteString(src[last:start])
		last = end
	}
	b.WriteString(src[last:])
	return b.String()
}
