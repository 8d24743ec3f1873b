package macro

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokPunct
	tokString
	tokTemplate
	tokNumber
	tokRegex
	tokJSX
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "identifier"
	case tokPunct:
		return "punctuator"
	case tokString:
		return "string"
	case tokTemplate:
		return "template literal"
	case tokNumber:
		return "number"
	case tokRegex:
		return "regular expression"
	case tokJSX:
		return "JSX element"
	default:
		return "token"
	}
}

// token is one significant lexeme. start and end are byte offsets into the
// lexer input; depth is the bracket nesting level before the token.
type token struct {
	kind     tokenKind
	text     string
	start    int
	end      int
	depth    int
	nlBefore bool
	// subst is set on template tokens that open a ${ expression.
	subst bool
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

// lexError carries the offset where scanning failed.
type lexError struct {
	offset int
	msg    string
}

func (e *lexError) Error() string { return e.msg }

// lexer is a small JavaScript tokenizer. It understands enough of the
// grammar to skip strings, comments, template literals and regular
// expressions, and to track bracket depth across all of them.
type lexer struct {
	src    string
	pos    int
	stack  []byte // '(' '[' '{' or '$' for an open template substitution
	prev   *token
	peeked *token
	// jsx enables JSX elements in expression position.
	jsx bool
}

func newLexer(src string, jsx bool) *lexer {
	return &lexer{src: src, jsx: jsx}
}

// peek returns the next token without consuming it.
func (l *lexer) peek() (token, error) {
	if l.peeked != nil {
		return *l.peeked, nil
	}
	tok, err := l.scan()
	if err != nil {
		return tok, err
	}
	l.peeked = &tok
	return tok, nil
}

// next consumes and returns the next token.
func (l *lexer) next() (token, error) {
	if l.peeked != nil {
		tok := *l.peeked
		l.peeked = nil
		return tok, nil
	}
	return l.scan()
}

func (l *lexer) scan() (token, error) {
	nl, err := l.skipTrivia()
	if err != nil {
		return token{}, err
	}

	tok := token{start: l.pos, depth: len(l.stack), nlBefore: nl}
	if l.pos >= len(l.src) {
		tok.kind = tokEOF
		tok.end = l.pos
		return tok, nil
	}

	c := l.src[l.pos]
	switch {
	case isIdentStart(l.src, l.pos):
		l.scanIdent()
		tok.kind = tokIdent
	case isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		l.scanNumber()
		tok.kind = tokNumber
	case c == '"' || c == '\'':
		if err := l.scanString(c); err != nil {
			return tok, err
		}
		tok.kind = tokString
	case c == '`':
		l.pos++
		subst, err := l.scanTemplate()
		if err != nil {
			return tok, err
		}
		tok.kind = tokTemplate
		tok.subst = subst
	case c == '<' && l.jsx && l.regexAllowed() && l.jsxStartsAt(l.pos):
		if err := l.scanJSX(); err != nil {
			return tok, err
		}
		tok.kind = tokJSX
	case c == '/' && l.regexAllowed():
		if err := l.scanRegex(); err != nil {
			return tok, err
		}
		tok.kind = tokRegex
	default:
		if err := l.scanPunct(&tok); err != nil {
			return tok, err
		}
	}

	tok.end = l.pos
	tok.text = l.src[tok.start:tok.end]
	l.prev = &tok
	return tok, nil
}

// skipTrivia skips whitespace and comments, reporting whether a line
// terminator was crossed.
func (l *lexer) skipTrivia() (bool, error) {
	nl := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n' || c == '\r':
			nl = true
			l.pos++
		case c == ' ' || c == '\t' || c == '\f' || c == '\v':
			l.pos++
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/':
			end := strings.IndexByte(l.src[l.pos:], '\n')
			if end < 0 {
				l.pos = len(l.src)
			} else {
				l.pos += end
			}
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '*':
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				return nl, &lexError{offset: l.pos, msg: "unterminated block comment"}
			}
			if strings.ContainsAny(l.src[l.pos:l.pos+2+end], "\n\r") {
				nl = true
			}
			l.pos += 2 + end + 2
		case c >= utf8.RuneSelf:
			r, size := utf8.DecodeRuneInString(l.src[l.pos:])
			if !unicode.IsSpace(r) && r != '\uFEFF' {
				return nl, nil
			}
			if r == '\u2028' || r == '\u2029' {
				nl = true
			}
			l.pos += size
		default:
			return nl, nil
		}
	}
	return nl, nil
}

func (l *lexer) scanIdent() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c < utf8.RuneSelf {
			if isIdentPart(c) {
				l.pos++
				continue
			}
			return
		}
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return
		}
		l.pos += size
	}
}

func (l *lexer) scanNumber() {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case isIdentPart(c) || c == '.':
			l.pos++
		case (c == '+' || c == '-') && l.pos > start && isExponentMarker(l.src[start:l.pos]):
			l.pos++
		default:
			return
		}
	}
}

// isExponentMarker reports whether a decimal literal prefix ends in e/E so a
// following sign belongs to the exponent.
func isExponentMarker(prefix string) bool {
	last := prefix[len(prefix)-1]
	if last != 'e' && last != 'E' {
		return false
	}
	lower := strings.ToLower(prefix)
	return !strings.HasPrefix(lower, "0x")
}

func (l *lexer) scanString(quote byte) error {
	start := l.pos
	l.pos++
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '\\':
			l.pos += 2
		case quote:
			l.pos++
			return nil
		case '\n', '\r':
			return &lexError{offset: start, msg: "unterminated string literal"}
		default:
			l.pos++
		}
	}
	return &lexError{offset: start, msg: "unterminated string literal"}
}

// scanTemplate scans template characters up to the closing backtick or the
// next ${. The opening backtick or closing brace has already been consumed.
func (l *lexer) scanTemplate() (bool, error) {
	start := l.pos
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\':
			l.pos += 2
		case c == '`':
			l.pos++
			return false, nil
		case c == '$' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '{':
			l.pos += 2
			l.stack = append(l.stack, '$')
			return true, nil
		default:
			l.pos++
		}
	}
	return false, &lexError{offset: start - 1, msg: "unterminated template literal"}
}

func (l *lexer) scanRegex() error {
	start := l.pos
	l.pos++
	inClass := false
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\\':
			l.pos += 2
			continue
		case c == '\n' || c == '\r':
			return &lexError{offset: start, msg: "unterminated regular expression"}
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			l.pos++
			for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
				l.pos++
			}
			return nil
		}
		l.pos++
	}
	return &lexError{offset: start, msg: "unterminated regular expression"}
}

func (l *lexer) scanPunct(tok *token) error {
	rest := l.src[l.pos:]
	switch {
	case strings.HasPrefix(rest, "..."):
		l.pos += 3
		tok.kind = tokPunct
		return nil
	case strings.HasPrefix(rest, "?.") && !(len(rest) > 2 && isDigit(rest[2])):
		l.pos += 2
		tok.kind = tokPunct
		return nil
	case strings.HasPrefix(rest, "=>"):
		l.pos += 2
		tok.kind = tokPunct
		return nil
	}

	c := rest[0]
	l.pos++
	switch c {
	case '(', '[', '{':
		l.stack = append(l.stack, c)
	case ')', ']':
		l.pop()
	case '}':
		if n := len(l.stack); n > 0 && l.stack[n-1] == '$' {
			l.stack = l.stack[:n-1]
			subst, err := l.scanTemplate()
			if err != nil {
				return err
			}
			tok.kind = tokTemplate
			tok.subst = subst
			return nil
		}
		l.pop()
	default:
		if c >= utf8.RuneSelf {
			_, size := utf8.DecodeRuneInString(rest)
			l.pos += size - 1
		}
	}
	tok.kind = tokPunct
	return nil
}

// jsxStartsAt reports whether the '<' at pos opens a JSX element or
// fragment. A type parameter list such as <T,> or <T extends U> does not.
func (l *lexer) jsxStartsAt(pos int) bool {
	i := pos + 1
	if i < len(l.src) && l.src[i] == '>' {
		return true
	}
	if i >= len(l.src) || !isIdentStart(l.src, i) {
		return false
	}
	for i < len(l.src) && (isIdentPart(l.src[i]) || l.src[i] == '.' || l.src[i] == '-' || l.src[i] == ':') {
		i++
	}
	for i < len(l.src) && (l.src[i] == ' ' || l.src[i] == '\t') {
		i++
	}
	rest := l.src[i:]
	return !strings.HasPrefix(rest, ",") && !strings.HasPrefix(rest, "extends ")
}

// scanJSX skips one JSX element or fragment, including nested elements and
// expression containers. Text content is not tokenized.
func (l *lexer) scanJSX() error {
	start := l.pos
	l.pos++
	selfClosing, err := l.scanJSXTag(start)
	if err != nil || selfClosing {
		return err
	}

	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '<' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/':
			end := strings.IndexByte(l.src[l.pos:], '>')
			if end < 0 {
				return &lexError{offset: l.pos, msg: "unterminated JSX closing tag"}
			}
			l.pos += end + 1
			return nil
		case c == '<':
			if err := l.scanJSX(); err != nil {
				return err
			}
		case c == '{':
			if err := l.skipJSXExpression(); err != nil {
				return err
			}
		default:
			l.pos++
		}
	}
	return &lexError{offset: start, msg: "unterminated JSX element"}
}

// scanJSXTag scans the attributes of an opening tag up to its closing '>'
// and reports whether the tag was self-closing.
func (l *lexer) scanJSXTag(start int) (bool, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '>':
			l.pos += 2
			return true, nil
		case c == '>':
			l.pos++
			return false, nil
		case c == '"' || c == '\'':
			end := strings.IndexByte(l.src[l.pos+1:], c)
			if end < 0 {
				return false, &lexError{offset: l.pos, msg: "unterminated string literal"}
			}
			l.pos += end + 2
		case c == '{':
			if err := l.skipJSXExpression(); err != nil {
				return false, err
			}
		default:
			l.pos++
		}
	}
	return false, &lexError{offset: start, msg: "unterminated JSX element"}
}

// skipJSXExpression skips a braced expression container. Its body is
// ordinary JavaScript and may contain further JSX.
func (l *lexer) skipJSXExpression() error {
	sub := newLexer(l.src, true)
	sub.pos = l.pos
	for {
		tok, err := sub.scan()
		if err != nil {
			return err
		}
		if tok.kind == tokEOF {
			return &lexError{offset: l.pos, msg: "unterminated JSX expression"}
		}
		if len(sub.stack) == 0 {
			l.pos = sub.pos
			return nil
		}
	}
}

func (l *lexer) pop() {
	if n := len(l.stack); n > 0 {
		l.stack = l.stack[:n-1]
	}
}

var regexPrecedingKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// regexAllowed decides whether a slash starts a regular expression, based on
// the previous significant token.
func (l *lexer) regexAllowed() bool {
	if l.prev == nil {
		return true
	}
	switch l.prev.kind {
	case tokIdent:
		return regexPrecedingKeywords[l.prev.text]
	case tokNumber, tokString, tokRegex, tokJSX:
		return false
	case tokTemplate:
		return l.prev.subst
	case tokPunct:
		switch l.prev.text {
		case ")", "]", "}":
			return false
		}
		return true
	}
	return true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentPart(c byte) bool {
	return c == '_' || c == '$' || isDigit(c) || (c|0x20 >= 'a' && c|0x20 <= 'z')
}

func isIdentStart(src string, pos int) bool {
	c := src[pos]
	if c < utf8.RuneSelf {
		return c == '_' || c == '$' || (c|0x20 >= 'a' && c|0x20 <= 'z')
	}
	r, _ := utf8.DecodeRuneInString(src[pos:])
	return unicode.IsLetter(r)
}

// position converts a byte offset into a 1-based line and column.
func position(src string, offset int) (int, int) {
	if offset > len(src) {
		offset = len(src)
	}
	line := 1 + strings.Count(src[:offset], "\n")
	col := offset + 1
	if i := strings.LastIndexByte(src[:offset], '\n'); i >= 0 {
		col = offset - i
	}
	return line, col
}

func describe(tok token) string {
	if tok.kind == tokEOF {
		return tok.kind.String()
	}
	return fmt.Sprintf("%s %q", tok.kind, tok.text)
}
