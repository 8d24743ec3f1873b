package macro

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/conneroisu/pagegen/internal/jsvalue"
)

// syntaxError is a parse failure at an offset of the scanned text.
type syntaxError struct {
	offset int
	msg    string
}

func (e *syntaxError) Error() string { return e.msg }

func unexpected(tok token, what string) error {
	return &syntaxError{offset: tok.start, msg: fmt.Sprintf("%s: unexpected %s", what, describe(tok))}
}

// literalParser reads a statically analyzable JavaScript value from the
// lexer. It never evaluates anything: identifiers, calls, spreads and
// computed keys are rejected.
type literalParser struct {
	lx *lexer
}

func (p *literalParser) parseValue() (any, error) {
	tok, err := p.lx.next()
	if err != nil {
		return nil, err
	}

	switch tok.kind {
	case tokPunct:
		switch tok.text {
		case "{":
			return p.parseObject()
		case "[":
			return p.parseArray()
		case "-", "+":
			num, err := p.lx.next()
			if err != nil {
				return nil, err
			}
			if num.kind != tokNumber {
				return nil, unexpected(num, "only numeric literals may be signed")
			}
			f, err := parseNumber(num)
			if err != nil {
				return nil, err
			}
			if tok.text == "-" {
				f = -f
			}
			return f, nil
		}
	case tokString:
		return decodeString(tok, tok.text[1:len(tok.text)-1])
	case tokTemplate:
		if tok.subst {
			return nil, &syntaxError{offset: tok.start, msg: "template literals with ${} substitutions are not static"}
		}
		return decodeString(tok, tok.text[1:len(tok.text)-1])
	case tokNumber:
		return parseNumber(tok)
	case tokIdent:
		switch tok.text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		case "undefined":
			return jsvalue.Undefined{}, nil
		case "Infinity":
			return math.Inf(1), nil
		case "NaN":
			return math.NaN(), nil
		}
		return nil, &syntaxError{offset: tok.start, msg: fmt.Sprintf("identifier %q is not a static value", tok.text)}
	case tokRegex:
		return nil, &syntaxError{offset: tok.start, msg: "regular expressions are not static values"}
	}
	return nil, unexpected(tok, "expected a literal")
}

func (p *literalParser) parseObject() (*jsvalue.Object, error) {
	obj := jsvalue.NewObject()
	for {
		tok, err := p.lx.next()
		if err != nil {
			return nil, err
		}
		if tok.is(tokPunct, "}") {
			return obj, nil
		}

		key, err := p.propertyKey(tok)
		if err != nil {
			return nil, err
		}

		sep, err := p.lx.next()
		if err != nil {
			return nil, err
		}
		switch {
		case sep.is(tokPunct, ":"):
		case sep.is(tokPunct, ",") || sep.is(tokPunct, "}"):
			return nil, &syntaxError{offset: tok.start, msg: fmt.Sprintf("shorthand property %q is not static", key)}
		case sep.is(tokPunct, "("):
			return nil, &syntaxError{offset: tok.start, msg: fmt.Sprintf("method %q is not static", key)}
		default:
			return nil, unexpected(sep, "expected ':' after property key")
		}

		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		obj.Set(key, value)

		after, err := p.lx.next()
		if err != nil {
			return nil, err
		}
		switch {
		case after.is(tokPunct, ","):
		case after.is(tokPunct, "}"):
			return obj, nil
		default:
			return nil, unexpected(after, "expected ',' or '}' in object literal")
		}
	}
}

func (p *literalParser) propertyKey(tok token) (string, error) {
	switch tok.kind {
	case tokIdent:
		return tok.text, nil
	case tokString:
		s, err := decodeString(tok, tok.text[1:len(tok.text)-1])
		return s, err
	case tokNumber:
		f, err := parseNumber(tok)
		if err != nil {
			return "", err
		}
		return jsvalue.FormatNumber(f), nil
	case tokPunct:
		switch tok.text {
		case "[":
			return "", &syntaxError{offset: tok.start, msg: "computed property keys are not static"}
		case "...":
			return "", &syntaxError{offset: tok.start, msg: "spread properties are not static"}
		}
	}
	return "", unexpected(tok, "expected property key")
}

func (p *literalParser) parseArray() ([]any, error) {
	items := []any{}
	for {
		tok, err := p.lx.peek()
		if err != nil {
			return nil, err
		}
		switch {
		case tok.is(tokPunct, "]"):
			_, _ = p.lx.next()
			return items, nil
		case tok.is(tokPunct, ","):
			return nil, &syntaxError{offset: tok.start, msg: "array holes are not supported"}
		case tok.is(tokPunct, "..."):
			return nil, &syntaxError{offset: tok.start, msg: "spread elements are not static"}
		}

		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, value)

		after, err := p.lx.next()
		if err != nil {
			return nil, err
		}
		switch {
		case after.is(tokPunct, ","):
		case after.is(tokPunct, "]"):
			return items, nil
		default:
			return nil, unexpected(after, "expected ',' or ']' in array literal")
		}
	}
}

func parseNumber(tok token) (float64, error) {
	text := strings.ReplaceAll(tok.text, "_", "")
	if strings.HasSuffix(text, "n") {
		return 0, &syntaxError{offset: tok.start, msg: "bigint literals are not supported"}
	}

	lower := strings.ToLower(text)
	base := 0
	switch {
	case strings.HasPrefix(lower, "0x"):
		base = 16
	case strings.HasPrefix(lower, "0o"):
		base = 8
	case strings.HasPrefix(lower, "0b"):
		base = 2
	}
	if base != 0 {
		n, err := strconv.ParseUint(lower[2:], base, 64)
		if err != nil {
			return 0, &syntaxError{offset: tok.start, msg: fmt.Sprintf("invalid number %q", tok.text)}
		}
		return float64(n), nil
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, &syntaxError{offset: tok.start, msg: fmt.Sprintf("invalid number %q", tok.text)}
	}
	return f, nil
}

// decodeString resolves JavaScript escape sequences in the body of a string
// or template literal.
func decodeString(tok token, body string) (string, error) {
	if !strings.ContainsRune(body, '\\') {
		return body, nil
	}

	bad := func() error {
		return &syntaxError{offset: tok.start, msg: "invalid escape sequence"}
	}

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", bad()
		}
		switch e := body[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\r':
			if i+1 < len(body) && body[i+1] == '\n' {
				i++
			}
		case '\n':
			// line continuation
		case 'x':
			if i+2 >= len(body) {
				return "", bad()
			}
			n, err := strconv.ParseUint(body[i+1:i+3], 16, 8)
			if err != nil {
				return "", bad()
			}
			b.WriteRune(rune(n))
			i += 2
		case 'u':
			r, width, ok := decodeUnicodeEscape(body[i+1:])
			if !ok {
				return "", bad()
			}
			b.WriteRune(r)
			i += width
		default:
			r, size := utf8.DecodeRuneInString(body[i:])
			b.WriteRune(r)
			i += size - 1
		}
	}
	return b.String(), nil
}

// decodeUnicodeEscape parses the part of a \u escape after the "u".
func decodeUnicodeEscape(s string) (rune, int, bool) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 2 {
			return 0, 0, false
		}
		n, err := strconv.ParseUint(s[1:end], 16, 32)
		if err != nil || n > utf8.MaxRune {
			return 0, 0, false
		}
		return rune(n), end + 1, true
	}
	if len(s) < 4 {
		return 0, 0, false
	}
	n, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, 0, false
	}
	return rune(n), 4, true
}
