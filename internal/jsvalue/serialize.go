package jsvalue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// IsIdentifier reports whether s can be used as a bare property name.
func IsIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// Serialize renders v as JavaScript source. Output is deterministic: objects
// keep insertion order, plain Go maps are emitted with sorted keys.
func Serialize(v any) string {
	var b strings.Builder
	writeValue(&b, v, 0)
	return b.String()
}

func writeValue(b *strings.Builder, v any, depth int) {
	switch x := v.(type) {
	case nil:
		b.WriteString("null")
	case Undefined:
		b.WriteString("undefined")
	case Raw:
		b.WriteString(string(x))
	case string:
		b.WriteString(Quote(x))
	case bool:
		b.WriteString(strconv.FormatBool(x))
	case float64:
		b.WriteString(FormatNumber(x))
	case int:
		b.WriteString(strconv.Itoa(x))
	case int64:
		b.WriteString(strconv.FormatInt(x, 10))
	case []string:
		items := make([]any, len(x))
		for i, s := range x {
			items[i] = s
		}
		writeArray(b, items, depth)
	case []any:
		writeArray(b, x, depth)
	case *Object:
		if x == nil {
			b.WriteString("undefined")
			return
		}
		writeObject(b, x.props, depth)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		props := make([]Property, len(keys))
		for i, k := range keys {
			props[i] = Property{Key: k, Value: x[k]}
		}
		writeObject(b, props, depth)
	default:
		// Unknown Go values are emitted as JSON, which is valid JavaScript.
		data, err := json.Marshal(x)
		if err != nil {
			b.WriteString("undefined")
			return
		}
		b.Write(data)
	}
}

func writeArray(b *strings.Builder, items []any, depth int) {
	if len(items) == 0 {
		b.WriteString("[]")
		return
	}
	b.WriteString("[\n")
	for i, item := range items {
		indent(b, depth+1)
		writeValue(b, item, depth+1)
		if i < len(items)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	indent(b, depth)
	b.WriteByte(']')
}

func writeObject(b *strings.Builder, props []Property, depth int) {
	if len(props) == 0 {
		b.WriteString("{}")
		return
	}
	b.WriteString("{\n")
	for i, p := range props {
		indent(b, depth+1)
		if IsIdentifier(p.Key) {
			b.WriteString(p.Key)
		} else {
			b.WriteString(Quote(p.Key))
		}
		b.WriteString(": ")
		writeValue(b, p.Value, depth+1)
		if i < len(props)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	indent(b, depth)
	b.WriteByte('}')
}

func indent(b *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		b.WriteString("  ")
	}
}

// Quote returns s as a double-quoted JavaScript string literal.
func Quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return strconv.Quote(s)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// FormatNumber formats f the way JavaScript prints number literals for the
// common cases.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

// ImportName derives a stable identifier for a hoisted import from an index.
func ImportName(prefix string, i int) string {
	return fmt.Sprintf("%s_%d", prefix, i)
}
