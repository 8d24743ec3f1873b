package pages

import (
	"regexp"
	"strings"

	"github.com/conneroisu/pagegen/internal/errors"
)

// SegmentKind classifies one path component of a route.
type SegmentKind int

const (
	SegmentStatic SegmentKind = iota
	SegmentDynamic
	SegmentCatchAll
)

// String returns the string representation of the SegmentKind
func (k SegmentKind) String() string {
	switch k {
	case SegmentStatic:
		return "static"
	case SegmentDynamic:
		return "dynamic"
	case SegmentCatchAll:
		return "catch-all"
	default:
		return "unknown"
	}
}

// Segment is one path component. Value is the literal for static segments
// and the parameter name otherwise.
type Segment struct {
	Kind  SegmentKind `json:"kind"`
	Value string      `json:"value"`
}

// String renders the segment in router pattern syntax.
func (s Segment) String() string {
	switch s.Kind {
	case SegmentDynamic:
		return ":" + s.Value
	case SegmentCatchAll:
		return ":" + s.Value + "*"
	default:
		return s.Value
	}
}

// key identifies the segment for duplicate detection. Parameter names do not
// take part: [id] and [slug] match the same URLs.
func (s Segment) key() string {
	switch s.Kind {
	case SegmentDynamic:
		return ":"
	case SegmentCatchAll:
		return "*"
	default:
		return "=" + s.Value
	}
}

var (
	paramNameRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
	bracketRe   = regexp.MustCompile(`^\[(\.\.\.)?([^\[\]]*)\]$`)
)

// parseSegment classifies a file name without extension, or a directory
// name. index reports that the name adds no segment.
func parseSegment(file, name string) (seg Segment, index bool, err error) {
	if name == "index" {
		return Segment{}, true, nil
	}

	if !strings.ContainsAny(name, "[]") {
		return Segment{Kind: SegmentStatic, Value: name}, false, nil
	}

	m := bracketRe.FindStringSubmatch(name)
	if m == nil {
		return Segment{}, false, errors.NewMalformedSegmentError(file, name,
			"brackets must enclose the whole segment")
	}

	param := m[2]
	switch {
	case param == "":
		return Segment{}, false, errors.NewMalformedSegmentError(file, name, "empty parameter name")
	case strings.HasPrefix(param, "."):
		return Segment{}, false, errors.NewMalformedSegmentError(file, name,
			"catch-all parameters are written [...name]")
	case !paramNameRe.MatchString(param):
		return Segment{}, false, errors.NewMalformedSegmentError(file, name,
			"invalid parameter name "+param)
	}

	if m[1] != "" {
		return Segment{Kind: SegmentCatchAll, Value: param}, false, nil
	}
	return Segment{Kind: SegmentDynamic, Value: param}, false, nil
}
