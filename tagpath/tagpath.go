// Package tagpath parses Logix tag strings ("Local:2:I.Ch0Data", "arr[258]")
// into an ordered sequence of name and array-index segments, following the
// grammar tag = segment ("." name | "[" integer "]")*.
package tagpath

import (
	"fmt"
	"strconv"
	"strings"
)

// Segment is either a name (Name non-empty, IsIndex false) or an element
// index (IsIndex true).
type Segment struct {
	Name    string
	Index   uint32
	IsIndex bool
}

// Path is an ordered, immutable sequence of segments. The first segment is
// always a name.
type Path []Segment

// String renders the path back to its dotted/bracketed textual form.
func (p Path) String() string {
	var sb strings.Builder
	for i, s := range p {
		if s.IsIndex {
			fmt.Fprintf(&sb, "[%d]", s.Index)
			continue
		}
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(s.Name)
	}
	return sb.String()
}

// Parse converts a tag string into a Path. Array-index text is parsed with
// C's atol/strtol(s, NULL, 0) conventions: a leading "0x"/"0X" selects hex,
// a leading "0" with no "x" selects octal, anything else is decimal.
func Parse(tag string) (Path, error) {
	if tag == "" {
		return nil, fmt.Errorf("tagpath: empty tag")
	}
	if tag[0] == '[' {
		return nil, fmt.Errorf("tagpath: %q: first segment cannot be an index", tag)
	}

	var path Path
	i := 0
	n := len(tag)

	// First segment: a name running up to the first '.' or '['.
	start := i
	for i < n && tag[i] != '.' && tag[i] != '[' {
		i++
	}
	if i == start {
		return nil, fmt.Errorf("tagpath: %q: empty name segment", tag)
	}
	path = append(path, Segment{Name: tag[start:i]})

	for i < n {
		switch tag[i] {
		case '.':
			i++
			start := i
			for i < n && tag[i] != '.' && tag[i] != '[' {
				i++
			}
			if i == start {
				return nil, fmt.Errorf("tagpath: %q: zero-length name between separators", tag)
			}
			path = append(path, Segment{Name: tag[start:i]})

		case '[':
			i++
			start := i
			for i < n && tag[i] != ']' {
				i++
			}
			if i >= n {
				return nil, fmt.Errorf("tagpath: %q: unclosed '['", tag)
			}
			text := tag[start:i]
			idx, err := strconv.ParseInt(text, 0, 64)
			if err != nil || idx < 0 {
				return nil, fmt.Errorf("tagpath: %q: invalid index %q: %w", tag, text, err)
			}
			path = append(path, Segment{Index: uint32(idx), IsIndex: true})
			i++ // consume ']'

		default:
			return nil, fmt.Errorf("tagpath: %q: unexpected character %q at offset %d", tag, tag[i], i)
		}
	}

	return path, nil
}
