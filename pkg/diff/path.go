package diff

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/TFMV/driftscan/pkg/value"
)

// Path is a parsed exclusion path expression.
//
// The grammar is dot-separated segments rooted at the document top level.
// A segment names a mapping key, a decimal sequence index, or "*" to match
// any single key or index, e.g. "metadata.updated_at" or "tags.*.ts".
// Indices refer to the document's stored order, before canonicalization.
type Path []string

// ParsePath validates and splits an exclusion path expression.
func ParsePath(raw string) (Path, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty exclusion path")
	}
	segments := strings.Split(raw, ".")
	for _, seg := range segments {
		if seg == "" {
			return nil, fmt.Errorf("exclusion path %q has an empty segment", raw)
		}
	}
	return Path(segments), nil
}

func (p Path) String() string { return strings.Join(p, ".") }

// prune returns v with every node matched by one of the paths removed.
// Matching happens against the stored tree, so excluded subtrees never
// participate in canonicalization or comparison.
func prune(v value.Value, paths []Path) value.Value {
	if len(paths) == 0 {
		return v
	}

	switch t := v.(type) {
	case value.Mapping:
		out := make(value.Mapping, 0, len(t))
		for _, f := range t {
			rest, drop := advance(paths, f.Key)
			if drop {
				continue
			}
			out = append(out, value.Field{Key: f.Key, Val: prune(f.Val, rest)})
		}
		return out

	case value.Sequence:
		out := make(value.Sequence, 0, len(t))
		for i, el := range t {
			rest, drop := advance(paths, strconv.Itoa(i))
			if drop {
				continue
			}
			out = append(out, prune(el, rest))
		}
		return out

	default:
		return v
	}
}

// advance filters paths to those whose head matches the segment and returns
// their tails, plus whether an exactly-consumed path drops the node here.
func advance(paths []Path, segment string) (rest []Path, drop bool) {
	for _, p := range paths {
		if len(p) == 0 {
			continue
		}
		if p[0] != "*" && p[0] != segment {
			continue
		}
		if len(p) == 1 {
			return nil, true
		}
		rest = append(rest, p[1:])
	}
	return rest, false
}
