// Package diff computes normalized structural deltas between two document
// value trees. Sequence-valued fields are compared as multisets, scalar
// leaves and mapping keys exactly. Equality of subtrees is delegated to
// go-cmp with a numeric-literal comparer.
package diff

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/TFMV/driftscan/pkg/value"
)

// Change records the two sides of a changed leaf or branch.
type Change struct {
	From value.Value `json:"from"`
	To   value.Value `json:"to"`
}

// Delta is the normalized difference between two value trees. Paths are
// rooted at "$" and use dot notation for mapping keys and [i] for sequence
// positions in canonical order. A Delta serializes to primitives, sequences,
// and string-keyed objects only.
type Delta struct {
	Changed map[string]Change      `json:"changed,omitempty"`
	OnlyInA map[string]value.Value `json:"only_in_a,omitempty"`
	OnlyInB map[string]value.Value `json:"only_in_b,omitempty"`
}

// Empty reports whether the two trees were equal.
func (d Delta) Empty() bool {
	return len(d.Changed) == 0 && len(d.OnlyInA) == 0 && len(d.OnlyInB) == 0
}

// Detail returns the JSON encoding of the delta for the result sink.
func (d Delta) Detail() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("encoding delta: %w", err)
	}
	return string(data), nil
}

// numCmp makes go-cmp treat numeric literals like 1 and 1.0 as equal.
var numCmp = cmp.Comparer(func(x, y value.Number) bool {
	return value.NumEqual(x, y)
})

// Differ compares matched document pairs. The excluded paths are supplied
// once per run and applied uniformly to every pair.
type Differ struct {
	exclude []Path
}

// New builds a Differ with the given excluded path expressions.
func New(excludePaths []string) (*Differ, error) {
	d := &Differ{}
	for _, raw := range excludePaths {
		p, err := ParsePath(raw)
		if err != nil {
			return nil, err
		}
		d.exclude = append(d.exclude, p)
	}
	return d, nil
}

// Compare returns the structural delta between a and b. The delta is empty
// iff the trees are equal after excluding the configured paths, with
// sequences compared as multisets.
func (d *Differ) Compare(a, b value.Value) Delta {
	ca := value.Canonical(prune(a, d.exclude))
	cb := value.Canonical(prune(b, d.exclude))

	delta := Delta{}
	if cmp.Equal(ca, cb, numCmp) {
		return delta
	}
	walk("$", ca, cb, &delta)
	return delta
}

func (d *Delta) change(path string, a, b value.Value) {
	if d.Changed == nil {
		d.Changed = make(map[string]Change)
	}
	d.Changed[path] = Change{From: a, To: b}
}

func (d *Delta) onlyInA(path string, v value.Value) {
	if d.OnlyInA == nil {
		d.OnlyInA = make(map[string]value.Value)
	}
	d.OnlyInA[path] = v
}

func (d *Delta) onlyInB(path string, v value.Value) {
	if d.OnlyInB == nil {
		d.OnlyInB = make(map[string]value.Value)
	}
	d.OnlyInB[path] = v
}

// walk assumes both trees are in canonical form: mapping fields sorted by
// key, sequence elements sorted by canonical encoding.
func walk(path string, a, b value.Value, delta *Delta) {
	if a.Kind() != b.Kind() {
		delta.change(path, a, b)
		return
	}

	switch ta := a.(type) {
	case value.Mapping:
		tb := b.(value.Mapping)
		i, j := 0, 0
		for i < len(ta) && j < len(tb) {
			switch {
			case ta[i].Key < tb[j].Key:
				delta.onlyInA(childKey(path, ta[i].Key), ta[i].Val)
				i++
			case ta[i].Key > tb[j].Key:
				delta.onlyInB(childKey(path, tb[j].Key), tb[j].Val)
				j++
			default:
				walk(childKey(path, ta[i].Key), ta[i].Val, tb[j].Val, delta)
				i++
				j++
			}
		}
		for ; i < len(ta); i++ {
			delta.onlyInA(childKey(path, ta[i].Key), ta[i].Val)
		}
		for ; j < len(tb); j++ {
			delta.onlyInB(childKey(path, tb[j].Key), tb[j].Val)
		}

	case value.Sequence:
		tb := b.(value.Sequence)
		i, j := 0, 0
		for i < len(ta) && j < len(tb) {
			ka := value.CanonicalKey(ta[i])
			kb := value.CanonicalKey(tb[j])
			switch {
			case ka == kb:
				i++
				j++
			case ka < kb:
				delta.onlyInA(childIndex(path, i), ta[i])
				i++
			default:
				delta.onlyInB(childIndex(path, j), tb[j])
				j++
			}
		}
		for ; i < len(ta); i++ {
			delta.onlyInA(childIndex(path, i), ta[i])
		}
		for ; j < len(tb); j++ {
			delta.onlyInB(childIndex(path, j), tb[j])
		}

	default:
		if !cmp.Equal(a, b, numCmp) {
			delta.change(path, a, b)
		}
	}
}

func childKey(path, key string) string {
	return path + "." + key
}

func childIndex(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}
