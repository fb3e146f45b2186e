package changeset

import (
	"slices"
	"strings"
)

// Compare orders two identifiers. When both start with digits the numeric
// prefixes are compared first, so "10_x" sorts after "9_y"; otherwise, and
// for equal prefixes, plain byte-wise comparison decides.
func Compare(a, b string) int {
	va, okA := versionOf(a)
	vb, okB := versionOf(b)
	if okA && okB {
		if c := compareDigits(va, vb); c != 0 {
			return c
		}
	}
	return strings.Compare(a, b)
}

func compareDigits(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// Sort returns a copy of list in ascending identifier order.
func Sort(list []Changeset) []Changeset {
	out := slices.Clone(list)
	slices.SortStableFunc(out, func(a, b Changeset) int {
		return Compare(a.ID, b.ID)
	})
	return out
}

// Validate rejects sets that cannot be applied deterministically: blank or
// padded identifiers, missing forward operations and duplicate identifiers.
// Distinct identifiers sharing a numeric prefix are fine; Compare orders
// them by the full identifier.
func Validate(list []Changeset) error {
	seen := make(map[string]struct{}, len(list))
	for _, cs := range list {
		if cs.ID == "" || strings.TrimSpace(cs.ID) != cs.ID {
			return &ConfigError{Reason: "blank or padded identifier", IDs: []string{cs.ID}}
		}
		if cs.Up == nil {
			return &ConfigError{Reason: "missing forward operation", IDs: []string{cs.ID}}
		}
		if _, dup := seen[cs.ID]; dup {
			return &ConfigError{Reason: "duplicate identifier", IDs: []string{cs.ID}}
		}
		seen[cs.ID] = struct{}{}
	}
	return nil
}

// Ordered validates list and returns it sorted.
func Ordered(list []Changeset) ([]Changeset, error) {
	if err := Validate(list); err != nil {
		return nil, err
	}
	return Sort(list), nil
}
