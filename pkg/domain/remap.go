package domain

import (
	"fmt"
	"slices"
)

// NameRemapper produces the placeholder names a reloaded brain spec uses in
// place of names that were not stored literally. Both maps go from
// placeholder to the original name.
type NameRemapper interface {
	EntityNames(names []string) map[string]string
	CategoryNames(categories []string) map[string]string
}

// PositionalName formats the placeholder for the i-th item of a group.
func PositionalName(prefix string, i int) string { return fmt.Sprintf("%s_%d", prefix, i) }

// AlphabeticalRemapper reproduces the backend's observed scheme: entities
// become entity_N in alphabetical order of their declared names and
// categories become category_N by declared index.
type AlphabeticalRemapper struct{}

func (AlphabeticalRemapper) EntityNames(names []string) map[string]string {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	out := make(map[string]string, len(sorted))
	for i, n := range sorted {
		out[PositionalName("entity", i)] = n
	}
	return out
}

func (AlphabeticalRemapper) CategoryNames(categories []string) map[string]string {
	out := make(map[string]string, len(categories))
	for i, c := range categories {
		out[PositionalName("category", i)] = c
	}
	return out
}
