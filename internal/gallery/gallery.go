// Package gallery holds the reference encodings of the identities the
// watcher knows about. A Gallery is built once at startup and never changes.
package gallery

import (
	"errors"
	"fmt"
	"strings"
)

// KnownIdentity is a labelled set of reference encodings.
type KnownIdentity struct {
	Label     string      `json:"label"`
	Encodings [][]float64 `json:"encodings"`
}

// Gallery is an ordered, immutable collection of known identities.
// Iteration order is the order identities were supplied in.
type Gallery struct {
	identities []KnownIdentity
	dim        int
}

var ErrDimensionMismatch = errors.New("encoding dimension mismatch")

// New validates identities and returns a Gallery holding copies of them.
// An empty gallery is valid: every query against it resolves to Unknown.
func New(identities []KnownIdentity) (*Gallery, error) {
	g := &Gallery{identities: make([]KnownIdentity, 0, len(identities))}
	seen := make(map[string]bool, len(identities))

	for i, id := range identities {
		label := strings.TrimSpace(id.Label)
		if label == "" {
			return nil, fmt.Errorf("identity %d: label is empty", i)
		}
		if seen[label] {
			return nil, fmt.Errorf("identity %q: duplicate label", label)
		}
		seen[label] = true
		if len(id.Encodings) == 0 {
			return nil, fmt.Errorf("identity %q: no reference encodings", label)
		}

		encs := make([][]float64, len(id.Encodings))
		for j, enc := range id.Encodings {
			if len(enc) == 0 {
				return nil, fmt.Errorf("identity %q encoding %d: empty vector", label, j)
			}
			if g.dim == 0 {
				g.dim = len(enc)
			}
			if len(enc) != g.dim {
				return nil, fmt.Errorf("identity %q encoding %d: %w (got %d, want %d)", label, j, ErrDimensionMismatch, len(enc), g.dim)
			}
			encs[j] = append([]float64(nil), enc...)
		}
		g.identities = append(g.identities, KnownIdentity{Label: label, Encodings: encs})
	}
	return g, nil
}

// Merge concatenates identity lists, folding duplicate labels into the first
// occurrence so the result can be passed to New.
func Merge(lists ...[]KnownIdentity) []KnownIdentity {
	var out []KnownIdentity
	index := make(map[string]int)
	for _, list := range lists {
		for _, id := range list {
			label := strings.TrimSpace(id.Label)
			if i, ok := index[label]; ok {
				out[i].Encodings = append(out[i].Encodings, id.Encodings...)
				continue
			}
			index[label] = len(out)
			out = append(out, KnownIdentity{Label: label, Encodings: append([][]float64(nil), id.Encodings...)})
		}
	}
	return out
}

// Identities returns the identities in gallery order. Callers must not modify the vectors.
func (g *Gallery) Identities() []KnownIdentity {
	if g == nil {
		return nil
	}
	return g.identities
}

// Len returns the number of identities.
func (g *Gallery) Len() int {
	if g == nil {
		return 0
	}
	return len(g.identities)
}

// Empty reports whether the gallery has no identities.
func (g *Gallery) Empty() bool { return g.Len() == 0 }

// Dim returns the shared encoding dimensionality, or 0 for an empty gallery.
func (g *Gallery) Dim() int {
	if g == nil {
		return 0
	}
	return g.dim
}

// Lookup returns the identity with the given label.
func (g *Gallery) Lookup(label string) (KnownIdentity, bool) {
	for _, id := range g.Identities() {
		if id.Label == label {
			return id, true
		}
	}
	return KnownIdentity{}, false
}
