// Package matcher resolves a face encoding to the nearest known identity.
package matcher

import (
	"math"

	"github.com/andresmejia3/facewatch/internal/gallery"
)

// Unknown is the label reported for faces that match no known identity.
const Unknown = "Unknown"

// EmptyGalleryDistance is reported when there is nothing to compare against.
const EmptyGalleryDistance = 1.0

// Result is the outcome of matching one encoding.
type Result struct {
	Label    string  `json:"label"`
	Distance float64 `json:"distance"`
	IsMatch  bool    `json:"is_match"`
}

// Match finds the globally nearest reference encoding to query using
// Euclidean distance. Ties keep the first reference in gallery order.
// References whose dimensionality differs from the query are skipped; when no
// reference is comparable the result is the same as for an empty gallery.
//
// The nearest label is only reported when the distance is within threshold.
func Match(query []float64, g *gallery.Gallery, threshold float64) Result {
	best := -1
	bestDist := math.Inf(1)
	for i, id := range g.Identities() {
		for _, ref := range id.Encodings {
			if len(ref) != len(query) {
				continue
			}
			// strict less-than keeps the first occurrence on ties
			if d := Euclidean(query, ref); d < bestDist {
				bestDist = d
				best = i
			}
		}
	}

	if best < 0 {
		return Result{Label: Unknown, Distance: EmptyGalleryDistance}
	}
	// NaN thresholds never match
	if !(bestDist <= threshold) {
		return Result{Label: Unknown, Distance: bestDist}
	}
	return Result{Label: g.Identities()[best].Label, Distance: bestDist, IsMatch: true}
}

// Euclidean returns the L2 distance between equal-length vectors.
func Euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
