package detection

import "image"

// Merge combines overlapping regions until no two remain overlapping.
//
// Regions are compared by their integer bounding boxes. Two boxes overlap when
// their intersection is non-empty; boxes that merely touch along an edge are
// left separate. A region that overlaps nothing is returned untouched (a
// polygon stays a polygon); merged groups become the box of their union.
//
// The result keeps input order for untouched regions, so merging an already
// disjoint list returns it unchanged.
func Merge(regions []Region) []Region {
	type entry struct {
		region Region
		box    image.Rectangle
	}

	merged := make([]entry, 0, len(regions))
	for _, r := range regions {
		cur := entry{region: r, box: r.Bounds()}
		absorbed := false

		// Each absorb can grow cur into entries it previously missed, so
		// rescan until it no longer overlaps anything already kept.
		for {
			i := -1
			for j := range merged {
				if cur.box.Overlaps(merged[j].box) {
					i = j
					break
				}
			}
			if i < 0 {
				break
			}
			cur.box = cur.box.Union(merged[i].box)
			absorbed = true
			merged = append(merged[:i], merged[i+1:]...)
		}

		if absorbed {
			cur.region = Region{Kind: KindBox, Box: BoxFromRect(cur.box)}
		}
		merged = append(merged, cur)
	}

	out := make([]Region, len(merged))
	for i, e := range merged {
		out[i] = e.region
	}
	return out
}

// Overlaps reports whether the bounding boxes of a and b share at least one
// pixel.
func Overlaps(a, b Region) bool {
	return a.Bounds().Overlaps(b.Bounds())
}
