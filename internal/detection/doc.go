// Package detection finds wall-like areas in a room photograph.
//
// Detection is heuristic: it looks for large areas of flat, mid-luminance
// colour. There is no trained model. The package provides the statistics, the
// two segmentation strategies and the region types that the compositing stages
// consume.
//
// # Region Analysis
//
// Uniformity, Luminance and AverageColor describe a square block of a raster
// (the *Rect variants accept any rectangle):
//
//   - Uniformity: 1 minus the normalized colour variance, in [0,1]
//   - Luminance: mean ITU-R BT.601 luma (0.299*R + 0.587*G + 0.114*B)
//   - AverageColor: mean R, G, B and luminance
//
// # Segmentation Strategies
//
// Two interchangeable strategies implement Strategy:
//
//   - BlockGrowth: seeds on flat 20px grid blocks with luminance in (80, 240)
//     and grows each seed outward in 20px strips while the colour stays flat.
//     Regions smaller than 80×80 are dropped.
//   - FloodFill: seeds every 10px and flood-fills 4-connected pixels within an
//     RGB distance of 30 from the seed colour. Regions smaller than 50×50 are
//     dropped.
//
// Segmenter runs BlockGrowth first and falls back to FloodFill when it finds
// nothing or only a near-zero area.
//
// # Regions
//
// A Region is either an axis-aligned Box or a polygon (an orb.Ring). Detected
// regions are always boxes; polygons come from caller selections. Merge
// reduces overlapping regions to a disjoint set.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Boxes cover [X, X+Width) × [Y, Y+Height)
//
// Detected regions are reported relative to the raster's origin.
//
// # Determinism
//
// Every function here is pure: identical pixel data always yields identical
// regions in identical order.
package detection
