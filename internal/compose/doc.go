// Package compose turns wall regions and a texture into a finished room image.
//
// Three pieces run in order:
//
//   - MaskBuilder rasterizes regions into a binary Mask the size of the room.
//     An empty result is replaced by the top band of the frame, so the mask
//     is never empty.
//   - PatternGenerator resamples the texture into a Pattern whose tile is at
//     most 300px on its longer side. The tile repeats in both axes without
//     mirroring.
//   - Compositor blends the pattern over the masked pixels, optionally
//     re-applies the room's shading, and falls back to a multiply blend when
//     the primary pass changed nothing.
//
// Pixels outside the mask are never modified. All rasters are zero-origin
// *image.NRGBA values with straight (non-premultiplied) alpha.
package compose
