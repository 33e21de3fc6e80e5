// Package pipeline runs the full wall-texture process on a room photo.
//
// A run moves through seven stages, reporting each one and a stream of
// progress percentages to the caller's Hooks:
//
//	analyzing   15%  validate rasters and selection, copy inputs
//	detecting   35%  find wall candidates (skipped for manual selections)
//	isolating   55%  merge overlapping candidates
//	masking     70%  rasterize regions into a binary mask
//	mapping     85%  build the repeating texture tile
//	rendering   95%  blend the tile over the masked room pixels
//	complete   100%  assemble the result
//
// Cancellation is observed between stages through the context. A cancelled
// run returns an error matching ErrCancelled and never a partial image.
//
// Typical usage:
//
//	p := pipeline.New(pipeline.DefaultConfig(), logger)
//	res, err := p.Process(ctx, room, texture, pipeline.DefaultOptions(), pipeline.Hooks{})
//	if errors.Is(err, pipeline.ErrInvalidInput) {
//		...
//	}
package pipeline
