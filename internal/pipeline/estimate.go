package pipeline

import "time"

// EstimateProcessingTime returns a coarse wall-clock estimate for processing
// a room and texture of the given encoded sizes with opts.
//
// The estimate starts at 15s and adds 5s for a room file over 500 kB, 3s for
// a texture file over 300 kB, 5s for perspective correction, 3s for lighting
// match and 2s for edge smoothing above 80. The total is clamped to
// [10s, 45s].
func EstimateProcessingTime(roomBytes, textureBytes int64, opts Options) time.Duration {
	opts = opts.Normalize()

	seconds := 15
	if roomBytes > 500000 {
		seconds += 5
	}
	if textureBytes > 300000 {
		seconds += 3
	}
	if opts.PerspectiveCorrection {
		seconds += 5
	}
	if opts.LightingMatch {
		seconds += 3
	}
	if opts.EdgeSmoothing > 80 {
		seconds += 2
	}

	seconds = min(max(seconds, 10), 45)
	return time.Duration(seconds) * time.Second
}
