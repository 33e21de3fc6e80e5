package imaging

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// DefaultMaxFileSize is the largest file Load accepts unless configured
// otherwise.
const DefaultMaxFileSize = 10 * 1024 * 1024

var (
	// ErrFileTooLarge is returned for files over the cache's size limit.
	ErrFileTooLarge = errors.New("image file too large")

	// ErrUnsupportedFormat is returned for decodable images outside the
	// allow-list.
	ErrUnsupportedFormat = errors.New("unsupported image format")
)

// supportedFormats lists the decoder names accepted by Load.
var supportedFormats = map[string]bool{
	"png":  true,
	"jpeg": true,
	"gif":  true,
	"webp": true,
	"bmp":  true,
	"tiff": true,
}

// ImageCache provides thread-safe caching of decoded images keyed by path.
//
// Before decoding, Load checks the file size against the cache's limit. A
// cached entry is reused only while the file's size and modification time are
// unchanged, so an edited file is decoded again on the next Load.
//
// # Example Usage
//
//	cache := imaging.NewImageCache(imaging.DefaultMaxFileSize)
//	img, err := cache.Load("/path/to/room.jpg")
//	if errors.Is(err, imaging.ErrFileTooLarge) {
//	    ...
//	}
type ImageCache struct {
	mu          sync.RWMutex
	maxFileSize int64
	images      map[string]cacheEntry
}

type cacheEntry struct {
	img     image.Image
	format  string
	size    int64
	modTime time.Time
}

// NewImageCache creates an empty cache that rejects files larger than
// maxFileSize bytes. A non-positive limit uses DefaultMaxFileSize.
func NewImageCache(maxFileSize int64) *ImageCache {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &ImageCache{
		maxFileSize: maxFileSize,
		images:      make(map[string]cacheEntry),
	}
}

// MaxFileSize returns the size limit in bytes.
func (c *ImageCache) MaxFileSize() int64 { return c.maxFileSize }

// Load returns the decoded image at path, from the cache when the file is
// unchanged.
//
// # Errors
//
//   - the file does not exist or cannot be read
//   - the file exceeds the size limit (ErrFileTooLarge)
//   - the content is not a decodable image
//   - the decoded format is not png, jpeg, gif, webp, bmp or tiff
//     (ErrUnsupportedFormat)
func (c *ImageCache) Load(path string) (image.Image, error) {
	e, err := c.load(path)
	if err != nil {
		return nil, err
	}
	return e.img, nil
}

func (c *ImageCache) load(path string) (cacheEntry, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return cacheEntry{}, fmt.Errorf("failed to open image: %w", err)
	}

	c.mu.RLock()
	e, ok := c.images[path]
	c.mu.RUnlock()
	if ok && e.size == stat.Size() && e.modTime.Equal(stat.ModTime()) {
		return e, nil
	}

	if stat.Size() > c.maxFileSize {
		return cacheEntry{}, fmt.Errorf("%w: %s is %d bytes, limit %d",
			ErrFileTooLarge, path, stat.Size(), c.maxFileSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return cacheEntry{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return cacheEntry{}, fmt.Errorf("failed to decode image: %w", err)
	}
	if !supportedFormats[format] {
		return cacheEntry{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	e = cacheEntry{img: img, format: format, size: stat.Size(), modTime: stat.ModTime()}
	c.mu.Lock()
	c.images[path] = e
	c.mu.Unlock()

	return e, nil
}

// Clear removes all images from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Evict removes a specific image from the cache by its path.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	c.mu.Unlock()
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the decoder that read the file: "png", "jpeg", "gif", "webp",
	// "bmp" or "tiff". It reflects file contents, not the extension.
	Format string `json:"format"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// HasAlpha indicates whether the image has an alpha (transparency) channel.
	HasAlpha bool `json:"has_alpha"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through cache and describes it.
//
// # Color Depth Detection
//
// Color depth is determined by the Go image type:
//   - *image.RGBA64, *image.NRGBA64, *image.Gray16 -> "16-bit"
//   - All other types -> "8-bit"
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	e, err := cache.load(path)
	if err != nil {
		return nil, err
	}

	hasAlpha := false
	colorDepth := "8-bit"
	switch e.img.(type) {
	case *image.RGBA, *image.NRGBA:
		hasAlpha = true
	case *image.RGBA64, *image.NRGBA64:
		hasAlpha = true
		colorDepth = "16-bit"
	case *image.Gray16:
		colorDepth = "16-bit"
	}

	bounds := e.img.Bounds()
	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        e.format,
		ColorDepth:    colorDepth,
		HasAlpha:      hasAlpha,
		FileSizeBytes: e.size,
	}, nil
}
