package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// EncodedImage is a rendered image ready to return to a client.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Format      string `json:"format"`
	MimeType    string `json:"mime_type"`
	ImageBase64 string `json:"image_base64,omitempty"`

	// Data holds the encoded bytes. It is not serialized.
	Data []byte `json:"-"`
}

var mimeTypes = map[imaging.Format]string{
	imaging.PNG:  "image/png",
	imaging.JPEG: "image/jpeg",
	imaging.GIF:  "image/gif",
	imaging.TIFF: "image/tiff",
	imaging.BMP:  "image/bmp",
}

// ParseFormat maps a format name or file extension ("png", ".jpg", "jpeg",
// "tiff", ...) to an output format. An empty name means PNG.
func ParseFormat(name string) (imaging.Format, error) {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".")
	if name == "" {
		return imaging.PNG, nil
	}
	f, err := imaging.FormatFromExtension(name)
	if err != nil {
		return 0, fmt.Errorf("unsupported output format %q", name)
	}
	return f, nil
}

// FormatFromPath picks the output format from a file path's extension,
// falling back to fallback when the path has no extension.
func FormatFromPath(path, fallback string) (imaging.Format, error) {
	if ext := filepath.Ext(path); ext != "" {
		return ParseFormat(ext)
	}
	return ParseFormat(fallback)
}

// Encode renders img in the named format. quality in [1,100] applies to JPEG
// output and is ignored otherwise; out-of-range values are clamped.
func Encode(img image.Image, format string, quality int) (*EncodedImage, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return encode(img, f, quality)
}

func encode(img image.Image, f imaging.Format, quality int) (*EncodedImage, error) {
	quality = min(max(quality, 1), 100)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, f, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	b := img.Bounds()
	return &EncodedImage{
		Width:    b.Dx(),
		Height:   b.Dy(),
		Format:   strings.ToLower(f.String()),
		MimeType: mimeTypes[f],
		Data:     buf.Bytes(),
	}, nil
}

// EncodeBase64 is Encode with the bytes also stored base64 encoded in
// ImageBase64.
func EncodeBase64(img image.Image, format string, quality int) (*EncodedImage, error) {
	out, err := Encode(img, format, quality)
	if err != nil {
		return nil, err
	}
	out.ImageBase64 = base64.StdEncoding.EncodeToString(out.Data)
	return out, nil
}

// Save encodes img to path. The format comes from the path's extension, or
// from format when the path has none.
func Save(img image.Image, path, format string, quality int) (*EncodedImage, error) {
	f, err := FormatFromPath(path, format)
	if err != nil {
		return nil, err
	}
	out, err := encode(img, f, quality)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, out.Data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}
	return out, nil
}
