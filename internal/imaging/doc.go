// Package imaging handles image files for the MCP server: loading and caching
// decoded rooms and textures, encoding rendered results, and describing
// colors for clients.
//
// # Loading
//
// ImageCache decodes PNG, JPEG, GIF, WebP, BMP and TIFF files. Files larger
// than the configured limit (10 MB by default) are rejected before decoding,
// and decoded formats outside that list are rejected after. The format is
// detected from file contents, not the extension.
//
// # Encoding
//
// Encode, EncodeBase64 and Save write PNG, JPEG, GIF, TIFF or BMP output.
// The quality setting applies to JPEG only.
//
// # Color Representation
//
// Colors are returned in multiple formats for flexibility:
//   - Hex: 6-character format "#RRGGBB"
//   - RGB: 8-bit components (0-255)
//   - HSL: Hue (0-359), Saturation (0-100), Lightness (0-100)
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Encoding functions are
// stateless.
package imaging
