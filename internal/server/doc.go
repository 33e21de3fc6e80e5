// Package server implements the MCP (Model Context Protocol) server for wall
// texturing tools.
//
// This package provides a JSON-RPC 2.0 server that exposes wall detection and
// texture compositing through the MCP protocol, so an assistant can preview
// how a wallpaper or paint texture looks in a photographed room.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - notifications/cancelled: Stop a running tools/call
//   - ping: Health check
//
// # Available Tools
//
//   - image_load: Load an image and get metadata
//   - wall_detect: Find wall regions, their colors and an optional mask preview
//   - wall_texture_apply: Composite a texture onto the walls of a room
//   - wall_processing_estimate: Estimate the run time of wall_texture_apply
//
// # Concurrency
//
// Each tools/call runs on its own goroutine so the read loop stays free to
// receive cancellations. When a call's _meta carries a progressToken, the
// pipeline's stage progress is streamed as notifications/progress messages.
// A cancelled call answers with error code -32800. Output writes are
// serialized, so responses and notifications never interleave mid-line.
//
// # Image Caching
//
// The server maintains an in-memory cache of loaded images. Images are cached
// by path and reused across tool calls; a file whose size or modification
// time changes is decoded again.
package server
