// Package dashboard provides the embedded web UI assets for podbridge.
//
// The page lists every entity grouped by device and follows /api/sse for
// live updates. It is served by the server package at the root path ("/").
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Entity table with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
