// Package web embeds the built discussion-room frontend (public/) and
// provides an HTTP handler that serves it as a single-page application.
//
// Every room token resolves to the same page; the client presents the token
// over the websocket channel to join its room.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
)

//go:embed all:public
var publicFS embed.FS

// SPAHandler returns an http.Handler that serves the embedded frontend.
// It serves static files from public/, and falls back to index.html for
// any path that doesn't match a file (room tokens are client-side routes).
func SPAHandler() http.Handler {
	subFS, err := fs.Sub(publicFS, "public")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}

	fileServer := http.FileServer(http.FS(subFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Try to serve the file directly.
		path := strings.TrimPrefix(r.URL.Path, "/")
		if path == "" {
			path = "index.html"
		}

		// Check if file exists in the embedded FS.
		if f, err := subFS.Open(path); err == nil {
			if closeErr := f.Close(); closeErr != nil {
				slog.Debug("web: failed to close embedded file", "path", path, "error", closeErr)
			}
			fileServer.ServeHTTP(w, r)
			return
		}

		// Not found: serve index.html for SPA routing.
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}
