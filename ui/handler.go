// Package ui serves the single-page browser front end for the HTTP API.
package ui

import "net/http"

// Handler serves the front end. Register it on "GET /" so the API routes,
// which are more specific, take precedence.
func Handler() http.Handler {
	return http.FileServerFS(DistFS())
}
