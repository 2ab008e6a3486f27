// Package ui embeds the browser page for filing and editing issues.
package ui

import (
	"bytes"
	"embed"
	"fmt"
	"net/http"
	"time"
)

//go:embed dist/index.html
var distFS embed.FS

// Page returns the embedded index.html.
func Page() ([]byte, error) {
	return distFS.ReadFile("dist/index.html")
}

// Handler serves the page. It is mounted only on the site root, so every
// request it sees is for index.html.
func Handler() (http.Handler, error) {
	page, err := Page()
	if err != nil {
		return nil, fmt.Errorf("read embedded page: %w", err)
	}
	loaded := time.Now()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		http.ServeContent(w, r, "index.html", loaded, bytes.NewReader(page))
	}), nil
}
