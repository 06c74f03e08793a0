// Package web embeds the chat page template and its static assets.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
)

//go:embed templates/*.gohtml
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.gohtml"))

// DefaultSuggestions are the example claims offered under the input.
var DefaultSuggestions = []string{
	"Does garlic cure flu?",
	"Do vaccines contain microchips?",
	"Is it true that the earth is flat?",
	"Show me heart anatomy images",
}

// Page is the data rendered into the chat page.
type Page struct {
	UserID      string
	SessionID   string
	Suggestions []string
	Log         template.HTML
	InputOpen   bool
	// MaxBody is the largest send the server accepts, in bytes.
	MaxBody int64
}

// RenderPage writes the chat page.
func RenderPage(w io.Writer, p Page) error {
	if err := pageTemplate.ExecuteTemplate(w, "index.gohtml", p); err != nil {
		return fmt.Errorf("render page: %w", err)
	}
	return nil
}

// StaticHandler serves the embedded assets. Mount it under /static/.
func StaticHandler() http.Handler {
	subFS, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(subFS)))
}
