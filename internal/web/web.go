// Package web renders the drawing page.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/index.html
var templateFS embed.FS

// CanvasSize is the fixed width and height of the drawing surface in pixels.
const CanvasSize = 250

type PageData struct {
	CanvasSize  int
	StrokeWidth int
	// ModelError is shown instead of results when the model failed to load.
	ModelError string
}

type Page struct {
	tmpl *template.Template
}

func NewPage() (*Page, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	return &Page{tmpl: tmpl}, nil
}

// Render executes the page into a buffer first so a template failure never
// leaves a half-written response.
func (p *Page) Render(w io.Writer, data PageData) error {
	if data.CanvasSize == 0 {
		data.CanvasSize = CanvasSize
	}
	var buf bytes.Buffer
	if err := p.tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}
