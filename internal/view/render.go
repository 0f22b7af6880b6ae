package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

// Renderer turns a State into HTML. Output depends on the State only.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.New("view").ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse view templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// MustRenderer panics if the embedded templates do not parse.
func MustRenderer() *Renderer {
	r, err := NewRenderer()
	if err != nil {
		panic(err)
	}
	return r
}

// Render writes the app fragment: the login prompt or the form and list.
func (r *Renderer) Render(w io.Writer, s State) error {
	return r.tmpl.ExecuteTemplate(w, "app", s)
}

// RenderString is Render into a string.
func (r *Renderer) RenderString(s State) (string, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Page writes the full document around the app fragment, including
// pending notices and the live-update script.
func (r *Renderer) Page(w io.Writer, s State) error {
	return r.tmpl.ExecuteTemplate(w, "page", s)
}
