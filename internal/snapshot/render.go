package snapshot

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Renderer turns a Snapshot into the static dashboard markup. Rendering is a
// pure function of the snapshot: identical snapshots render to identical
// bytes, with the generation timestamp isolated on its own comment line.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the embedded dashboard template.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render executes the dashboard template against the snapshot.
//
// The generation timestamp is emitted as the first line, outside the
// template, so artifact comparisons can skip it.
func (r *Renderer) Render(snap *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "<!-- generated %s -->\n", snap.GeneratedAt.UTC().Format(time.RFC3339))
	if err := r.tmpl.ExecuteTemplate(&buf, "index.html.tmpl", snap); err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}
	return buf.Bytes(), nil
}
