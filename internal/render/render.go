// Package render writes a corpus report for people (Markdown) or tools
// (JSON).
package render

import (
	"fmt"
	"strings"

	"github.com/dshills/amcorpus/internal/schema"
)

// Renderer formats a corpus Report.
type Renderer interface {
	Render(report *schema.Report) ([]byte, error)
}

// NewRenderer returns the Renderer for format: "json" (also the empty
// string) or "md" / "markdown". Case is ignored.
func NewRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "json", "":
		return &jsonRenderer{}, nil
	case "md", "markdown":
		return &markdownRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown report format %q: supported formats are json, md", format)
	}
}
