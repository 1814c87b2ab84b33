package render

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/dshills/amcorpus/internal/schema"
)

type markdownRenderer struct{}

var mdTemplate = template.Must(template.New("report").Parse(`# Corpus Report

**Verdict:** {{ .Summary.Verdict }}
**Orders:** {{ .Summary.AMCount }} | **Versions:** {{ .Summary.VersionCount }} | **Failures:** {{ .Summary.FailureCount }}
**Profile:** {{ .Input.Profile }} | **Sink:** {{ .Input.Sink }}
{{ if .Summary.ByKind }}
| Kind | Count |
|---|---|
{{ range $kind, $n := .Summary.ByKind }}| {{ $kind }} | {{ $n }} |
{{ end }}{{ end }}{{ if .Failures }}
---

## Failures
{{ range .Failures }}
### {{ if .AMID }}{{ .AMID }}{{ else }}corpus{{ end }} · {{ .Kind }}
{{ if .Version }}*Version:* {{ .Version }}

{{ end }}{{ .Message }}
{{ end }}{{ end }}{{ if .Versions }}
---

## Versions
{{ range .Versions }}
- {{ .AMID }} · {{ .Name }}{{ if .Default }} (default){{ end }}{{ if not .Applicable }} (not applicable){{ end }}{{ end }}
{{ end }}
---
*{{ .Tool }} {{ .Version }}{{ if .Meta.RunID }} | Run: {{ .Meta.RunID }}{{ end }} | Duration: {{ .Meta.DurationMS }} ms*
`))

func (r *markdownRenderer) Render(report *schema.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := mdTemplate.Execute(&buf, report); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.Bytes(), nil
}
