package render

import (
	"encoding/json"
	"fmt"

	"github.com/dshills/amcorpus/internal/schema"
)

type jsonRenderer struct{}

// Render encodes report as indented JSON ending with a newline. Empty
// failure and version lists are written as [] so consumers never see null.
func (r *jsonRenderer) Render(report *schema.Report) ([]byte, error) {
	out := *report
	if out.Failures == nil {
		out.Failures = []schema.Failure{}
	}
	if out.Versions == nil {
		out.Versions = []schema.Entry{}
	}
	if out.Summary.ByKind == nil {
		out.Summary.ByKind = map[schema.Kind]int{}
	}
	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding corpus report: %w", err)
	}
	return append(data, '\n'), nil
}
