// Package diff compares the applicable content of two versions of an order
// line by line.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/dshills/amcorpus/internal/am"
)

// Lines flattens the applicable content of a into lines: one per section
// title, active alinea and table row. Inactive sections are dropped.
func Lines(a am.ArreteMinisteriel) []string {
	var out []string
	appendSections(&out, a.Sections, 1)
	return out
}

func appendSections(out *[]string, sections []am.StructuredText, depth int) {
	for _, s := range sections {
		if s.Applicability != nil && !s.Applicability.Active {
			continue
		}
		*out = append(*out, strings.Repeat("#", depth)+" "+strings.TrimSpace(s.Title))
		for _, a := range s.Alineas {
			if a.Inactive {
				continue
			}
			if a.Table != nil {
				for _, row := range a.Table.Rows {
					*out = append(*out, rowLine(row))
				}
				continue
			}
			for _, line := range strings.Split(a.Text, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					*out = append(*out, line)
				}
			}
		}
		appendSections(out, s.Sections, depth+1)
	}
}

func rowLine(row am.Row) string {
	if row.InlineContent != nil && !row.IsHeader {
		return "| " + strings.TrimSpace(*row.InlineContent) + " |"
	}
	cells := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		cells[i] = strings.TrimSpace(c.Content)
	}
	return "| " + strings.Join(cells, " | ") + " |"
}

// Differences is the line diff between two texts.
type Differences struct {
	Before string
	After  string
	Diffs  []diffmatchpatch.Diff
}

// Compare diffs the flattened lines of before and after.
func Compare(before, after am.ArreteMinisteriel) Differences {
	b := joinLines(Lines(before))
	a := joinLines(Lines(after))
	dmp := diffmatchpatch.New()
	chars1, chars2, lines := dmp.DiffLinesToChars(b, a)
	diffs := dmp.DiffMain(chars1, chars2, false)
	return Differences{Before: b, After: a, Diffs: dmp.DiffCharsToLines(diffs, lines)}
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// Modifications counts inserted and deleted lines.
func (d Differences) Modifications() int {
	n := 0
	for _, df := range d.Diffs {
		if df.Type != diffmatchpatch.DiffEqual {
			n += strings.Count(df.Text, "\n")
		}
	}
	return n
}

// Equal reports whether both texts have the same applicable content.
func (d Differences) Equal() bool {
	return d.Modifications() == 0
}

// String renders the diff with "+ ", "- " and "  " line prefixes.
func (d Differences) String() string {
	var sb strings.Builder
	for _, df := range d.Diffs {
		prefix := "  "
		switch df.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.SplitAfter(df.Text, "\n") {
			if line != "" {
				sb.WriteString(prefix + line)
			}
		}
	}
	return sb.String()
}

// Patch returns a patch turning before into after, suitable for
// --patch-out. It is empty when both texts have the same content.
func Patch(name string, before, after am.ArreteMinisteriel) string {
	d := Compare(before, after)
	if d.Equal() {
		return ""
	}
	dmp := diffmatchpatch.New()
	patchText := dmp.PatchToText(dmp.PatchMake(d.Before, d.Diffs))
	if patchText == "" {
		return ""
	}
	return fmt.Sprintf("# patch for %s\n%s\n", name, patchText)
}
