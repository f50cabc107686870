package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"bughunter/results"
)

// RenderOptions controls the text report.
type RenderOptions struct {
	Color    bool
	Snippets bool
}

type palette struct {
	bands   map[results.Color]*color.Color
	pass    *color.Color
	fail    *color.Color
	unknown *color.Color
	header  *color.Color
	dim     *color.Color
}

func newPalette(enabled bool) palette {
	p := palette{
		bands: map[results.Color]*color.Color{
			results.ColorRed:        color.New(color.FgRed, color.Bold),
			results.ColorOrange:     color.New(color.FgHiRed),
			results.ColorYellow:     color.New(color.FgYellow),
			results.ColorLightGreen: color.New(color.FgHiGreen),
			results.ColorGreen:      color.New(color.FgGreen, color.Bold),
		},
		pass:    color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		unknown: color.New(color.FgYellow),
		header:  color.New(color.Bold),
		dim:     color.New(color.Faint),
	}
	all := []*color.Color{p.pass, p.fail, p.unknown, p.header, p.dim}
	for _, c := range p.bands {
		all = append(all, c)
	}
	for _, c := range all {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) band(c results.Color) *color.Color {
	if b, ok := p.bands[c]; ok {
		return b
	}
	return p.dim
}

// RenderOutcome writes an outcome: the error message, or the summarized report.
func RenderOutcome(w io.Writer, out results.Outcome, mode results.Mode, opts RenderOptions) error {
	if out.Failed() {
		p := newPalette(opts.Color)
		_, err := fmt.Fprintf(w, "%s %s\n", p.fail.Sprint("Error:"), out.Error)
		return err
	}
	return Render(w, results.Summarize(out.Results, mode), opts)
}

// Render writes a summarized report as text.
func Render(w io.Writer, rep results.Report, opts RenderOptions) error {
	p := newPalette(opts.Color)
	var b strings.Builder

	fmt.Fprintf(&b, "%s (filter: %s)\n", p.header.Sprint("Test Results"), rep.Mode)
	if rep.Overall.Empty {
		fmt.Fprintf(&b, "Overall: no tests\n")
	} else {
		fmt.Fprintf(&b, "Overall: %d/%d passed %s\n", rep.Overall.Passed, rep.Overall.Total,
			p.band(rep.Overall.Color).Sprintf("%d%%", rep.Overall.Score))
	}

	for _, fam := range rep.Families {
		b.WriteString("\n")
		if fam.Empty {
			fmt.Fprintf(&b, "== %s: %s\n", p.header.Sprint(fam.Title), p.dim.Sprint("no tests"))
		} else {
			fmt.Fprintf(&b, "== %s: %d/%d tests passed, %d/%d items valid %s\n",
				p.header.Sprint(fam.Title), fam.Passed, fam.Total, fam.ValidItems, fam.TotalItems,
				p.band(fam.Color).Sprintf("[%d%%]", fam.Score))
		}
		if len(fam.Items) == 0 && !fam.Empty {
			fmt.Fprintf(&b, "   %s\n", p.dim.Sprintf("no %s items", rep.Mode))
		}
		for _, item := range fam.Items {
			mark := p.pass.Sprint("✓")
			if !item.Valid {
				mark = p.fail.Sprint("✗")
			}
			fmt.Fprintf(&b, " %s %s\n", mark, item.ID)
			for _, tl := range item.Tests {
				fmt.Fprintf(&b, "     %s: %s\n", results.TitleCase(tl.Name), statusText(p, tl.FormattedResult))
			}
			if opts.Snippets && item.Snippet != "" {
				fmt.Fprintf(&b, "     %s %s\n", p.dim.Sprint("snippet:"), item.Snippet)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func statusText(p palette, fr results.FormattedResult) string {
	var label string
	switch fr.Status {
	case results.StatusPassed:
		label = p.pass.Sprint("Passed")
	case results.StatusFailed:
		label = p.fail.Sprint("Failed")
	default:
		return p.unknown.Sprint(fr.Description)
	}
	if fr.Description == "" {
		return label
	}
	return label + " - " + fr.Description
}
