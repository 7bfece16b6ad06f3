package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// maxDerivedShown caps the derived paths listed under one canonical.
const maxDerivedShown = 5

// PrettyFormatter renders a styled report for terminals.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Report) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")
	w.WriteString(f.formatGroups(r))
	if len(r.Diff) > 0 {
		w.WriteString(f.formatDiff(r.Diff))
	}
	if len(r.NotFound) > 0 {
		w.WriteString(f.formatNotFound(r.NotFound))
	}
	w.WriteString(f.formatFooter(r))
	w.WriteString("\n")
	return nil
}

func (f *PrettyFormatter) formatHeader(r *Report) string {
	var lines []string
	lines = append(lines, LabelStyle.Render("Source:")+" "+ValueStyle.Render(r.Source))

	info := []string{
		LabelStyle.Render("State:") + " " + StateStyle(r.State).Render(r.State),
		LabelStyle.Render("Took:") + " " + ValueStyle.Render(formatDuration(r.Duration)),
	}
	if r.Strict {
		info = append(info, MutedStyle.Render("strict"))
	}
	if r.Trash {
		info = append(info, MutedStyle.Render("trash"))
	}
	lines = append(lines, strings.Join(info, "  "))

	if r.ManifestPath != "" {
		lines = append(lines, LabelStyle.Render("Manifest:")+" "+PathStyle.Render(r.ManifestPath))
	}
	if r.ShadowPath != "" {
		lines = append(lines, LabelStyle.Render("Shadow:")+" "+PathStyle.Render(r.ShadowPath))
	}
	return HeaderBox.Render(strings.Join(lines, "\n"))
}

func (f *PrettyFormatter) formatGroups(r *Report) string {
	if len(r.Groups) == 0 {
		return MutedStyle.Render("  No duplicates found\n")
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("  %s  %s\n",
		TableHeaderStyle.Render(padLeft("SIZE", 10)),
		TableHeaderStyle.Render("CANONICAL / DERIVED")))

	for _, g := range r.Groups {
		size := ""
		if g.Size > 0 {
			size = humanize.IBytes(uint64(g.Size))
		}
		sb.WriteString(fmt.Sprintf("  %s  %s %s\n",
			SizeStyle.Render(padLeft(size, 10)),
			PathStyle.Render(g.Canonical),
			MutedStyle.Render(fmt.Sprintf("(%d)", len(g.Derived)))))

		shown := g.Derived
		if len(shown) > maxDerivedShown {
			shown = shown[:maxDerivedShown]
		}
		for _, d := range shown {
			sb.WriteString(fmt.Sprintf("  %s    %s\n", strings.Repeat(" ", 10), MutedStyle.Render(d)))
		}
		if len(g.Derived) > maxDerivedShown {
			sb.WriteString(fmt.Sprintf("  %s    %s\n", strings.Repeat(" ", 10),
				MutedStyle.Render(fmt.Sprintf("... and %d more", len(g.Derived)-maxDerivedShown))))
		}
	}
	return sb.String()
}

func (f *PrettyFormatter) formatDiff(ops []string) string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(WarningStyle.Bold(true).Render("Accepted differences:"))
	sb.WriteString("\n")
	for _, op := range ops {
		sb.WriteString(WarningStyle.Render("  " + op))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) formatNotFound(paths []string) string {
	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(ErrorStyle.Bold(true).Render("Unresolved link targets:"))
	sb.WriteString("\n")
	for _, p := range paths {
		sb.WriteString(ErrorStyle.Render("  " + p))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (f *PrettyFormatter) formatFooter(r *Report) string {
	parts := []string{
		LabelStyle.Render("Duplicates:") + " " + ValueStyle.Render(fmt.Sprintf("%d", r.DerivedCount())),
		LabelStyle.Render("Unique:") + " " + ValueStyle.Render(fmt.Sprintf("%d", r.Unique)),
		LabelStyle.Render("Deleted:") + " " + ValueStyle.Render(fmt.Sprintf("%d", r.Stats.DelCount)),
	}
	if r.Stats.DelCount > 0 {
		parts = append(parts, LabelStyle.Render("Freed:")+" "+SizeStyle.Render(humanize.IBytes(uint64(r.DeletedBytes()))))
	} else {
		parts = append(parts, LabelStyle.Render("Reclaimable:")+" "+
			SizeStyle.Render(humanize.IBytes(uint64(max(r.Stats.BytesReclaimable, 0)))))
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

// padLeft pads s with spaces on the left to width.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

var _ Formatter = (*PrettyFormatter)(nil)
