package output

import (
	"bytes"
	"fmt"
	"text/tabwriter"
)

// PlainFormatter writes one "canonical<TAB>derived" row per derived path,
// for scripting. No colors or styling are applied.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)

	if _, err := fmt.Fprint(tw, "CANONICAL\tDERIVED\n"); err != nil {
		return err
	}
	for _, g := range r.Groups {
		for _, d := range g.Derived {
			if _, err := fmt.Fprintf(tw, "%s\t%s\n", g.Canonical, d); err != nil {
				return err
			}
		}
	}
	return tw.Flush()
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

var _ Formatter = (*PlainFormatter)(nil)
