// Package text prints a human-readable report summary for terminals.
// Colors are applied only when the destination is a TTY and NO_COLOR is
// unset.
package text

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/crimson-sun/apsdiag/internal/model"
)

var (
	colorTeal  = lipgloss.Color("#2CD7C7")
	colorAmber = lipgloss.Color("#F4D03F")
	colorRed   = lipgloss.Color("#E74C3C")
	colorSlate = lipgloss.Color("#2C4A54")
)

type styles struct {
	title, heading, muted, warn, bad, good lipgloss.Style
	box                                    lipgloss.Style
}

func colored() styles {
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(colorTeal),
		heading: lipgloss.NewStyle().Bold(true),
		muted:   lipgloss.NewStyle().Foreground(colorSlate),
		warn:    lipgloss.NewStyle().Foreground(colorAmber),
		bad:     lipgloss.NewStyle().Foreground(colorRed).Bold(true),
		good:    lipgloss.NewStyle().Foreground(colorTeal),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorSlate).
			Padding(0, 1),
	}
}

func plain() styles {
	s := lipgloss.NewStyle()
	return styles{title: s, heading: s, muted: s, warn: s, bad: s, good: s, box: s}
}

// Output renders reports as text.
type Output struct {
	w  io.Writer
	st styles
}

// New writes to os.Stdout.
func New() *Output { return NewWriter(os.Stdout) }

// NewWriter writes to w, coloring only when w is a terminal.
func NewWriter(w io.Writer) *Output {
	st := plain()
	if isTerminal(w) && os.Getenv("NO_COLOR") == "" {
		st = colored()
	}
	return &Output{w: w, st: st}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (o *Output) Write(_ context.Context, r model.Report) error {
	_, err := io.WriteString(o.w, o.render(r))
	if err != nil {
		return fmt.Errorf("text output: %w", err)
	}
	return nil
}

func (o *Output) Close() error { return nil }

func (o *Output) render(r model.Report) string {
	st := o.st
	var b strings.Builder

	title := "APS diagnosis"
	if r.Source != "" {
		title += " · " + r.Source
	}
	b.WriteString(st.title.Render(title) + "\n\n")

	s := r.Sanitization
	fmt.Fprintf(&b, "%s %d rows, %d sensors", st.heading.Render("Data"), s.Rows, s.Features)
	if s.LabelMode != "" {
		fmt.Fprintf(&b, ", %s labels", s.LabelMode)
	}
	b.WriteString("\n")
	if len(s.Dropped) > 0 || s.RowsDropped > 0 {
		b.WriteString(st.muted.Render(fmt.Sprintf("  dropped %d columns, %d unlabeled rows", len(s.Dropped), s.RowsDropped)) + "\n")
	}

	if a := r.Anomalies; a != nil {
		b.WriteString("\n" + st.heading.Render("Anomalies") + "\n")
		fmt.Fprintf(&b, "  %d of %d samples (%.2f%%) beyond |z| > %g\n", a.Anomalies, a.TotalSamples, a.AnomalyRate, a.Threshold)
		fmt.Fprintf(&b, "  %s  %s  %s\n",
			st.bad.Render(fmt.Sprintf("critical %d", a.CriticalAnomalies)),
			st.warn.Render(fmt.Sprintf("major %d", a.MajorAnomalies)),
			fmt.Sprintf("minor %d", a.MinorAnomalies))
		if len(a.UndefinedColumns) > 0 {
			b.WriteString(st.muted.Render("  constant sensors skipped: "+strings.Join(a.UndefinedColumns, ", ")) + "\n")
		}
	}

	if c := r.Classification; c != nil {
		b.WriteString("\n" + st.heading.Render("Classifier") + "\n")
		fmt.Fprintf(&b, "  accuracy %s  precision %.3f  recall %.3f  f1 %.3f\n",
			st.good.Render(fmt.Sprintf("%.3f", c.Accuracy)), c.Precision, c.Recall, c.F1)
		if c.ROCAUC.Valid {
			fmt.Fprintf(&b, "  roc auc %.3f\n", c.ROCAUC.Value)
		}
		b.WriteString(st.muted.Render(fmt.Sprintf("  trained on %d, tested on %d", c.TrainSize, c.TestSize)) + "\n")
	}

	if x := r.CrossReference; x != nil {
		fmt.Fprintf(&b, "  predicted faults %d (true %d, false %d), %d also flagged as anomalies\n",
			x.PredictedFaults, x.TruePositives, x.FalsePositives, x.FlaggedPredictedFaults)
	}

	if fi := r.Importance; fi != nil && len(fi.TopSensors) > 0 {
		var rows []string
		for i, s := range fi.TopSensors {
			rows = append(rows, fmt.Sprintf("%2d. %-10s %.4f  %s", i+1, s.Name, s.Importance, st.muted.Render(s.Description)))
		}
		b.WriteString("\n" + st.heading.Render("Root-cause sensors") + "\n")
		b.WriteString(st.box.Render(strings.Join(rows, "\n")) + "\n")
	}
	return b.String()
}
