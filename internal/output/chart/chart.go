// Package chart renders report sections as PNG bar charts: the top sensor
// importances, the class histogram and the anomaly severity breakdown.
package chart

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/crimson-sun/apsdiag/internal/model"
)

const (
	defaultWidth  = 6 * vg.Inch
	defaultHeight = 4 * vg.Inch
)

var (
	barColor   = color.RGBA{R: 32, G: 185, B: 180, A: 255}
	faultColor = color.RGBA{R: 231, G: 76, B: 60, A: 255}
)

// Option configures a chart Output.
type Option func(*Output)

// WithSize sets the rendered image size.
func WithSize(w, h vg.Length) Option {
	return func(o *Output) { o.width, o.height = w, h }
}

// Output writes one set of PNG charts per report into a directory.
type Output struct {
	dir           string
	width, height vg.Length

	mu    sync.Mutex
	seq   int
	files []string
}

// New creates the directory if needed and returns a chart output writing
// into it.
func New(dir string, opts ...Option) (*Output, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("chart output: %w", err)
	}
	o := &Output{dir: dir, width: defaultWidth, height: defaultHeight}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Write renders every chart the report has data for. Sections that are
// absent are skipped.
func (o *Output) Write(_ context.Context, report model.Report) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seq++
	stem := stemFor(report.Source, o.seq)

	if report.Importance != nil && len(report.Importance.TopSensors) > 0 {
		if err := o.save(importancePlot(report.Importance.TopSensors), stem+"-importance.png"); err != nil {
			return err
		}
	}
	if classes := classCounts(report); len(classes) > 0 {
		if err := o.save(classPlot(classes), stem+"-classes.png"); err != nil {
			return err
		}
	}
	if a := report.Anomalies; a != nil && a.Anomalies > 0 {
		if err := o.save(severityPlot(a), stem+"-anomalies.png"); err != nil {
			return err
		}
	}
	return nil
}

func (o *Output) Close() error { return nil }

// Files lists every file written so far, in order.
func (o *Output) Files() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.files...)
}

func (o *Output) save(p *plot.Plot, name string) error {
	path := filepath.Join(o.dir, name)
	if err := p.Save(o.width, o.height, path); err != nil {
		return fmt.Errorf("chart output: save %s: %w", name, err)
	}
	o.files = append(o.files, path)
	return nil
}

func stemFor(source string, seq int) string {
	if source == "" {
		source = "report"
	}
	source = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' || r == ':' {
			return '_'
		}
		return r
	}, source)
	return fmt.Sprintf("%s-%03d", source, seq)
}

func importancePlot(top []model.SensorImportance) *plot.Plot {
	vals := make(plotter.Values, len(top))
	names := make([]string, len(top))
	for i, s := range top {
		vals[i] = s.Importance
		names[i] = s.Name
	}
	return barPlot("Root-cause sensors", "importance", names, vals, barColor)
}

type classCount struct {
	name  string
	count int
}

// classCounts prefers the classifier's histogram and falls back to the
// statistics section. Classes are ordered by name.
func classCounts(r model.Report) []classCount {
	var m map[string]int
	switch {
	case r.Classification != nil && len(r.Classification.Classes) > 0:
		m = r.Classification.Classes
	case r.Statistics != nil:
		m = r.Statistics.ClassDistribution
	}
	out := make([]classCount, 0, len(m))
	for name, n := range m {
		out = append(out, classCount{name, n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func classPlot(classes []classCount) *plot.Plot {
	vals := make(plotter.Values, len(classes))
	names := make([]string, len(classes))
	for i, c := range classes {
		vals[i] = float64(c.count)
		names[i] = c.name
	}
	return barPlot("Class distribution", "samples", names, vals, barColor)
}

func severityPlot(a *model.AnomalyReport) *plot.Plot {
	names := []string{string(model.SeverityMinor), string(model.SeverityMajor), string(model.SeverityCritical)}
	vals := plotter.Values{float64(a.MinorAnomalies), float64(a.MajorAnomalies), float64(a.CriticalAnomalies)}
	return barPlot(fmt.Sprintf("Anomalies (|z| > %g)", a.Threshold), "samples", names, vals, faultColor)
}

func barPlot(title, ylabel string, names []string, vals plotter.Values, c color.Color) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = ylabel
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(vals, vg.Points(18))
	if err != nil {
		// Only non-finite values fail here; report values are finite.
		return p
	}
	bars.Color = c
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(names...)
	if len(names) > 6 {
		p.X.Tick.Label.Rotation = 0.8
		p.X.Tick.Label.XAlign = draw.XRight
	}
	return p
}
