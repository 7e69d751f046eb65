package output

import (
	"github.com/crimson-sun/apsdiag/internal/model"
)

// Format returns a copy of the report stripped according to verbosity.
// Sections that are modified are copied; the input is never mutated.
//
// Minimal drops per-sample vectors, the prediction preview, the full
// importance list and the time-series preview. Standard drops only the
// z-score matrix. Full keeps everything.
func Format(r model.Report, v Verbosity) model.Report {
	if v >= Full {
		return r
	}

	if r.Anomalies != nil {
		a := *r.Anomalies
		a.ZScores = nil
		if v == Minimal {
			a.Flags = nil
			a.Severities = nil
			a.MaxAbsZ = nil
		}
		r.Anomalies = &a
	}
	if v > Minimal {
		return r
	}

	if r.Classification != nil {
		c := *r.Classification
		c.Predictions = nil
		r.Classification = &c
	}
	if r.Importance != nil {
		fi := *r.Importance
		fi.AllFeatures = nil
		r.Importance = &fi
	}
	if r.Statistics != nil {
		s := *r.Statistics
		s.Preview = nil
		r.Statistics = &s
	}
	return r
}
