package apsdiag

import (
	"github.com/crimson-sun/apsdiag/internal/engine/classifier"
	"github.com/crimson-sun/apsdiag/internal/model"
	"github.com/crimson-sun/apsdiag/internal/output"
)

// Diagnosis is the outcome of analyzing one batch.
// This is the stable public type; the full report is available as JSON.
type Diagnosis struct {
	Samples  int `json:"samples"`
	Features int `json:"features"`

	Anomalies         int     `json:"anomalies"`
	AnomalyRate       float64 `json:"anomalyRate"` // percent
	CriticalAnomalies int     `json:"criticalAnomalies"`
	MajorAnomalies    int     `json:"majorAnomalies"`
	MinorAnomalies    int     `json:"minorAnomalies"`

	Labeled  bool    `json:"labeled"`
	Accuracy float64 `json:"accuracy,omitempty"`
	F1       float64 `json:"f1Score,omitempty"`

	TopSensors []Sensor `json:"topSensors,omitempty"`

	PredictedFaults        int `json:"predictedFaults"`
	TruePositives          int `json:"truePositives"`
	FalsePositives         int `json:"falsePositives"`
	FlaggedPredictedFaults int `json:"flaggedPredictedFaults"`

	report model.Report
	model  *classifier.Model
}

// JSON encodes the full report at the given verbosity ("minimal",
// "standard" or "full"). Non-finite numbers are written as null.
func (d *Diagnosis) JSON(verbosity string, pretty bool) ([]byte, error) {
	return output.Encode(d.report, output.ParseVerbosity(verbosity), pretty)
}

// ModelData returns the trained model in a form accepted by WithModel.
// It fails with ErrModelNotTrained for unlabeled batches.
func (d *Diagnosis) ModelData() ([]byte, error) {
	if d.model == nil {
		return nil, ErrModelNotTrained
	}
	return d.model.MarshalBinary()
}

func diagnosisFrom(r *model.Report, m *classifier.Model, sensorInfo func(string) Sensor) *Diagnosis {
	d := &Diagnosis{
		Samples:  r.Sanitization.Rows,
		Features: r.Sanitization.Features,
		report:   *r,
		model:    m,
	}
	if a := r.Anomalies; a != nil {
		d.Anomalies = a.Anomalies
		d.AnomalyRate = a.AnomalyRate
		d.CriticalAnomalies = a.CriticalAnomalies
		d.MajorAnomalies = a.MajorAnomalies
		d.MinorAnomalies = a.MinorAnomalies
	}
	if c := r.Classification; c != nil {
		d.Labeled = true
		d.Accuracy = c.Accuracy
		d.F1 = c.F1
	}
	if fi := r.Importance; fi != nil {
		d.TopSensors = make([]Sensor, len(fi.TopSensors))
		for i, s := range fi.TopSensors {
			sensor := sensorInfo(s.Name)
			sensor.Description = s.Description
			sensor.Importance = s.Importance
			d.TopSensors[i] = sensor
		}
	}
	if cr := r.CrossReference; cr != nil {
		d.PredictedFaults = cr.PredictedFaults
		d.TruePositives = cr.TruePositives
		d.FalsePositives = cr.FalsePositives
		d.FlaggedPredictedFaults = cr.FlaggedPredictedFaults
	}
	return d
}
