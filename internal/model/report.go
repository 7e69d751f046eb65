package model

// Severity tiers an anomalous sample by its worst feature deviation.
type Severity string

const (
	SeverityNone     Severity = ""
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// AnomalyReport is the z-score anomaly result for one CleanedBatch.
type AnomalyReport struct {
	TotalSamples      int     `json:"totalSamples"`
	Anomalies         int     `json:"anomalies"`
	AnomalyRate       float64 `json:"anomalyRate"` // percent, two decimals
	CriticalAnomalies int     `json:"criticalAnomalies"`
	MajorAnomalies    int     `json:"majorAnomalies"`
	MinorAnomalies    int     `json:"minorAnomalies"`
	Threshold         float64 `json:"threshold"`

	Columns          []string     `json:"columns"`
	UndefinedColumns []string     `json:"undefinedColumns,omitempty"`
	Flags            []bool       `json:"flags,omitempty"`
	Severities       []Severity   `json:"severities,omitempty"`
	MaxAbsZ          []OptFloat   `json:"maxAbsZ,omitempty"`
	ZScores          [][]OptFloat `json:"zScores,omitempty"`
}

// ClassMetrics is the per-class part of a classification report.
type ClassMetrics struct {
	Class     string  `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1Score"`
	Support   int     `json:"support"`
}

// Prediction is one held-out sample's outcome.
type Prediction struct {
	Row         int      `json:"row"`
	Actual      string   `json:"actual"`
	Predicted   string   `json:"predicted"`
	Probability OptFloat `json:"probability"` // probability of the predicted class
}

// ClassificationReport holds held-out evaluation metrics. Precision, recall
// and F1 are support-weighted across classes.
type ClassificationReport struct {
	Accuracy  float64  `json:"accuracy"`
	Precision float64  `json:"precision"`
	Recall    float64  `json:"recall"`
	F1        float64  `json:"f1Score"`
	ROCAUC    OptFloat `json:"rocAuc"`

	LabelMode       LabelMode      `json:"labelMode"`
	PerClass        []ClassMetrics `json:"classReport"`
	Classes         map[string]int `json:"classes"`
	ConfusionMatrix [][]int        `json:"confusionMatrix"`
	TrainSize       int            `json:"trainSize"`
	TestSize        int            `json:"testSize"`
	Predictions     []Prediction   `json:"predictions,omitempty"`
}

// SensorImportance is one ranked root-cause entry.
type SensorImportance struct {
	Name        string  `json:"name"`
	Importance  float64 `json:"importance"`
	Description string  `json:"description"`
}

// FeatureImportance ranks sensors by their contribution to the classifier.
type FeatureImportance struct {
	TopSensors  []SensorImportance `json:"topSensors"`
	AllFeatures []SensorImportance `json:"allFeatures"`
}

// SensorStat summarizes one sensor column.
type SensorStat struct {
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// Correlation is a sensor's Pearson correlation with the label. Degraded is
// set when the coefficient was undefined and replaced by 0.0.
type Correlation struct {
	Sensor      string  `json:"sensor"`
	Coefficient float64 `json:"coefficient"`
	Degraded    bool    `json:"degraded,omitempty"`
}

// Statistics is the combined descriptive view of a batch.
type Statistics struct {
	TotalSamples      int                   `json:"totalSamples"`
	TotalFeatures     int                   `json:"totalFeatures"`
	ClassDistribution map[string]int        `json:"classDistribution,omitempty"`
	SensorStats       map[string]SensorStat `json:"sensorStats"`
	Correlations      []Correlation         `json:"correlations,omitempty"`
	Preview           map[string][]float64  `json:"timeSeriesData,omitempty"`
}

// SanitizationSummary describes what the sanitizer changed.
type SanitizationSummary struct {
	Rows        int             `json:"rows"`
	Features    int             `json:"features"`
	Columns     []string        `json:"columns"`
	Dropped     []DroppedColumn `json:"droppedColumns,omitempty"`
	Imputed     map[string]int  `json:"imputedCells,omitempty"`
	RowsDropped int             `json:"rowsDropped"`
	LabelMode   LabelMode       `json:"labelMode,omitempty"`
}

// CrossReference compares classifier fault predictions on the held-out fold
// with the ground truth and with the statistical anomaly flags.
type CrossReference struct {
	PredictedFaults        int `json:"predictedFaults"`
	TruePositives          int `json:"truePositives"`
	FalsePositives         int `json:"falsePositives"`
	FlaggedPredictedFaults int `json:"flaggedPredictedFaults"`
}

// Report is the unified result of one pipeline run.
type Report struct {
	Source         string                `json:"source,omitempty"`
	Sanitization   SanitizationSummary   `json:"sanitization"`
	Anomalies      *AnomalyReport        `json:"anomalies,omitempty"`
	Statistics     *Statistics           `json:"statistics,omitempty"`
	Classification *ClassificationReport `json:"classification,omitempty"`
	Importance     *FeatureImportance    `json:"importance,omitempty"`
	CrossReference *CrossReference       `json:"crossReference,omitempty"`
}

// Summarize builds a SanitizationSummary for b.
func Summarize(b *CleanedBatch) SanitizationSummary {
	return SanitizationSummary{
		Rows:        b.Rows(),
		Features:    len(b.Columns),
		Columns:     b.Columns,
		Dropped:     b.Dropped,
		Imputed:     b.Imputed,
		RowsDropped: b.RowsDropped,
		LabelMode:   b.LabelMode,
	}
}
