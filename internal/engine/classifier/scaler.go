package classifier

import "gonum.org/v1/gonum/stat"

// scaler standardizes each feature to zero mean and unit variance using
// statistics of the training fold. A constant feature keeps std 1.
type scaler struct {
	Mean []float64
	Std  []float64
}

func fitScaler(x [][]float64, rows []int) *scaler {
	p := len(x[rows[0]])
	s := &scaler{Mean: make([]float64, p), Std: make([]float64, p)}
	col := make([]float64, len(rows))
	for j := 0; j < p; j++ {
		for k, i := range rows {
			col[k] = x[i][j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std == 0 {
			std = 1
		}
		s.Mean[j], s.Std[j] = mean, std
	}
	return s
}

func (s *scaler) transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out
}
