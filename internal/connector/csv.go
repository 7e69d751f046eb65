package connector

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/crimson-sun/apsdiag/internal/model"
)

// ReadCSV parses a CSV export with a header line into a RawBatch. limit caps
// the number of data rows (0 means all). Malformed input is a
// model.ErrValidation.
func ReadCSV(r io.Reader, source string, limit int) (model.RawBatch, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return model.RawBatch{}, fmt.Errorf("read %s: %w: empty input", source, model.ErrValidation)
	}
	if err != nil {
		return model.RawBatch{}, fmt.Errorf("read %s: %w: %v", source, model.ErrValidation, err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	for i, h := range header {
		header[i] = strings.TrimSpace(h)
	}

	batch := model.RawBatch{Source: source, Header: header}
	for limit <= 0 || len(batch.Rows) < limit {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.RawBatch{}, fmt.Errorf("read %s: %w: %v", source, model.ErrValidation, err)
		}
		batch.Rows = append(batch.Rows, rec)
	}
	return batch, nil
}
