package model

import (
	"encoding/json"
	"math"
)

// OptFloat is a float that may carry no value. It separates a computed result
// from a degraded one (zero variance, empty input) so that a real 0.0 is never
// confused with "undefined". Invalid values encode as JSON null.
type OptFloat struct {
	Value float64
	Valid bool
}

// Some wraps v, marking it invalid when v is NaN or infinite.
func Some(v float64) OptFloat {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return OptFloat{}
	}
	return OptFloat{Value: v, Valid: true}
}

// None is the explicit "no value" marker.
func None() OptFloat { return OptFloat{} }

func (o OptFloat) MarshalJSON() ([]byte, error) {
	if !o.Valid || math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *OptFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = OptFloat{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
