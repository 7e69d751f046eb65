package apsdiag

// Sensor describes one sensor column. Importance is set only in a
// Diagnosis ranking.
type Sensor struct {
	ID          string  `json:"id"`    // export identifier, e.g. "aa_000"
	Group       string  `json:"group"` // taxonomy group, e.g. "PRESSURE"
	Description string  `json:"description"`
	Unit        string  `json:"unit,omitempty"`
	Importance  float64 `json:"importance,omitempty"`
}

// Sensors returns every sensor the built-in taxonomy knows about.
// This is read-only reference data; columns outside it are still analyzed.
func (d *Diagnoser) Sensors() []Sensor {
	infos := d.taxonomy.Sensors()
	out := make([]Sensor, len(infos))
	for i, s := range infos {
		out[i] = Sensor{ID: s.ID, Group: s.Group, Description: s.Desc, Unit: s.Unit}
	}
	return out
}

func (d *Diagnoser) sensor(id string) Sensor {
	if s, ok := d.taxonomy.Lookup(id); ok {
		return Sensor{ID: s.ID, Group: s.Group, Description: s.Desc, Unit: s.Unit}
	}
	return Sensor{ID: id}
}
