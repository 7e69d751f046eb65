package taxonomy

import (
	"fmt"

	"github.com/crimson-sun/apsdiag/internal/model"
)

// Fallback is the description attached to sensors the taxonomy does not know.
const Fallback = "Unmapped sensor"

// Taxonomy manages the sensor tree and the flattened identifier lookup.
type Taxonomy struct {
	root    []*model.SensorNode
	sensors []model.SensorInfo
	byID    map[string]int
}

// New creates a Taxonomy from a set of root groups. Every leaf becomes a
// sensor entry keyed by its Name. Duplicate sensor identifiers are rejected.
func New(roots []*model.SensorNode) (*Taxonomy, error) {
	t := &Taxonomy{root: roots, byID: make(map[string]int)}
	for _, group := range roots {
		for _, leaf := range group.Children {
			if _, dup := t.byID[leaf.Name]; dup {
				return nil, fmt.Errorf("taxonomy: duplicate sensor %q", leaf.Name)
			}
			unit := leaf.Unit
			if unit == "" {
				unit = group.Unit
			}
			t.byID[leaf.Name] = len(t.sensors)
			t.sensors = append(t.sensors, model.SensorInfo{
				ID:    leaf.Name,
				Group: group.Name,
				Desc:  leaf.Desc,
				Unit:  unit,
			})
		}
	}
	return t, nil
}

// Describe returns the description for a sensor identifier, falling back to
// the generic label when the identifier is unmapped.
func (t *Taxonomy) Describe(id string) string {
	if info, ok := t.Lookup(id); ok {
		return info.Desc
	}
	return Fallback
}

// Lookup returns the taxonomy entry for a sensor identifier.
func (t *Taxonomy) Lookup(id string) (model.SensorInfo, bool) {
	if t == nil {
		return model.SensorInfo{}, false
	}
	i, ok := t.byID[id]
	if !ok {
		return model.SensorInfo{}, false
	}
	return t.sensors[i], true
}

// Sensors returns the flattened sensor entries in tree order.
func (t *Taxonomy) Sensors() []model.SensorInfo {
	return t.sensors
}

// Roots returns the top-level taxonomy groups.
func (t *Taxonomy) Roots() []*model.SensorNode {
	return t.root
}
