package taxonomy

import "github.com/crimson-sun/apsdiag/internal/model"

// DefaultRoots returns the built-in air pressure system sensor tree.
// Identifiers follow the APS export naming scheme.
func DefaultRoots() []*model.SensorNode {
	return []*model.SensorNode{
		{
			Name: "PRESSURE",
			Desc: "Pressure readings along the compressed air circuit",
			Unit: "bar",
			Children: []*model.SensorNode{
				{Name: "aa_000", Desc: "Air Pressure Sensor A"},
				{Name: "ab_001", Desc: "Air Pressure Sensor B"},
				{Name: "ac_002", Desc: "Air Compressor Sensor"},
				{Name: "ad_003", Desc: "Air Tank Sensor"},
				{Name: "ae_004", Desc: "Air Filter Sensor"},
				{Name: "af_005", Desc: "Air Valve Sensor"},
				{Name: "ag_006", Desc: "Air Regulator Sensor"},
				{Name: "aj_009", Desc: "Air Junction Sensor"},
				{Name: "ak_010", Desc: "Air Kit Sensor"},
				{Name: "al_011", Desc: "Air Line Sensor"},
				{Name: "am_012", Desc: "Air Manifold Sensor"},
				{Name: "an_013", Desc: "Air Nozzle Sensor"},
				{Name: "ao_014", Desc: "Air Outlet Sensor"},
			},
		},
		{
			Name: "FLOW",
			Desc: "Volumetric air flow",
			Unit: "L/min",
			Children: []*model.SensorNode{
				{Name: "ag_005", Desc: "Air Flow Sensor G"},
			},
		},
		{
			Name: "TEMPERATURE",
			Desc: "Air temperature at heater and intake",
			Unit: "°C",
			Children: []*model.SensorNode{
				{Name: "ah_007", Desc: "Air Heater Sensor"},
				{Name: "ai_008", Desc: "Air Intake Sensor"},
			},
		},
	}
}
