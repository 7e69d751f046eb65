package model

// SensorNode represents a node in the sensor taxonomy tree. Leaves are
// individual sensors keyed by their export identifier (e.g. "aa_000").
type SensorNode struct {
	Name     string
	Desc     string // human-readable description shown in root-cause rankings
	Unit     string
	Children []*SensorNode
}

// SensorInfo is a flattened taxonomy leaf.
type SensorInfo struct {
	ID    string // e.g. "aa_000"
	Group string // parent node name, e.g. "PRESSURE"
	Desc  string
	Unit  string
}
