package dvfs

// DataPoint is one calibrated operating point.
type DataPoint struct {
	Domain       Domain  `json:"domain"`
	FrequencyMHz float64 `json:"frequency_mhz"`
	VoltageMV    float64 `json:"voltage_mv"` // 0 means unsupported at this bin
}

// Supported reports whether the operating point carries a characterised voltage.
func (p DataPoint) Supported() bool {
	return p.VoltageMV != 0
}

// Entry is a single voltage-states match found in a dump.
type Entry struct {
	Suffix string
	Hex    string
}

// Result captures everything decoded from one document.
type Result struct {
	Source      string      `json:"source,omitempty"`
	Chip        string      `json:"chip,omitempty"`
	HasChip     bool        `json:"-"`
	CPUModel    string      `json:"cpu_model,omitempty"`
	Points      []DataPoint `json:"points"`
	EntryErrors []error     `json:"-"`
}

// Empty reports whether the document yielded neither a chip identity nor any point.
func (r Result) Empty() bool {
	return !r.HasChip && len(r.Points) == 0
}

// PointsFor returns the points of a single domain, in document order.
func (r Result) PointsFor(d Domain) []DataPoint {
	var out []DataPoint
	for _, p := range r.Points {
		if p.Domain == d {
			out = append(out, p)
		}
	}
	return out
}
