package dvfs

import "fmt"

// Domain identifies the hardware power-management zone a voltage table belongs to.
type Domain int

const (
	Unknown Domain = iota
	EfficiencyCore
	PerformanceCore
	GPU
	NeuralEngine
)

// Domains lists the known domains in presentation order.
var Domains = []Domain{EfficiencyCore, PerformanceCore, GPU, NeuralEngine}

// DomainForSuffix maps a voltage-states key suffix to its domain.
func DomainForSuffix(suffix string) Domain {
	switch suffix {
	case "1-sram":
		return EfficiencyCore
	case "5-sram":
		return PerformanceCore
	case "8":
		return NeuralEngine
	case "9":
		return GPU
	default:
		return Unknown
	}
}

// String returns the short label used in reports.
func (d Domain) String() string {
	switch d {
	case EfficiencyCore:
		return "E-core"
	case PerformanceCore:
		return "P-core"
	case GPU:
		return "GPU"
	case NeuralEngine:
		return "ANE"
	default:
		return "Unknown"
	}
}

// MarshalText renders the domain label, so JSON output carries "E-core" rather than an integer.
func (d Domain) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts the labels produced by MarshalText.
func (d *Domain) UnmarshalText(text []byte) error {
	label := string(text)
	if label == Unknown.String() {
		*d = Unknown
		return nil
	}

	parsed, ok := domainForLabel(label)
	if !ok {
		return fmt.Errorf("unknown domain %q", label)
	}
	*d = parsed
	return nil
}

func domainForLabel(label string) (Domain, bool) {
	for _, d := range Domains {
		if d.String() == label {
			return d, true
		}
	}
	return Unknown, false
}
