package dvfs

import (
	"fmt"
	"strings"

	"github.com/BinSquare/dvfs-go/internal/hexrec"
)

const (
	legacyFrequencyScale  = 1e-6
	currentFrequencyScale = 1e-3

	unsupportedVoltage = 0xFFFFFFFF
)

var legacyMarkers = []string{"M1", "M2", "M3"}

// IsLegacy reports whether chip selects the legacy frequency scaling.
// The check is plain substring containment on the chip token.
func IsLegacy(chip string, hasChip bool) bool {
	if !hasChip {
		return false
	}
	for _, marker := range legacyMarkers {
		if strings.Contains(chip, marker) {
			return true
		}
	}
	return false
}

// Decode converts one voltage-states blob into operating points.
//
// The blob is read as 8-byte records of two little-endian uint32 values
// (frequency, voltage). A voltage of 0xFFFFFFFF becomes 0. Records whose
// scaled frequency is not positive are dropped. Any invalid hex pair fails
// the whole blob with ErrMalformedHex.
func Decode(suffix, blob, chip string, hasChip bool) ([]DataPoint, error) {
	domain := DomainForSuffix(suffix)

	raw, err := hexrec.Bytes(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedHex, err)
	}

	scale := currentFrequencyScale
	if IsLegacy(chip, hasChip) {
		scale = legacyFrequencyScale
	}

	records := hexrec.Split(raw)
	points := make([]DataPoint, 0, len(records))
	for _, rec := range records {
		freq := float64(rec.FreqRaw) * scale
		if freq <= 0 {
			continue
		}

		volt := float64(rec.VoltRaw)
		if rec.VoltRaw == unsupportedVoltage {
			volt = 0
		}

		points = append(points, DataPoint{
			Domain:       domain,
			FrequencyMHz: freq,
			VoltageMV:    volt,
		})
	}

	return points, nil
}
