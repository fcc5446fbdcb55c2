package dvfs

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ladderTolerance is how far, in MHz, a decoded point may sit from a reported step.
const ladderTolerance = 1.0

var (
	clusterResidencyRegex = regexp.MustCompile(`^([EP])(?:-\w+|\d+)?-Cluster HW active residency:`)
	gpuResidencyRegex     = regexp.MustCompile(`^GPU HW active residency:`)
	freqResidencyRegex    = regexp.MustCompile(`(\d+) MHz: +([\d.]+)%`)
)

// Ladder holds the frequency steps, in MHz and ascending, that powermetrics
// reports per domain. Domains without a residency breakdown are absent.
type Ladder map[Domain][]float64

// LadderStep is one reported frequency step and the decoded point matched to it.
type LadderStep struct {
	Domain       Domain     `json:"domain"`
	FrequencyMHz float64    `json:"frequency_mhz"`
	Point        *DataPoint `json:"point,omitempty"`
}

// Matched reports whether a decoded point was found for the step.
func (s LadderStep) Matched() bool {
	return s.Point != nil
}

// ParseLadder collects the frequency steps listed in the cluster and GPU
// "HW active residency" lines of a powermetrics sample. Steps of several
// clusters of the same kind are merged.
func ParseLadder(text string) Ladder {
	ladder := make(Ladder)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		var d Domain
		if gpuResidencyRegex.MatchString(line) {
			d = GPU
		} else if m := clusterResidencyRegex.FindStringSubmatch(line); m != nil {
			d = EfficiencyCore
			if m[1] == "P" {
				d = PerformanceCore
			}
		} else {
			continue
		}

		if steps := residencyFrequencies(line); len(steps) > 0 {
			ladder[d] = append(ladder[d], steps...)
		}
	}

	for d, steps := range ladder {
		slices.Sort(steps)
		ladder[d] = slices.Compact(steps)
	}

	return ladder
}

func residencyFrequencies(line string) []float64 {
	_, freqData, ok := strings.Cut(line, "(")
	if !ok {
		return nil
	}

	var steps []float64
	for _, match := range freqResidencyRegex.FindAllStringSubmatch(freqData, -1) {
		freq, err := strconv.ParseFloat(match[1], 64)
		if err == nil && freq > 0 {
			steps = append(steps, freq)
		}
	}
	return steps
}

// Align pairs every step of ladder with the closest decoded point of the same
// domain lying within a tolerance of 1 MHz. Steps come out in domain
// presentation order, ascending within a domain; unmatched steps have a nil Point.
func Align(points []DataPoint, ladder Ladder) []LadderStep {
	var aligned []LadderStep

	for _, d := range Domains {
		for _, freq := range ladder[d] {
			step := LadderStep{Domain: d, FrequencyMHz: freq}

			best := math.Inf(1)
			for i := range points {
				if points[i].Domain != d {
					continue
				}
				diff := math.Abs(points[i].FrequencyMHz - freq)
				if diff <= ladderTolerance && diff < best {
					best = diff
					p := points[i]
					step.Point = &p
				}
			}

			aligned = append(aligned, step)
		}
	}

	return aligned
}
