package dvfs

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	cpuModelPrefix   = "CPU Model:"
	reportHeader     = "--- Voltage Data ---"
	unsupportedLabel = "Unsupported"
	missingLabel     = "N/A"
)

// Row is a formatted operating point.
type Row struct {
	FrequencyLabel string `json:"frequency"`
	VoltageLabel   string `json:"voltage"`
}

// Table buckets formatted rows per domain. Unknown-domain points are not shown.
type Table map[Domain][]Row

// Rows formats points into per-domain buckets, keeping their order.
func Rows(points []DataPoint) Table {
	table := make(Table, len(Domains))
	for _, p := range points {
		if p.Domain == Unknown {
			continue
		}
		table[p.Domain] = append(table[p.Domain], Row{
			FrequencyLabel: FormatFrequency(p.FrequencyMHz),
			VoltageLabel:   FormatVoltage(p.VoltageMV),
		})
	}
	return table
}

// FormatFrequency renders a frequency rounded to kHz precision, e.g. "600 MHz".
func FormatFrequency(mhz float64) string {
	return trimFloat(mhz) + " MHz"
}

// FormatVoltage renders a voltage, or "Unsupported" for the zero sentinel.
func FormatVoltage(mv float64) string {
	if mv == 0 {
		return unsupportedLabel
	}
	return trimFloat(mv) + " mV"
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}

// RenderReport writes the plain-text export of a result.
func RenderReport(w io.Writer, r Result) error {
	bw := bufio.NewWriter(w)
	writeReportHeader(bw, r)

	table := Rows(r.Points)
	for _, d := range Domains {
		fmt.Fprintf(bw, "%s:\n", d)
		for _, row := range table[d] {
			fmt.Fprintf(bw, "    %s: %s\n", row.FrequencyLabel, row.VoltageLabel)
		}
	}

	return bw.Flush()
}

// RenderLadder writes the same export with one row per reported frequency
// step. Steps without a decoded point show "N/A" as their voltage.
func RenderLadder(w io.Writer, r Result, steps []LadderStep) error {
	bw := bufio.NewWriter(w)
	writeReportHeader(bw, r)

	for _, d := range Domains {
		fmt.Fprintf(bw, "%s:\n", d)
		for _, step := range steps {
			if step.Domain != d {
				continue
			}
			volt := missingLabel
			if step.Matched() {
				volt = FormatVoltage(step.Point.VoltageMV)
			}
			fmt.Fprintf(bw, "    %s: %s\n", FormatFrequency(step.FrequencyMHz), volt)
		}
	}

	return bw.Flush()
}

func writeReportHeader(w io.Writer, r Result) {
	if model := displayModel(r); model != "" {
		fmt.Fprintf(w, "%s %s\n", cpuModelPrefix, model)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, reportHeader)
}

func displayModel(r Result) string {
	switch {
	case !r.HasChip:
		return r.CPUModel
	case r.CPUModel != "" && r.CPUModel != r.Chip:
		return fmt.Sprintf("%s (%s)", r.CPUModel, r.Chip)
	default:
		return r.Chip
	}
}

// ParseReport reads a report produced by RenderReport back into its CPU
// model line and points. Lines that do not fit the format are ignored.
func ParseReport(text string) (cpuModel string, points []DataPoint) {
	var (
		section   Domain
		inSection bool
		scanner   = bufio.NewScanner(strings.NewReader(text))
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, cpuModelPrefix):
			cpuModel = strings.TrimSpace(strings.TrimPrefix(line, cpuModelPrefix))
			continue
		case line == reportHeader || line == "":
			continue
		case strings.HasSuffix(line, ":"):
			section, inSection = domainForLabel(strings.TrimSuffix(line, ":"))
			continue
		}

		if !inSection {
			continue
		}
		if p, ok := parseReportRow(section, line); ok {
			points = append(points, p)
		}
	}

	return cpuModel, points
}

func parseReportRow(d Domain, line string) (DataPoint, bool) {
	freqPart, voltPart, ok := strings.Cut(line, ":")
	if !ok {
		return DataPoint{}, false
	}

	freq, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(freqPart), "MHz")), 64)
	if err != nil {
		return DataPoint{}, false
	}

	voltPart = strings.TrimSpace(voltPart)
	if voltPart == unsupportedLabel {
		return DataPoint{Domain: d, FrequencyMHz: freq}, true
	}
	volt, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(voltPart, "mV")), 64)
	if err != nil {
		return DataPoint{}, false
	}
	return DataPoint{Domain: d, FrequencyMHz: freq, VoltageMV: volt}, true
}
