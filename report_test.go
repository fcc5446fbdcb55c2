package dvfs

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatLabels(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"whole MHz", FormatFrequency(600), "600 MHz"},
		{"float noise trimmed", FormatFrequency(400.00000000000006), "400 MHz"},
		{"sub-MHz", FormatFrequency(0.001), "0.001 MHz"},
		{"voltage", FormatVoltage(800), "800 mV"},
		{"unsupported", FormatVoltage(0), "Unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestRows(t *testing.T) {
	table := Rows([]DataPoint{
		{Domain: GPU, FrequencyMHz: 396, VoltageMV: 400},
		{Domain: EfficiencyCore, FrequencyMHz: 600, VoltageMV: 0},
		{Domain: Unknown, FrequencyMHz: 1, VoltageMV: 1},
		{Domain: GPU, FrequencyMHz: 720, VoltageMV: 650},
	})

	assert.Equal(t, []Row{{"600 MHz", "Unsupported"}}, table[EfficiencyCore])
	assert.Equal(t, []Row{{"396 MHz", "400 mV"}, {"720 MHz", "650 mV"}}, table[GPU])
	assert.Empty(t, table[PerformanceCore])
	assert.Empty(t, table[NeuralEngine])
	assert.NotContains(t, table, Unknown)
}

func TestRenderReport(t *testing.T) {
	result := Result{
		Chip:     "T8112",
		HasChip:  true,
		CPUModel: "Apple M2",
		Points: []DataPoint{
			{Domain: EfficiencyCore, FrequencyMHz: 912, VoltageMV: 0},
			{Domain: GPU, FrequencyMHz: 444, VoltageMV: 600},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderReport(&buf, result))

	expected := "CPU Model: Apple M2 (T8112)\n" +
		"\n" +
		"--- Voltage Data ---\n" +
		"E-core:\n" +
		"    912 MHz: Unsupported\n" +
		"P-core:\n" +
		"GPU:\n" +
		"    444 MHz: 600 mV\n" +
		"ANE:\n"
	assert.Equal(t, expected, buf.String())
}

func TestParseReportReadsRenderedOutput(t *testing.T) {
	result := ParseText(dumpWith(
		`"IOClass" = "AppleT8103PMGR"`,
		`"voltage-states1-sram" = <c0270900e8030000c0c62d00ffffffff>`,
		`"voltage-states5-sram" = <80a90300b0040000>`,
		`"voltage-states8" = <c0270900e8030000>`,
		`"voltage-states9" = <40a0050090010000>`,
	))
	require.Len(t, result.Points, 5)

	var buf bytes.Buffer
	require.NoError(t, RenderReport(&buf, result))

	model, points := ParseReport(buf.String())
	assert.Equal(t, "Apple M1 (T8103)", model)

	// ParseReport returns points in report section order
	var want []DataPoint
	for _, d := range Domains {
		want = append(want, result.PointsFor(d)...)
	}
	require.Len(t, points, len(want))
	for i := range want {
		assert.Equal(t, want[i].Domain, points[i].Domain)
		assert.InDelta(t, want[i].FrequencyMHz, points[i].FrequencyMHz, 1e-3)
		assert.Equal(t, want[i].VoltageMV, points[i].VoltageMV)
	}
}

func TestParseReportIgnoresNoise(t *testing.T) {
	text := "random preamble\n" +
		"600 MHz: 800 mV\n" +
		"GPU:\n" +
		"    garbage line\n" +
		"    abc MHz: 10 mV\n" +
		"    396 MHz: n/a\n" +
		"    720 MHz: 650 mV\n" +
		"Other:\n" +
		"    1 MHz: 1 mV\n"

	model, points := ParseReport(text)
	assert.Empty(t, model)
	assert.Equal(t, []DataPoint{{Domain: GPU, FrequencyMHz: 720, VoltageMV: 650}}, points)
}
