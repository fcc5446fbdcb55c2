package dvfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainForSuffix(t *testing.T) {
	tests := []struct {
		suffix   string
		expected Domain
	}{
		{"1-sram", EfficiencyCore},
		{"5-sram", PerformanceCore},
		{"8", NeuralEngine},
		{"9", GPU},
		{"", Unknown},
		{"1", Unknown},
		{"5", Unknown},
		{"9-sram", Unknown},
		{"1-SRAM", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.suffix, func(t *testing.T) {
			t.Parallel()

			if got := DomainForSuffix(tt.suffix); got != tt.expected {
				t.Errorf("DomainForSuffix(%q) = %v, want %v", tt.suffix, got, tt.expected)
			}
		})
	}
}

func TestKnownSuffixesMapToDistinctDomains(t *testing.T) {
	seen := make(map[Domain]string)
	for _, suffix := range []string{"1-sram", "5-sram", "8", "9"} {
		d := DomainForSuffix(suffix)
		require.NotEqual(t, Unknown, d, suffix)
		if prev, ok := seen[d]; ok {
			t.Fatalf("suffixes %q and %q both map to %v", prev, suffix, d)
		}
		seen[d] = suffix
	}
	assert.Len(t, seen, len(Domains))
}

func TestIsLegacy(t *testing.T) {
	tests := []struct {
		name     string
		chip     string
		hasChip  bool
		expected bool
	}{
		{"absent", "", false, false},
		{"M1", "M1", true, true},
		{"M2 Max", "M2 Max", true, true},
		{"substring M3", "XM3Y", true, true},
		{"class token", "T8103", true, false},
		{"M4", "M4", true, false},
		{"lowercase", "m1", true, false},
		{"absent ignores token", "M1", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, IsLegacy(tt.chip, tt.hasChip))
		})
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		suffix   string
		hex      string
		chip     string
		hasChip  bool
		expected []DataPoint
	}{
		{
			name:     "little-endian record",
			suffix:   "1-sram",
			hex:      "01000000b80b0000",
			chip:     "T8103",
			hasChip:  true,
			expected: []DataPoint{{EfficiencyCore, 0.001, 3000}},
		},
		{
			name:     "sentinel voltage becomes zero",
			suffix:   "5-sram",
			hex:      "01000000ffffffff",
			expected: []DataPoint{{PerformanceCore, 0.001, 0}},
		},
		{
			name:     "zero frequency dropped with its voltage",
			suffix:   "9",
			hex:      "00000000b80b0000",
			expected: []DataPoint{},
		},
		{
			name:    "legacy scaling",
			suffix:  "9",
			hex:     "0084d71720030000" + "00e1f505ffffffff",
			chip:    "M1",
			hasChip: true,
			expected: []DataPoint{
				{GPU, 400, 800},
				{GPU, 100, 0},
			},
		},
		{
			name:     "current scaling of a kHz value",
			suffix:   "8",
			hex:      "c0270900e8030000",
			chip:     "T8112",
			hasChip:  true,
			expected: []DataPoint{{NeuralEngine, 600, 1000}},
		},
		{
			name:     "trailing partial record discarded",
			suffix:   "1-sram",
			hex:      "01000000b80b0000aabbccdd",
			expected: []DataPoint{{EfficiencyCore, 0.001, 3000}},
		},
		{
			name:     "odd length truncated",
			suffix:   "1-sram",
			hex:      "01000000b80b00000",
			expected: []DataPoint{{EfficiencyCore, 0.001, 3000}},
		},
		{
			name:     "unknown suffix still decodes",
			suffix:   "7",
			hex:      "01000000b80b0000",
			expected: []DataPoint{{Unknown, 0.001, 3000}},
		},
		{
			name:     "empty blob",
			suffix:   "9",
			hex:      "",
			expected: []DataPoint{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Decode(tt.suffix, tt.hex, tt.chip, tt.hasChip)
			require.NoError(t, err)
			require.Len(t, got, len(tt.expected))
			for i := range tt.expected {
				assert.Equal(t, tt.expected[i].Domain, got[i].Domain)
				assert.InDelta(t, tt.expected[i].FrequencyMHz, got[i].FrequencyMHz, 1e-9)
				assert.Equal(t, tt.expected[i].VoltageMV, got[i].VoltageMV)
			}
		})
	}
}

func TestDecodeMalformedHex(t *testing.T) {
	// three valid pairs then an invalid one
	points, err := Decode("1-sram", "010000zz", "", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedHex)
	assert.Nil(t, points)

	_, err = Decode("9", "01000000b80b00g0", "", false)
	assert.ErrorIs(t, err, ErrMalformedHex)
}

func TestDecodeIsDeterministic(t *testing.T) {
	blob := "01000000b80b0000" + "0084d717ffffffff" + "00000000e8030000"

	first, err := Decode("5-sram", blob, "T6000", true)
	require.NoError(t, err)
	second, err := Decode("5-sram", blob, "T6000", true)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDecodeAdmitsOnlyPositiveFrequencies(t *testing.T) {
	blob := "00000000b80b0000" + "ffffffff01000000" + "00000000ffffffff" + "0100000000000000"

	points, err := Decode("9", blob, "", false)
	require.NoError(t, err)
	require.Len(t, points, 2)
	for _, p := range points {
		assert.Greater(t, p.FrequencyMHz, 0.0)
	}
	// a zero raw voltage is a valid reading and is kept
	assert.Equal(t, 0.0, points[1].VoltageMV)
}

func TestDecodeSentinelIgnoresFrequency(t *testing.T) {
	for _, freq := range []string{"01000000", "ffffffff", "00e1f505"} {
		points, err := Decode("1-sram", freq+"ffffffff", "M2", true)
		require.NoError(t, err)
		require.Len(t, points, 1, freq)
		assert.Equal(t, 0.0, points[0].VoltageMV, freq)
		assert.False(t, points[0].Supported())
	}
}
