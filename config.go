package dvfs

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	defaultIoregPath        = "/usr/sbin/ioreg"
	defaultPowermetricsPath = "/usr/bin/powermetrics"
	pmgrNodeName            = "pmgr"
)

var defaultIoregArgs = []string{
	"-l",
	"-w0",
	"-r",
	"-n", pmgrNodeName,
}

// A single sample is enough to list every frequency step of a cluster.
var defaultPowermetricsArgs = []string{
	"--samplers", "cpu_power,gpu_power",
	"-n", "1",
}

// Config holds configuration for the voltage table parser.
type Config struct {
	// IoregPath and IoregArgs describe the command used for live dumps.
	IoregPath string   `yaml:"ioregPath"`
	IoregArgs []string `yaml:"ioregArgs"`
	// PowermetricsPath and PowermetricsArgs describe the command used to read
	// the live frequency ladder. SampleWindow sets its -i interval.
	PowermetricsPath string        `yaml:"powermetricsPath"`
	PowermetricsArgs []string      `yaml:"powermetricsArgs"`
	SampleWindow     time.Duration `yaml:"sampleWindow"`
	// Chip, when set, replaces the chip class found in the dump.
	Chip string `yaml:"chip"`
	// CatalogPath points at a YAML chip catalog merged over the bundled one.
	CatalogPath string `yaml:"catalogPath"`
	// Workers bounds how many entries of one document decode in parallel.
	Workers int `yaml:"workers"`
}

// LoadConfig reads a YAML configuration file. Missing fields keep their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return normalizeConfig(cfg), nil
}

func normalizeConfig(cfg Config) Config {
	normalized := cfg

	if normalized.IoregPath == "" {
		normalized.IoregPath = defaultIoregPath
	}

	args := normalized.IoregArgs
	if len(args) == 0 {
		args = append([]string{}, defaultIoregArgs...)
	} else {
		args = append([]string{}, args...)
	}
	normalized.IoregArgs = ensureNameArgument(args)

	if normalized.PowermetricsPath == "" {
		normalized.PowermetricsPath = defaultPowermetricsPath
	}

	pmArgs := normalized.PowermetricsArgs
	if len(pmArgs) == 0 {
		pmArgs = append([]string{}, defaultPowermetricsArgs...)
	} else {
		pmArgs = append([]string{}, pmArgs...)
	}

	window := normalized.SampleWindow
	if window <= 0 {
		window = time.Second
	}
	normalized.PowermetricsArgs = ensureIntervalArgument(pmArgs, window)
	normalized.SampleWindow = window

	if normalized.Workers <= 0 {
		normalized.Workers = runtime.GOMAXPROCS(0)
	}

	return normalized
}

// ensureNameArgument makes sure ioreg is pointed at the PMGR node; without it
// the dump carries no voltage-states tables. A trailing -n takes the PMGR name.
func ensureNameArgument(args []string) []string {
	for i, arg := range args {
		if arg != "-n" {
			continue
		}
		if i == len(args)-1 {
			return append(args, pmgrNodeName)
		}
		return args
	}
	return append(args, "-n", pmgrNodeName)
}

func ensureIntervalArgument(args []string, window time.Duration) []string {
	interval := fmt.Sprintf("%d", window.Milliseconds())
	for i, arg := range args {
		if arg != "-i" {
			continue
		}
		if i == len(args)-1 {
			return append(args, interval)
		}
		args[i+1] = interval
		return args
	}
	return append(args, "-i", interval)
}
