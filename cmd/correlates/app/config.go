package app

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration
type Config struct {
	Settings   Settings         `yaml:"settings"`
	Experiment ExperimentConfig `yaml:"experiment"`
	Neural     NeuralConfig     `yaml:"neural"`
	Spectral   SpectralConfig   `yaml:"spectral"`
	States     StatesConfig     `yaml:"states"`
	Storage    StorageConfig    `yaml:"storage"`
}

// Settings represents global application settings
type Settings struct {
	Level string `yaml:"logLevel"`
}

// LogLevel parses the configured level, defaulting to info.
func (s Settings) LogLevel() slog.Level {
	switch strings.ToLower(s.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ExperimentConfig locates the experiment structure and the recorded data
// and sets the event annotation parameters.
type ExperimentConfig struct {
	StructurePath  string   `yaml:"structurePath"`
	DataRoot       string   `yaml:"dataRoot"`
	SkipSubjects   []string `yaml:"skipSubjects"`
	SkipConditions []string `yaml:"skipConditions"`
	SkipRows       int      `yaml:"skipRows"`
	Framerate      float64  `yaml:"framerate"`

	// Timeslice caps every event window at this many seconds. Zero keeps
	// full windows.
	Timeslice float64 `yaml:"timeslice"`
}

// NeuralConfig describes the per-run neural recording files.
type NeuralConfig struct {
	// File is the recording file name inside each run directory.
	File         string  `yaml:"file"`
	SamplingRate float64 `yaml:"samplingRate"`
	// Channel selects the recording column when the file holds several.
	Channel int `yaml:"channel"`
}

// SpectralConfig sets the Welch estimation parameters.
type SpectralConfig struct {
	SegmentLength int  `yaml:"segmentLength"`
	Overlap       int  `yaml:"overlap"`
	ZScore        bool `yaml:"zscore"`
}

// StatesConfig drives the group summary: subjects listed here form the
// test group, everyone else the control group.
type StatesConfig struct {
	TestSubjects []string `yaml:"testSubjects"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory"`
}

// LoadConfig reads and validates the application configuration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if config.Experiment.StructurePath == "" {
		return nil, fmt.Errorf("experiment.structurePath is required")
	}
	if config.Experiment.DataRoot == "" {
		return nil, fmt.Errorf("experiment.dataRoot is required")
	}
	if config.Experiment.Framerate <= 0 {
		return nil, fmt.Errorf("experiment.framerate must be positive, got %g", config.Experiment.Framerate)
	}
	if config.Experiment.Timeslice < 0 {
		return nil, fmt.Errorf("experiment.timeslice must not be negative, got %g", config.Experiment.Timeslice)
	}
	if config.Neural.File == "" {
		config.Neural.File = "neural.csv"
	}
	if config.Neural.SamplingRate <= 0 {
		return nil, fmt.Errorf("neural.samplingRate must be positive, got %g", config.Neural.SamplingRate)
	}
	if config.Neural.Channel < 0 {
		return nil, fmt.Errorf("neural.channel must not be negative, got %d", config.Neural.Channel)
	}
	return &config, nil
}
