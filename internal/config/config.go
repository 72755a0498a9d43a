// Package config handles meshsample configuration loading and management.
package config

// Config holds all meshsample settings.
type Config struct {
	Sampling SamplingConfig `yaml:"sampling"`
	Input    InputConfig    `yaml:"input"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SamplingConfig holds surface sampling settings.
type SamplingConfig struct {
	NumSamples   int    `yaml:"num_samples"`
	Normals      bool   `yaml:"normals"`
	Textures     bool   `yaml:"textures"`
	Curvature    bool   `yaml:"curvature"`
	Interpolate  string `yaml:"interpolate"` // none, barycentric, majority, nearest
	UseCentroids bool   `yaml:"use_centroids"`
	Seed         uint64 `yaml:"seed"`    // 0 picks a random seed
	Workers      int    `yaml:"workers"` // 0 uses every CPU
}

// InputConfig holds mesh source settings.
type InputConfig struct {
	GRFPaths   []string `yaml:"grf_paths"`   // archives searched for grf: sources
	TextureDir string   `yaml:"texture_dir"` // fallback directory for RSM textures
	Filter     string   `yaml:"filter"`      // bilinear or nearest
	Resolution int      `yaml:"resolution"`  // marching cubes cells along the longest axis
}

// OutputConfig holds export settings.
type OutputConfig struct {
	Dir         string `yaml:"dir"`
	PLY         bool   `yaml:"ply"`
	Summary     bool   `yaml:"summary"`
	Preview     bool   `yaml:"preview"`
	PreviewSize int    `yaml:"preview_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"` // console or json
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Sampling: SamplingConfig{
			NumSamples:  10000,
			Normals:     true,
			Interpolate: "none",
		},
		Input: InputConfig{
			Filter:     "bilinear",
			Resolution: 48,
		},
		Output: OutputConfig{
			Dir:         "out",
			PLY:         true,
			Summary:     true,
			Preview:     false,
			PreviewSize: 512,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
