package config

import (
	"flag"
	"strings"
)

var (
	flagConfig      = flag.String("config", "", "Path to config file")
	flagSaveConfig  = flag.String("save-config", "", "Write the effective config to this path and exit")
	flagDebug       = flag.Bool("debug", false, "Enable debug logging")
	flagSamples     = flag.Int("samples", 0, "Points sampled per mesh")
	flagInterpolate = flag.String("interpolate", "", "Feature interpolation: none, barycentric, majority, nearest")
	flagNormals     = flag.Bool("normals", false, "Return per-sample normals")
	flagTextures    = flag.Bool("textures", false, "Return per-sample texture colours")
	flagCurvature   = flag.Bool("curvature", false, "Return per-sample mean curvature")
	flagCentroids   = flag.Bool("centroids", false, "Sample face centroids instead of random points")
	flagSeed        = flag.Uint64("seed", 0, "Random seed (0 picks one)")
	flagWorkers     = flag.Int("workers", 0, "Per-mesh worker count")
	flagGRF         = flag.String("grf", "", "Comma-separated GRF archives for grf: sources")
	flagOut         = flag.String("out", "", "Output directory")
	flagPreview     = flag.Bool("preview", false, "Write a WebP preview per mesh")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// SaveConfigPath returns the --save-config destination, if any.
func SaveConfigPath() string {
	return *flagSaveConfig
}

// Sources returns the positional mesh source arguments.
func Sources() []string {
	return flag.Args()
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagSamples > 0 {
		cfg.Sampling.NumSamples = *flagSamples
	}
	if *flagInterpolate != "" {
		cfg.Sampling.Interpolate = *flagInterpolate
	}
	if *flagNormals {
		cfg.Sampling.Normals = true
	}
	if *flagTextures {
		cfg.Sampling.Textures = true
	}
	if *flagCurvature {
		cfg.Sampling.Curvature = true
	}
	if *flagCentroids {
		cfg.Sampling.UseCentroids = true
	}
	if *flagSeed != 0 {
		cfg.Sampling.Seed = *flagSeed
	}
	if *flagWorkers > 0 {
		cfg.Sampling.Workers = *flagWorkers
	}
	if *flagGRF != "" {
		for _, p := range strings.Split(*flagGRF, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Input.GRFPaths = append(cfg.Input.GRFPaths, p)
			}
		}
	}
	if *flagOut != "" {
		cfg.Output.Dir = *flagOut
	}
	if *flagPreview {
		cfg.Output.Preview = true
	}
}
