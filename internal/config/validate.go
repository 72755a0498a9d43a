package config

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/Faultbox/surfsample/internal/logger"
	"github.com/Faultbox/surfsample/pkg/sampling"
	"github.com/Faultbox/surfsample/pkg/texture"
)

// ErrInvalid marks every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var err error
	bad := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Sampling.NumSamples <= 0 {
		bad("sampling.num_samples must be positive, got %d", c.Sampling.NumSamples)
	}
	if _, perr := sampling.ParseInterpolation(c.Sampling.Interpolate); perr != nil {
		bad("sampling.interpolate: %v", perr)
	}
	if c.Sampling.Workers < 0 {
		bad("sampling.workers must not be negative, got %d", c.Sampling.Workers)
	}
	if _, perr := texture.ParseFilter(c.Input.Filter); perr != nil {
		bad("input.filter: %v", perr)
	}
	if c.Input.Resolution < 4 {
		bad("input.resolution must be at least 4, got %d", c.Input.Resolution)
	}
	if c.Output.Dir == "" {
		bad("output.dir is empty")
	}
	if c.Output.Preview && c.Output.PreviewSize <= 0 {
		bad("output.preview_size must be positive, got %d", c.Output.PreviewSize)
	}
	if _, perr := logger.ParseLevel(c.Logging.Level); perr != nil {
		bad("logging.level: %v", perr)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		bad("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return err
}

// SamplingOptions converts the sampling section into sampler options.
func (c *Config) SamplingOptions() (sampling.Options, error) {
	mode, err := sampling.ParseInterpolation(c.Sampling.Interpolate)
	if err != nil {
		return sampling.Options{}, err
	}
	return sampling.Options{
		NumSamples:      c.Sampling.NumSamples,
		ReturnNormals:   c.Sampling.Normals,
		ReturnTextures:  c.Sampling.Textures,
		ReturnCurvature: c.Sampling.Curvature,
		Interpolate:     mode,
		UseCentroids:    c.Sampling.UseCentroids,
		Workers:         c.Sampling.Workers,
	}, nil
}
