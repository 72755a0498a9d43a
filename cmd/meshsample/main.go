// Package main is the entry point for meshsample, which draws area-weighted
// point samples from RSM and glTF models and primitive solids.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/surfsample/internal/config"
	"github.com/Faultbox/surfsample/internal/export"
	"github.com/Faultbox/surfsample/internal/loader"
	"github.com/Faultbox/surfsample/internal/logger"
	"github.com/Faultbox/surfsample/pkg/sampling"
	"github.com/Faultbox/surfsample/pkg/texture"
)

var errNoSources = errors.New("no mesh sources given")

func main() {
	flag.Usage = printUsage

	// Parse CLI flags first
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if path := config.SaveConfigPath(); path != "" {
		if err := cfg.SaveTo(path); err != nil {
			fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config written to %s\n", path)
		return
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, config.Sources()); err != nil {
		if errors.Is(err, errNoSources) {
			printUsage()
		}
		logger.Error("meshsample failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// run loads every source into one batch, samples it and writes the outputs.
func run(ctx context.Context, cfg *config.Config, sources []string) error {
	if len(sources) == 0 {
		return errNoSources
	}
	start := time.Now()

	filter, err := texture.ParseFilter(cfg.Input.Filter)
	if err != nil {
		return err
	}
	opts, err := cfg.SamplingOptions()
	if err != nil {
		return err
	}

	ld, err := loader.New(loader.Options{
		GRFPaths:   cfg.Input.GRFPaths,
		TextureDir: cfg.Input.TextureDir,
		Resolution: cfg.Input.Resolution,
		Workers:    cfg.Sampling.Workers,
	}, logger.Named("loader"))
	if err != nil {
		return fmt.Errorf("opening inputs: %w", err)
	}
	defer ld.Close()

	meshes, err := ld.Load(ctx, sources)
	if err != nil {
		return fmt.Errorf("loading meshes: %w", err)
	}
	batch, err := loader.Batch(meshes, filter)
	if err != nil {
		return fmt.Errorf("building batch: %w", err)
	}
	logger.Info("batch ready",
		zap.Int("meshes", batch.Len()),
		zap.Int("valid", batch.NumValid()),
		zap.Int("faces", len(batch.FacesPacked())))

	sampler, err := sampling.New(opts, logger.Named("sampling"))
	if err != nil {
		return err
	}
	seed := cfg.Sampling.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	res, err := sampler.Sample(batch, rand.New(rand.NewPCG(seed, seed)))
	if err != nil {
		return fmt.Errorf("sampling: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sum := export.Summarize(sources, batch, res, opts, seed)
	logger.Info("exporting", zap.String("run_id", sum.RunID), zap.String("dir", cfg.Output.Dir))
	if _, err := export.WriteAll(sum, batch, res, export.Options{
		Dir:         cfg.Output.Dir,
		PLY:         cfg.Output.PLY,
		Summary:     cfg.Output.Summary,
		Preview:     cfg.Output.Preview,
		PreviewSize: cfg.Output.PreviewSize,
		Workers:     cfg.Sampling.Workers,
	}, logger.Named("export")); err != nil {
		return fmt.Errorf("writing outputs: %w", err)
	}

	logger.Info("done",
		zap.Uint64("seed", seed),
		zap.Int("samples", opts.NumSamples),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `meshsample - area-weighted surface sampling for 3D models

Usage:
  meshsample [flags] <source>...

Sources:
  path/to/model.rsm        RSM model on disk
  path/to/scene.glb        glTF model on disk (.gltf or .glb)
  grf:data\model\x.rsm     model inside a --grf archive
  ico:<level>              icosphere subdivided <level> times
  sphere:<r>               sphere of radius r
  box:<s> | box:<a>x<b>x<c> box with the given edge lengths
  cylinder:<h>x<r>         cylinder of height h and radius r
  empty                    mesh with no faces

Examples:
  meshsample -samples 5000 -normals -curvature ico:3 sphere:1
  meshsample -grf data.grf -textures -preview grf:data\model\prontera\fountain.rsm

Flags:`)
	flag.PrintDefaults()
}
