// grftool inspects and builds GRF archives holding RSM models and their
// textures for meshsample.
package main

import (
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/Faultbox/surfsample/pkg/formats"
	"github.com/Faultbox/surfsample/pkg/grf"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "info":
		err = cmdInfo(os.Stdout, args)
	case "models", "ls":
		err = cmdModels(os.Stdout, args)
	case "extract", "x":
		err = cmdExtract(os.Stdout, args)
	case "pack":
		err = cmdPack(os.Stdout, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`grftool - GRF archive utility for meshsample inputs

Usage:
  grftool <command> [options]

Commands:
  info <file.grf>                    Show archive information
  models <file.grf> [pattern]        List RSM models with mesh statistics
  extract <file.grf> <glob> [output] Extract matching files to a directory
  pack <out.grf> <dir>               Build an archive from a directory tree

Examples:
  grftool info data.grf
  grftool models data.grf "*fountain*"
  grftool extract data.grf "*.bmp" ./textures
  grftool pack models.grf ./data`)
}

func cmdInfo(w io.Writer, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: grftool info <file.grf>")
	}
	archive, err := grf.Open(args[0])
	if err != nil {
		return err
	}
	defer archive.Close()

	names := archive.List()
	extCount := lo.CountValuesBy(names, func(name string) string {
		if ext := strings.ToLower(path.Ext(name)); ext != "" {
			return ext
		}
		return "(no ext)"
	})
	total := lo.SumBy(names, func(name string) uint64 {
		if e, err := archive.Stat(name); err == nil {
			return uint64(e.UncompressedSize)
		}
		return 0
	})

	exts := lo.Keys(extCount)
	sort.Slice(exts, func(i, j int) bool {
		if extCount[exts[i]] != extCount[exts[j]] {
			return extCount[exts[i]] > extCount[exts[j]]
		}
		return exts[i] < exts[j]
	})

	h := archive.Header()
	fmt.Fprintf(w, "Archive: %s\n", args[0])
	fmt.Fprintf(w, "Version: 0x%x\n", h.Version)
	fmt.Fprintf(w, "Files:   %d\n", len(names))
	fmt.Fprintf(w, "Size:    %.2f MB\n\n", float64(total)/(1024*1024))
	fmt.Fprintln(w, "Files by type:")
	for _, ext := range exts {
		fmt.Fprintf(w, "  %-10s %d\n", ext, extCount[ext])
	}
	return nil
}

// cmdModels parses every matching RSM and prints its geometry counts along
// with textures the archive does not contain.
func cmdModels(w io.Writer, args []string) error {
	fset := flag.NewFlagSet("models", flag.ContinueOnError)
	limit := fset.Int("n", 0, "Limit output to N models (0 = all)")
	if err := fset.Parse(args); err != nil {
		return err
	}
	if fset.NArg() < 1 {
		return fmt.Errorf("usage: grftool models <file.grf> [pattern]")
	}

	archive, err := grf.Open(fset.Arg(0))
	if err != nil {
		return err
	}
	defer archive.Close()

	pattern := ""
	if fset.NArg() > 1 {
		pattern = strings.ToLower(fset.Arg(1))
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tVERSION\tNODES\tVERTS\tFACES\tMISSING TEXTURES")
	var errs error
	count := 0
	for _, name := range archive.List() {
		if !strings.HasSuffix(name, ".rsm") || !matches(pattern, name) {
			continue
		}
		data, err := archive.ReadFile(name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		rsm, err := formats.ParseRSM(data)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		missing := 0
		for _, tex := range rsm.Textures {
			if !archive.Contains("data/texture/" + tex) {
				missing++
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n", name, rsm.Version, len(rsm.Nodes),
			rsm.GetTotalVertexCount(), rsm.GetTotalFaceCount(), missing)
		count++
		if *limit > 0 && count >= *limit {
			break
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n(%d models)\n", count)
	return errs
}

func cmdExtract(w io.Writer, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: grftool extract <file.grf> <glob> [output_dir]")
	}
	outputDir := "."
	if len(args) > 2 {
		outputDir = args[2]
	}

	archive, err := grf.Open(args[0])
	if err != nil {
		return err
	}
	defer archive.Close()

	pattern := strings.ToLower(strings.ReplaceAll(args[1], "\\", "/"))
	var errs error
	extracted := 0
	for _, name := range archive.List() {
		if ok, _ := path.Match(pattern, name); !ok {
			if ok, _ = path.Match(pattern, path.Base(name)); !ok {
				continue
			}
		}
		rel := filepath.FromSlash(name)
		if !filepath.IsLocal(rel) {
			errs = multierr.Append(errs, fmt.Errorf("%s: path escapes output directory", name))
			continue
		}
		data, err := archive.ReadFile(name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out := filepath.Join(outputDir, rel)
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		fmt.Fprintf(w, "Extracted: %s (%d bytes)\n", out, len(data))
		extracted++
	}
	fmt.Fprintf(w, "\nExtracted %d files\n", extracted)
	return errs
}

// cmdPack stores every regular file under dir, named by its slash path
// relative to dir.
func cmdPack(w io.Writer, args []string) (err error) {
	if len(args) < 2 {
		return fmt.Errorf("usage: grftool pack <out.grf> <dir>")
	}
	out, root := args[0], args[1]

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	gw := grf.NewWriter(f)
	added := 0
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		added++
		return gw.Add(filepath.ToSlash(rel), data)
	})
	if err != nil {
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Packed %d files into %s\n", added, out)
	return nil
}

func matches(pattern, name string) bool {
	if pattern == "" {
		return true
	}
	if ok, _ := path.Match(pattern, path.Base(name)); ok {
		return true
	}
	return strings.Contains(name, pattern)
}
