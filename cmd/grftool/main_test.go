package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Faultbox/surfsample/pkg/grf"
)

func TestPackExtract(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{
		"data/texture/wall.bmp": "BMfake",
		"data/model/broken.rsm": "not a model",
		"readme.txt":            "hello",
	}
	for name, content := range files {
		p := filepath.Join(src, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	archive := filepath.Join(t.TempDir(), "test.grf")
	var out bytes.Buffer
	if err := cmdPack(&out, []string{archive, src}); err != nil {
		t.Fatalf("pack: %v", err)
	}
	if !strings.Contains(out.String(), "Packed 3 files") {
		t.Errorf("pack output %q", out.String())
	}

	out.Reset()
	if err := cmdInfo(&out, []string{archive}); err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"Files:   3", ".bmp", ".rsm", ".txt"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("info output missing %q:\n%s", want, out.String())
		}
	}

	dst := t.TempDir()
	out.Reset()
	if err := cmdExtract(&out, []string{archive, "*.bmp", dst}); err != nil {
		t.Fatalf("extract: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dst, "data", "texture", "wall.bmp"))
	if err != nil {
		t.Fatalf("extracted file: %v", err)
	}
	if string(data) != "BMfake" {
		t.Errorf("extracted %q", data)
	}

	out.Reset()
	if err := cmdModels(&out, []string{archive}); err == nil {
		t.Error("expected parse error for broken model")
	}
	if !strings.Contains(out.String(), "(0 models)") {
		t.Errorf("models output %q", out.String())
	}
}

func TestExtractRejectsEscapingPaths(t *testing.T) {
	root := t.TempDir()
	archive := filepath.Join(root, "evil.grf")
	f, err := os.Create(archive)
	if err != nil {
		t.Fatal(err)
	}
	w := grf.NewWriter(f)
	for name, content := range map[string]string{
		"../../escaped.txt": "owned",
		"..\\sibling.txt":   "owned",
		"data/readme.txt":   "hello",
	} {
		if err := w.Add(name, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(root, "a", "b")
	var out bytes.Buffer
	if err := cmdExtract(&out, []string{archive, "*.txt", dst}); err == nil {
		t.Error("expected error for entries outside the output directory")
	}
	for _, p := range []string{filepath.Join(root, "escaped.txt"), filepath.Join(root, "a", "sibling.txt")} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s written outside output directory", p)
		}
	}
	data, err := os.ReadFile(filepath.Join(dst, "data", "readme.txt"))
	if err != nil || string(data) != "hello" {
		t.Errorf("local entry: %q, %v", data, err)
	}
	if !strings.Contains(out.String(), "Extracted 1 files") {
		t.Errorf("extract output %q", out.String())
	}
}

func TestUsageErrors(t *testing.T) {
	var out bytes.Buffer
	for name, fn := range map[string]func([]string) error{
		"info":    func(a []string) error { return cmdInfo(&out, a) },
		"models":  func(a []string) error { return cmdModels(&out, a) },
		"extract": func(a []string) error { return cmdExtract(&out, a) },
		"pack":    func(a []string) error { return cmdPack(&out, a) },
	} {
		if err := fn(nil); err == nil {
			t.Errorf("%s: expected usage error", name)
		}
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		pattern, name string
		want          bool
	}{
		{"", "data/model/a.rsm", true},
		{"*.rsm", "data/model/a.rsm", true},
		{"fountain", "data/model/prontera/fountain.rsm", true},
		{"*.bmp", "data/model/a.rsm", false},
	}
	for _, tt := range tests {
		if got := matches(tt.pattern, tt.name); got != tt.want {
			t.Errorf("matches(%q, %q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}
