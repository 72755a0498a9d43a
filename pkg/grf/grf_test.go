package grf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

type testFile struct {
	name    string
	content []byte
	flags   uint8
	stored  bool // write uncompressed
}

// buildGRF assembles an archive in memory.
func buildGRF(t *testing.T, files []testFile) []byte {
	t.Helper()
	var out bytes.Buffer
	w := NewWriter(&out)
	for _, f := range files {
		flags := f.flags
		if flags == 0 {
			flags = flagFile
		}
		if err := w.add(f.name, f.content, f.stored, flags); err != nil {
			t.Fatalf("adding %s: %v", f.name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("closing writer: %v", err)
	}
	return out.Bytes()
}

func writeGRF(t *testing.T, files []testFile) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.grf")
	if err := os.WriteFile(path, buildGRF(t, files), 0o644); err != nil {
		t.Fatalf("writing archive: %v", err)
	}
	return path
}

var sampleFiles = []testFile{
	{name: "data\\model\\house.rsm", content: []byte("GRSM model bytes")},
	{name: "data\\texture\\Wall.bmp", content: bytes.Repeat([]byte("BM"), 100)},
	{name: "data\\stored.txt", content: []byte("plain"), stored: true},
	{name: "data\\secret.txt", content: []byte("hidden"), flags: flagFile | flagMixCrypt},
	{name: "data\\folder", content: nil, flags: 0x02},
}

func TestOpenAndRead(t *testing.T) {
	archive, err := Open(writeGRF(t, sampleFiles))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer archive.Close()

	if archive.Header().Version != version200 {
		t.Errorf("Version = 0x%x", archive.Header().Version)
	}

	tests := []struct {
		path string
		want string
	}{
		{"data/model/house.rsm", "GRSM model bytes"},
		{"DATA\\TEXTURE\\wall.BMP", string(bytes.Repeat([]byte("BM"), 100))},
		{"data/stored.txt", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := archive.ReadFile(tt.path)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("content = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestList(t *testing.T) {
	archive, err := NewArchive(bytes.NewReader(buildGRF(t, sampleFiles)))
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	files := archive.List()
	want := []string{"data/model/house.rsm", "data/secret.txt", "data/stored.txt", "data/texture/wall.bmp"}
	if len(files) != len(want) {
		t.Fatalf("List = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, files[i], want[i])
		}
	}
	if !archive.Contains("Data\\Model\\House.rsm") || archive.Contains("data/folder") {
		t.Error("Contains gave wrong answers")
	}
}

func TestReadErrors(t *testing.T) {
	archive, err := NewArchive(bytes.NewReader(buildGRF(t, sampleFiles)))
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	if _, err := archive.ReadFile("data/missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := archive.ReadFile("data/secret.txt"); !errors.Is(err, ErrEncrypted) {
		t.Errorf("expected ErrEncrypted, got %v", err)
	}
}

func TestOpenErrors(t *testing.T) {
	good := buildGRF(t, sampleFiles)

	badMagic := bytes.Clone(good)
	badMagic[0] = 'X'
	badVersion := bytes.Clone(good)
	binary.LittleEndian.PutUint32(badVersion[42:], 0x103)
	// Claim a larger uncompressed table than the stream holds.
	badTable := bytes.Clone(good)
	sizeAt := headerSize + binary.LittleEndian.Uint32(good[30:]) + 4
	binary.LittleEndian.PutUint32(badTable[sizeAt:], 1<<16)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"magic", badMagic, ErrInvalidMagic},
		{"version", badVersion, ErrUnsupportedVersion},
		{"table", badTable, ErrCorruptTable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewArchive(bytes.NewReader(tt.data)); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := Open(filepath.Join(t.TempDir(), "nope.grf")); err == nil {
		t.Error("expected error opening a missing file")
	}
}

func TestConcurrentReads(t *testing.T) {
	archive, err := Open(writeGRF(t, sampleFiles))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer archive.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := "data/model/house.rsm"
			if i%2 == 1 {
				name = "data/texture/wall.bmp"
			}
			if _, err := archive.ReadFile(name); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestWriterAdd(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.Add("data/model/a.rsm", []byte("model")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := w.Add("data/texture/b.bmp", nil); err != nil {
		t.Fatalf("Add empty: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Add("late.txt", nil); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("expected ErrWriterClosed, got %v", err)
	}
	if err := w.Close(); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("expected ErrWriterClosed on second Close, got %v", err)
	}

	archive, err := NewArchive(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	got, err := archive.ReadFile("data\\model\\a.rsm")
	if err != nil || string(got) != "model" {
		t.Errorf("ReadFile = %q, %v", got, err)
	}
	e, err := archive.Stat("data/texture/b.bmp")
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if e.UncompressedSize != 0 || e.AlignedSize%8 != 0 {
		t.Errorf("unexpected entry %+v", e)
	}
}
