// Package grf reads Ragnarok Online GRF 0x200 archives.
package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

const (
	grfMagic   = "Master of Magic"
	headerSize = 46
	version200 = 0x200

	flagFile      = 0x01
	flagMixCrypt  = 0x02
	flagDESHeader = 0x04
)

// Archive errors.
var (
	ErrInvalidMagic       = errors.New("grf: invalid magic")
	ErrUnsupportedVersion = errors.New("grf: unsupported version")
	ErrCorruptTable       = errors.New("grf: corrupt file table")
	ErrNotFound           = errors.New("grf: file not found")
	ErrEncrypted          = errors.New("grf: encrypted entries are not supported")
)

// Header contains GRF file header information.
type Header struct {
	Magic         [15]byte
	EncryptionKey [15]byte
	TableOffset   uint32
	Seed          uint32
	FileCount     uint32
	Version       uint32
}

// Entry represents a file entry in the archive.
type Entry struct {
	Name             string
	CompressedSize   uint32
	AlignedSize      uint32
	UncompressedSize uint32
	Flags            uint8
	Offset           uint32
}

// Encrypted reports whether the entry data is DES-scrambled.
func (e *Entry) Encrypted() bool { return e.Flags&(flagMixCrypt|flagDESHeader) != 0 }

// Archive is an opened GRF archive. ReadFile is safe for concurrent use.
type Archive struct {
	r       io.ReaderAt
	closer  io.Closer
	header  Header
	entries map[string]*Entry
}

// Open opens a GRF archive on disk.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	a, err := NewArchive(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	a.closer = f
	return a, nil
}

// NewArchive reads the header and file table from r.
func NewArchive(r io.ReaderAt) (*Archive, error) {
	a := &Archive{r: r, entries: make(map[string]*Entry)}
	if err := a.readHeader(); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	if err := a.readFileTable(); err != nil {
		return nil, fmt.Errorf("reading file table: %w", err)
	}
	return a, nil
}

// Close closes the underlying file, if the archive owns one.
func (a *Archive) Close() error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// Header returns the archive header.
func (a *Archive) Header() Header { return a.header }

func (a *Archive) readHeader() error {
	buf := make([]byte, headerSize)
	if _, err := a.r.ReadAt(buf, 0); err != nil {
		return err
	}
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &a.header); err != nil {
		return err
	}
	if string(a.header.Magic[:]) != grfMagic {
		return ErrInvalidMagic
	}
	if a.header.Version != version200 {
		return fmt.Errorf("%w: 0x%x", ErrUnsupportedVersion, a.header.Version)
	}
	return nil
}

func (a *Archive) readFileTable() error {
	base := int64(a.header.TableOffset) + headerSize
	sizes := make([]byte, 8)
	if _, err := a.r.ReadAt(sizes, base); err != nil {
		return err
	}
	compressedSize := binary.LittleEndian.Uint32(sizes)
	uncompressedSize := binary.LittleEndian.Uint32(sizes[4:])

	compressed := make([]byte, compressedSize)
	if _, err := a.r.ReadAt(compressed, base+8); err != nil {
		return err
	}
	table, err := inflate(compressed, uncompressedSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptTable, err)
	}

	fileCount := int64(a.header.FileCount) - int64(a.header.Seed) - 7
	offset := 0
	for i := int64(0); i < fileCount; i++ {
		nameEnd := bytes.IndexByte(table[offset:], 0)
		if nameEnd < 0 || offset+nameEnd+1+17 > len(table) {
			return fmt.Errorf("%w: entry %d of %d", ErrCorruptTable, i, fileCount)
		}
		name := string(table[offset : offset+nameEnd])
		offset += nameEnd + 1

		e := &Entry{
			Name:             normalizePath(name),
			CompressedSize:   binary.LittleEndian.Uint32(table[offset:]),
			AlignedSize:      binary.LittleEndian.Uint32(table[offset+4:]),
			UncompressedSize: binary.LittleEndian.Uint32(table[offset+8:]),
			Flags:            table[offset+12],
			Offset:           binary.LittleEndian.Uint32(table[offset+13:]),
		}
		offset += 17

		if e.Flags&flagFile != 0 {
			a.entries[e.Name] = e
		}
	}
	return nil
}

// List returns all file paths in the archive, sorted.
func (a *Archive) List() []string {
	names := make([]string, 0, len(a.entries))
	for name := range a.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Contains checks if a file exists.
func (a *Archive) Contains(path string) bool {
	_, ok := a.entries[normalizePath(path)]
	return ok
}

// Stat returns the entry for path.
func (a *Archive) Stat(path string) (*Entry, error) {
	e, ok := a.entries[normalizePath(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return e, nil
}

// ReadFile returns the uncompressed content of path. Lookups are case
// and separator insensitive.
func (a *Archive) ReadFile(path string) ([]byte, error) {
	e, err := a.Stat(path)
	if err != nil {
		return nil, err
	}
	if e.Encrypted() {
		return nil, fmt.Errorf("%w: %s", ErrEncrypted, path)
	}

	data := make([]byte, e.CompressedSize)
	if _, err := a.r.ReadAt(data, int64(e.Offset)+headerSize); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if e.CompressedSize == e.UncompressedSize {
		return data, nil
	}
	out, err := inflate(data, e.UncompressedSize)
	if err != nil {
		return nil, fmt.Errorf("inflating %s: %w", path, err)
	}
	return out, nil
}

func inflate(data []byte, size uint32) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	out := make([]byte, size)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, err
	}
	return out, nil
}

func normalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ToLower(path)
}
