package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"io"
)

// ErrWriterClosed is returned by Writer methods after Close.
var ErrWriterClosed = errors.New("grf: writer closed")

// Writer builds a GRF 0x200 archive. Entries are buffered in memory
// because the header records the table offset; Close emits the archive.
type Writer struct {
	w      io.Writer
	body   bytes.Buffer
	table  bytes.Buffer
	count  int
	closed bool
}

// NewWriter returns a Writer that emits to w on Close.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Add stores data under name, zlib-compressed.
func (w *Writer) Add(name string, data []byte) error {
	return w.add(name, data, false, flagFile)
}

func (w *Writer) add(name string, content []byte, stored bool, flags uint8) error {
	if w.closed {
		return ErrWriterClosed
	}
	data := content
	if !stored {
		var z bytes.Buffer
		zw := zlib.NewWriter(&z)
		if _, err := zw.Write(content); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		data = z.Bytes()
	}

	offset := uint32(w.body.Len())
	w.body.Write(data)
	aligned := uint32(len(data))
	if pad := aligned % 8; pad != 0 {
		w.body.Write(make([]byte, 8-pad))
		aligned += 8 - pad
	}

	w.table.WriteString(toArchivePath(name))
	w.table.WriteByte(0)
	var rec [17]byte
	binary.LittleEndian.PutUint32(rec[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(rec[4:], aligned)
	binary.LittleEndian.PutUint32(rec[8:], uint32(len(content)))
	rec[12] = flags
	binary.LittleEndian.PutUint32(rec[13:], offset)
	w.table.Write(rec[:])
	w.count++
	return nil
}

// Close writes the header, entry data and compressed file table.
func (w *Writer) Close() error {
	if w.closed {
		return ErrWriterClosed
	}
	w.closed = true

	var zt bytes.Buffer
	zw := zlib.NewWriter(&zt)
	if _, err := zw.Write(w.table.Bytes()); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	header := make([]byte, headerSize)
	copy(header, grfMagic)
	binary.LittleEndian.PutUint32(header[30:], uint32(w.body.Len()))
	binary.LittleEndian.PutUint32(header[34:], 0)
	// FileCount is stored as count + seed + 7.
	binary.LittleEndian.PutUint32(header[38:], uint32(w.count+7))
	binary.LittleEndian.PutUint32(header[42:], version200)

	var sizes [8]byte
	binary.LittleEndian.PutUint32(sizes[0:], uint32(zt.Len()))
	binary.LittleEndian.PutUint32(sizes[4:], uint32(w.table.Len()))

	for _, chunk := range [][]byte{header, w.body.Bytes(), sizes[:], zt.Bytes()} {
		if _, err := w.w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// toArchivePath converts to the backslash separators archives use.
func toArchivePath(name string) string {
	return string(bytes.ReplaceAll([]byte(name), []byte("/"), []byte("\\")))
}
