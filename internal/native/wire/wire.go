// Package wire encodes and decodes the fixed-layout records exchanged with
// the native SDK.
//
// Every record is little-endian, has a fixed size, and begins with a uint32
// version the producer must initialise. Strings occupy fixed-capacity,
// NUL-terminated byte arrays. Writer and Reader keep the first error they
// hit and ignore later calls, so a record is encoded or decoded as a flat
// sequence of field calls followed by a single error check.
package wire

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/google/uuid"

	bridgeerrors "github.com/Iron-Ham/spatialbridge/internal/errors"
)

// HeaderSize is the size of the version field that opens every record.
const HeaderSize = 4

// UUIDSize is the size of an inline UUID field.
const UUIDSize = 16

// Vec3 is three packed float32 values.
type Vec3 struct{ X, Y, Z float32 }

// Quat is four packed float32 values (x, y, z, w).
type Quat struct{ X, Y, Z, W float32 }

// Vec3Size and QuatSize are the encoded sizes.
const (
	Vec3Size = 12
	QuatSize = 16
)

// Writer fills a fixed-size record.
type Writer struct {
	record string
	buf    []byte
	off    int
	err    error
}

// NewWriter allocates a record of size bytes and writes the version header.
func NewWriter(record string, size int, version uint32) *Writer {
	w := &Writer{record: record, buf: make([]byte, size)}
	w.Uint32("version", version)
	return w
}

func (w *Writer) reserve(field string, n int) []byte {
	if w.err != nil {
		return nil
	}
	if n < 0 || w.off+n > len(w.buf) {
		w.err = bridgeerrors.NewRecordError(w.record, bridgeerrors.ErrRecordSize).
			WithField(field).WithLength(len(w.buf), w.off+n)
		return nil
	}
	b := w.buf[w.off : w.off+n]
	w.off += n
	return b
}

// Uint8 writes one byte.
func (w *Writer) Uint8(field string, v uint8) {
	if b := w.reserve(field, 1); b != nil {
		b[0] = v
	}
}

// Bool writes a byte that is 1 for true.
func (w *Writer) Bool(field string, v bool) {
	var b uint8
	if v {
		b = 1
	}
	w.Uint8(field, b)
}

// Uint32 writes a little-endian uint32.
func (w *Writer) Uint32(field string, v uint32) {
	if b := w.reserve(field, 4); b != nil {
		binary.LittleEndian.PutUint32(b, v)
	}
}

// Uint64 writes a little-endian uint64.
func (w *Writer) Uint64(field string, v uint64) {
	if b := w.reserve(field, 8); b != nil {
		binary.LittleEndian.PutUint64(b, v)
	}
}

// Float32 writes an IEEE-754 float32.
func (w *Writer) Float32(field string, v float32) {
	w.Uint32(field, math.Float32bits(v))
}

// Vec3 writes three float32 values.
func (w *Writer) Vec3(field string, v Vec3) {
	w.Float32(field, v.X)
	w.Float32(field, v.Y)
	w.Float32(field, v.Z)
}

// Quat writes four float32 values.
func (w *Writer) Quat(field string, q Quat) {
	w.Float32(field, q.X)
	w.Float32(field, q.Y)
	w.Float32(field, q.Z)
	w.Float32(field, q.W)
}

// UUID writes 16 raw bytes.
func (w *Writer) UUID(field string, id uuid.UUID) {
	if b := w.reserve(field, UUIDSize); b != nil {
		copy(b, id[:])
	}
}

// String writes s into a capacity-byte field. One byte is kept for the NUL
// terminator, so len(s) must be below capacity.
func (w *Writer) String(field string, s string, capacity int) {
	if w.err != nil {
		return
	}
	if len(s) >= capacity {
		w.err = bridgeerrors.NewRecordError(w.record, bridgeerrors.ErrFieldOverflow).
			WithField(field).WithLength(capacity-1, len(s))
		return
	}
	if b := w.reserve(field, capacity); b != nil {
		copy(b, s)
	}
}

// Bytes writes data into a capacity-byte field and returns nothing; the
// caller records len(data) in a separate length field.
func (w *Writer) Bytes(field string, data []byte, capacity int) {
	if w.err != nil {
		return
	}
	if len(data) > capacity {
		w.err = bridgeerrors.NewRecordError(w.record, bridgeerrors.ErrFieldOverflow).
			WithField(field).WithLength(capacity, len(data))
		return
	}
	if b := w.reserve(field, capacity); b != nil {
		copy(b, data)
	}
}

// Pad skips n zero bytes.
func (w *Writer) Pad(n int) {
	w.reserve("padding", n)
}

// Finish returns the record. It fails if any field failed or if the fields
// did not fill the record exactly.
func (w *Writer) Finish() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	if w.off != len(w.buf) {
		return nil, bridgeerrors.NewRecordError(w.record, bridgeerrors.ErrRecordSize).
			WithLength(len(w.buf), w.off)
	}
	return w.buf, nil
}

// Reader consumes a fixed-size record.
type Reader struct {
	record string
	buf    []byte
	off    int
	err    error
}

// NewReader checks that buf is exactly size bytes and that its version
// header equals version.
func NewReader(record string, buf []byte, size int, version uint32) *Reader {
	r := &Reader{record: record, buf: buf}
	if len(buf) != size {
		r.err = bridgeerrors.NewRecordError(record, bridgeerrors.ErrRecordSize).WithLength(size, len(buf))
		return r
	}
	if got := r.Uint32("version"); r.err == nil && got != version {
		r.err = bridgeerrors.NewRecordError(record, bridgeerrors.ErrRecordVersion).
			WithField("version").WithLength(int(version), int(got))
	}
	return r
}

func (r *Reader) take(field string, n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = bridgeerrors.NewRecordError(r.record, bridgeerrors.ErrRecordSize).
			WithField(field).WithLength(r.off+n, len(r.buf))
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// Uint8 reads one byte.
func (r *Reader) Uint8(field string) uint8 {
	if b := r.take(field, 1); b != nil {
		return b[0]
	}
	return 0
}

// Bool reads a byte and reports whether it is non-zero.
func (r *Reader) Bool(field string) bool {
	return r.Uint8(field) != 0
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32(field string) uint32 {
	if b := r.take(field, 4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

// Uint64 reads a little-endian uint64.
func (r *Reader) Uint64(field string) uint64 {
	if b := r.take(field, 8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

// Float32 reads an IEEE-754 float32.
func (r *Reader) Float32(field string) float32 {
	return math.Float32frombits(r.Uint32(field))
}

// Vec3 reads three float32 values.
func (r *Reader) Vec3(field string) Vec3 {
	return Vec3{X: r.Float32(field), Y: r.Float32(field), Z: r.Float32(field)}
}

// Quat reads four float32 values.
func (r *Reader) Quat(field string) Quat {
	return Quat{X: r.Float32(field), Y: r.Float32(field), Z: r.Float32(field), W: r.Float32(field)}
}

// UUID reads 16 raw bytes.
func (r *Reader) UUID(field string) uuid.UUID {
	var id uuid.UUID
	if b := r.take(field, UUIDSize); b != nil {
		copy(id[:], b)
	}
	return id
}

// String reads a capacity-byte NUL-terminated field. A field with no
// terminator is rejected.
func (r *Reader) String(field string, capacity int) string {
	b := r.take(field, capacity)
	if b == nil {
		return ""
	}
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		r.err = bridgeerrors.NewRecordError(r.record, bridgeerrors.ErrFieldOverflow).
			WithField(field).WithLength(capacity-1, capacity)
		return ""
	}
	return string(b[:n])
}

// Bytes reads a capacity-byte field and returns a copy of its first n
// bytes. n comes from a separately decoded length field.
func (r *Reader) Bytes(field string, capacity int, n uint32) []byte {
	b := r.take(field, capacity)
	if b == nil {
		return nil
	}
	if int(n) > capacity {
		r.err = bridgeerrors.NewRecordError(r.record, bridgeerrors.ErrFieldOverflow).
			WithField(field).WithLength(capacity, int(n))
		return nil
	}
	out := make([]byte, n)
	copy(out, b[:n])
	return out
}

// Skip consumes n bytes of padding.
func (r *Reader) Skip(n int) {
	r.take("padding", n)
}

// Err returns the first error, or a size error if the record was not fully
// consumed.
func (r *Reader) Err() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.buf) {
		return bridgeerrors.NewRecordError(r.record, bridgeerrors.ErrRecordSize).
			WithLength(r.off, len(r.buf))
	}
	return nil
}
