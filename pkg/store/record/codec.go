package record

import (
	"encoding/binary"
	"strings"
	"time"
)

// Codec maps a record type to its fixed-size on-disk form.
type Codec[T any] interface {
	// Size is the exact number of bytes of one encoded record.
	Size() int

	// Encode writes rec into buf, which is exactly Size() bytes and zeroed.
	Encode(rec *T, buf []byte) error

	// Decode reads rec from buf, which is exactly Size() bytes.
	Decode(buf []byte, rec *T) error

	// ID returns the record's primary id.
	ID(rec *T) int32
}

// Reverter is implemented by codecs whose records can be reverted field by
// field. Revert undoes on cur the change that turned pre into post, even if
// cur has been written again since. It returns an error when the change
// can no longer be undone.
type Reverter[T any] interface {
	Revert(cur, pre, post *T) error
}

// Encoder writes little-endian fields sequentially into a record buffer.
// Writes past the end of the buffer panic, which makes a wrong Size() fail
// loudly in tests.
type Encoder struct {
	buf []byte
	off int
}

// NewEncoder returns an Encoder over buf.
func NewEncoder(buf []byte) *Encoder {
	return &Encoder{buf: buf}
}

// Int32 appends a 4-byte integer.
func (e *Encoder) Int32(v int32) {
	binary.LittleEndian.PutUint32(e.buf[e.off:], uint32(v))
	e.off += 4
}

// Int64 appends an 8-byte integer.
func (e *Encoder) Int64(v int64) {
	binary.LittleEndian.PutUint64(e.buf[e.off:], uint64(v))
	e.off += 8
}

// Bool appends a single byte, 1 for true.
func (e *Encoder) Bool(v bool) {
	if v {
		e.buf[e.off] = 1
	}
	e.off++
}

// Uint8 appends a single byte.
func (e *Encoder) Uint8(v uint8) {
	e.buf[e.off] = v
	e.off++
}

// String appends s truncated to width bytes and zero padded.
func (e *Encoder) String(s string, width int) {
	if len(s) > width {
		s = s[:width]
	}
	copy(e.buf[e.off:e.off+width], s)
	e.off += width
}

// Time appends t as Unix nanoseconds. The zero time is stored as 0.
func (e *Encoder) Time(t time.Time) {
	if t.IsZero() {
		e.Int64(0)
		return
	}
	e.Int64(t.UnixNano())
}

// Offset returns the number of bytes written so far.
func (e *Encoder) Offset() int {
	return e.off
}

// Decoder reads fields written by Encoder.
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder returns a Decoder over buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Int32 reads a 4-byte integer.
func (d *Decoder) Int32() int32 {
	v := int32(binary.LittleEndian.Uint32(d.buf[d.off:]))
	d.off += 4
	return v
}

// Int64 reads an 8-byte integer.
func (d *Decoder) Int64() int64 {
	v := int64(binary.LittleEndian.Uint64(d.buf[d.off:]))
	d.off += 8
	return v
}

// Bool reads a single byte.
func (d *Decoder) Bool() bool {
	v := d.buf[d.off] != 0
	d.off++
	return v
}

// Uint8 reads a single byte.
func (d *Decoder) Uint8() uint8 {
	v := d.buf[d.off]
	d.off++
	return v
}

// String reads a zero-padded string of width bytes.
func (d *Decoder) String(width int) string {
	raw := d.buf[d.off : d.off+width]
	d.off += width
	if i := strings.IndexByte(string(raw), 0); i >= 0 {
		raw = raw[:i]
	}
	return string(raw)
}

// Time reads Unix nanoseconds written by Encoder.Time.
func (d *Decoder) Time() time.Time {
	ns := d.Int64()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns).UTC()
}
