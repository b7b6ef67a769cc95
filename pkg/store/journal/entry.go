package journal

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Kind is the type of a journal entry.
type Kind uint8

const (
	// KindBegin opens an operation.
	KindBegin Kind = iota + 1
	// KindImage records one record write of an operation.
	KindImage
	// KindCommit closes an operation. Rolled back operations are closed by
	// a commit entry as well.
	KindCommit
	// KindUndo marks the image with sequence Undoes as reverted, so that
	// recovery does not revert it a second time.
	KindUndo
)

func (k Kind) String() string {
	switch k {
	case KindBegin:
		return "begin"
	case KindImage:
		return "image"
	case KindCommit:
		return "commit"
	case KindUndo:
		return "undo"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Entry is one journal record.
//
// For an image, Pre is the record before the write and Post the record
// after it. Pre is empty when the write appended a new record. An undo
// entry names the reverted image of the same operation in Undoes.
type Entry struct {
	Kind      Kind
	OpID      string
	Seq       uint32
	Operation string // set on begin entries
	Table     string
	Position  int64
	Undoes    uint32
	Pre       []byte
	Post      []byte
	Timestamp time.Time
}

// IsAppend reports whether the image created a new record.
func (e *Entry) IsAppend() bool {
	return e.Kind == KindImage && len(e.Pre) == 0
}

// MarshalBinary encodes the entry.
//
// Layout (little-endian):
//
//	kind u8 | seq u32 | timestamp i64 | position i64 | undoes u32 |
//	opID, operation, table: u16 length + bytes |
//	pre, post: u32 length + bytes
func (e *Entry) MarshalBinary() ([]byte, error) {
	size := 1 + 4 + 8 + 8 + 4 +
		2 + len(e.OpID) + 2 + len(e.Operation) + 2 + len(e.Table) +
		4 + len(e.Pre) + 4 + len(e.Post)
	buf := make([]byte, 0, size)

	buf = append(buf, byte(e.Kind))
	buf = binary.LittleEndian.AppendUint32(buf, e.Seq)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.Timestamp.UnixNano()))
	buf = binary.LittleEndian.AppendUint64(buf, uint64(e.Position))
	buf = binary.LittleEndian.AppendUint32(buf, e.Undoes)

	for _, s := range []string{e.OpID, e.Operation, e.Table} {
		if len(s) > 0xFFFF {
			return nil, fmt.Errorf("journal string field too long: %d bytes", len(s))
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
		buf = append(buf, s...)
	}
	for _, b := range [][]byte{e.Pre, e.Post} {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(b)))
		buf = append(buf, b...)
	}
	return buf, nil
}

// UnmarshalBinary decodes an entry produced by MarshalBinary.
func (e *Entry) UnmarshalBinary(data []byte) error {
	r := reader{buf: data}

	e.Kind = Kind(r.u8())
	e.Seq = r.u32()
	e.Timestamp = time.Unix(0, int64(r.u64())).UTC()
	e.Position = int64(r.u64())
	e.Undoes = r.u32()
	e.OpID = string(r.bytes(int(r.u16())))
	e.Operation = string(r.bytes(int(r.u16())))
	e.Table = string(r.bytes(int(r.u16())))
	e.Pre = r.bytes(int(r.u32()))
	e.Post = r.bytes(int(r.u32()))

	if r.err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupted, r.err)
	}
	if r.off != len(data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupted, len(data)-r.off)
	}
	if e.Kind < KindBegin || e.Kind > KindUndo {
		return fmt.Errorf("%w: unknown entry kind %d", ErrCorrupted, e.Kind)
	}
	return nil
}

// reader decodes fields sequentially and remembers the first short read.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = fmt.Errorf("short entry at offset %d", r.off)
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *reader) bytes(n int) []byte {
	b := r.take(n)
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
