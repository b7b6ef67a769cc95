// file.go provides the append-only file backing of the journal.
//
// File Format:
//
//	Header (16 bytes):
//	  - Magic: "BKJL" (4 bytes)
//	  - Version: uint16 (2 bytes)
//	  - Reserved: 10 bytes
//
//	Entries (variable):
//	  - Payload length: uint32 (4 bytes)
//	  - CRC32 (IEEE) of payload: uint32 (4 bytes)
//	  - Payload: Entry.MarshalBinary()
//
// Every append is fsynced before it returns. Reading stops at the first
// entry whose length or checksum does not match, which is how a torn write
// from a crash shows up.

package journal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/marmos91/bankd/internal/logger"
)

const (
	fileMagic      = "BKJL"
	fileVersion    = uint16(2)
	fileHeaderSize = 16
	entryFrameSize = 8

	// FileName is the journal file created inside the data directory.
	FileName = "journal.dat"
)

// FilePersister implements Persister on a single append-only file.
type FilePersister struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	closed bool
}

// NewFilePersister opens or creates dir/journal.dat.
func NewFilePersister(dir string) (*FilePersister, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	path := filepath.Join(dir, FileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	p := &FilePersister{path: path, file: f}
	if err := p.init(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return p, nil
}

// Path returns the journal file path.
func (p *FilePersister) Path() string {
	return p.path
}

// init writes a header into an empty file or validates an existing one.
func (p *FilePersister) init() error {
	info, err := p.file.Stat()
	if err != nil {
		return fmt.Errorf("stat journal: %w", err)
	}
	if info.Size() == 0 {
		return p.writeHeader()
	}
	if info.Size() < fileHeaderSize {
		return ErrCorrupted
	}

	header := make([]byte, fileHeaderSize)
	if _, err := p.file.ReadAt(header, 0); err != nil {
		return fmt.Errorf("read journal header: %w", err)
	}
	if string(header[:4]) != fileMagic {
		return ErrCorrupted
	}
	if binary.LittleEndian.Uint16(header[4:6]) != fileVersion {
		return ErrVersionMismatch
	}
	return nil
}

func (p *FilePersister) writeHeader() error {
	header := make([]byte, fileHeaderSize)
	copy(header, fileMagic)
	binary.LittleEndian.PutUint16(header[4:6], fileVersion)

	if err := p.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate journal: %w", err)
	}
	if _, err := p.file.WriteAt(header, 0); err != nil {
		return fmt.Errorf("write journal header: %w", err)
	}
	return p.file.Sync()
}

// Append writes one framed entry at the end of the file and syncs.
func (p *FilePersister) Append(entry *Entry) error {
	payload, err := entry.MarshalBinary()
	if err != nil {
		return err
	}
	frame := make([]byte, entryFrameSize, entryFrameSize+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(frame[4:8], crc32.ChecksumIEEE(payload))
	frame = append(frame, payload...)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersisterClosed
	}

	end, err := p.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek journal: %w", err)
	}
	if _, err := p.file.WriteAt(frame, end); err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("sync journal: %w", err)
	}
	return nil
}

// Entries reads every intact entry.
func (p *FilePersister) Entries() ([]Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPersisterClosed
	}

	info, err := p.file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat journal: %w", err)
	}
	size := info.Size()

	var (
		entries []Entry
		off     = int64(fileHeaderSize)
		frame   = make([]byte, entryFrameSize)
	)
	for off+entryFrameSize <= size {
		if _, err := p.file.ReadAt(frame, off); err != nil {
			return nil, fmt.Errorf("read journal frame: %w", err)
		}
		length := int64(binary.LittleEndian.Uint32(frame[0:4]))
		sum := binary.LittleEndian.Uint32(frame[4:8])
		if off+entryFrameSize+length > size {
			logger.Warn("Ignoring torn journal entry", logger.KeyPath, p.path, "offset", off)
			break
		}

		payload := make([]byte, length)
		if _, err := p.file.ReadAt(payload, off+entryFrameSize); err != nil {
			return nil, fmt.Errorf("read journal entry: %w", err)
		}
		if crc32.ChecksumIEEE(payload) != sum {
			logger.Warn("Ignoring journal entry with bad checksum", logger.KeyPath, p.path, "offset", off)
			break
		}

		var e Entry
		if err := e.UnmarshalBinary(payload); err != nil {
			return nil, err
		}
		entries = append(entries, e)
		off += entryFrameSize + length
	}
	return entries, nil
}

// Reset truncates the file back to its header.
func (p *FilePersister) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPersisterClosed
	}
	return p.writeHeader()
}

// Close syncs and closes the file.
func (p *FilePersister) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.file.Sync(); err != nil {
		_ = p.file.Close()
		return err
	}
	return p.file.Close()
}

// IsEnabled returns true.
func (p *FilePersister) IsEnabled() bool { return true }

var _ Persister = (*FilePersister)(nil)
