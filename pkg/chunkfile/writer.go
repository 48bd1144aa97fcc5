package chunkfile

import (
	"fmt"
	"io"
)

// WriteSeeker is the minimal destination a Writer needs: something it can
// append to and seek backward in to patch a chunk's record once its size is
// known. *os.File satisfies this directly.
type WriteSeeker interface {
	io.Writer
	io.Seeker
}

// Writer streams a chunk file's payloads directly to dst without holding
// the whole artifact in memory. The caller declares a chunk with
// BeginChunk, writes its payload with any number of Write calls, then calls
// FinishCurrentChunk (or starts the next chunk, which finishes the current
// one implicitly) to seek back and patch that chunk's record with its
// final size.
//
// Writer reserves chunkCount records up front; the destructor-equivalent
// Close returns an error if fewer than chunkCount chunks were written, matching the
// original engine's debug assertion that every declared chunk slot gets
// filled.
type Writer struct {
	dst WriteSeeker

	chunkCount    uint32
	activeIndex   uint32
	active        ChunkRecord
	activeStart   int64
	hasActive     bool
	currentOffset int64
}

// NewWriter writes the chunk-file header and a placeholder table of
// chunkCount empty records to dst, then returns a Writer ready for
// BeginChunk calls. dst's current position must be the start of the file.
func NewWriter(dst WriteSeeker, chunkCount uint32, buildVersion, buildDate string) (*Writer, error) {
	header := MakeHeader(chunkCount, buildVersion, buildDate)
	if err := writeHeader(dst, header); err != nil {
		return nil, fmt.Errorf("write chunk file header: %w", err)
	}

	var blank ChunkRecord
	for i := uint32(0); i < chunkCount; i++ {
		if err := writeRecord(dst, blank); err != nil {
			return nil, fmt.Errorf("write placeholder chunk record: %w", err)
		}
	}

	return &Writer{
		dst:           dst,
		chunkCount:    chunkCount,
		currentOffset: int64(headerSize + recordSize*int(chunkCount)),
	}, nil
}

// BeginChunk finishes any chunk already in progress, then declares a new
// chunk of the given type/version/name starting at the writer's current
// position.
func (w *Writer) BeginChunk(typeID uint64, version uint32, name string) error {
	if w.hasActive {
		if err := w.FinishCurrentChunk(); err != nil {
			return err
		}
	}

	w.active = ChunkRecord{
		TypeID:       typeID,
		ChunkVersion: version,
		Name:         padName(name),
		FileOffset:   uint32(w.currentOffset),
	}
	w.activeStart = w.currentOffset
	w.hasActive = true
	return nil
}

// Write appends to the chunk currently in progress. BeginChunk must have
// been called first.
func (w *Writer) Write(p []byte) (int, error) {
	n, err := w.dst.Write(p)
	w.currentOffset += int64(n)
	return n, err
}

// FinishCurrentChunk seals the chunk in progress: it seeks back to that
// chunk's slot in the table, writes the now-known size, and returns to the
// writer's current append position.
func (w *Writer) FinishCurrentChunk() error {
	if !w.hasActive {
		return nil
	}

	w.active.Size = uint32(w.currentOffset - w.activeStart)

	slot := int64(headerSize + recordSize*int(w.activeIndex))
	if _, err := w.dst.Seek(slot, io.SeekStart); err != nil {
		return fmt.Errorf("seek to chunk record slot: %w", err)
	}
	if err := writeRecord(w.dst, w.active); err != nil {
		return fmt.Errorf("patch chunk record: %w", err)
	}
	if _, err := w.dst.Seek(w.currentOffset, io.SeekStart); err != nil {
		return fmt.Errorf("seek back to append position: %w", err)
	}

	w.activeIndex++
	w.hasActive = false
	return nil
}

// Close finishes any chunk still in progress. It returns an error rather
// than panicking if fewer than chunkCount chunks were ultimately written,
// since a compiler producing fewer targets than declared is a caller bug
// that should surface as an error, not crash the worker.
func (w *Writer) Close() error {
	if w.hasActive {
		if err := w.FinishCurrentChunk(); err != nil {
			return err
		}
	}
	if w.activeIndex != w.chunkCount {
		return fmt.Errorf("chunkfile: wrote %d of %d declared chunks", w.activeIndex, w.chunkCount)
	}
	return nil
}
