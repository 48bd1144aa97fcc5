// Package chunkfile implements the binary chunk-container format used for
// every artifact this pipeline produces: a small fixed header, a table of
// fixed-size chunk records, and the concatenated chunk payloads.
//
// On disk (little-endian):
//
//	Header:   u32 magic = 0x7E454C58 ("XLE~")
//	          u32 file-version = 0
//	          u8  build-version[64]  (null-padded ASCII)
//	          u8  build-date[64]     (null-padded ASCII)
//	          u32 chunk-count
//	Table:    chunk-count × {
//	              u64 type-id
//	              u32 chunk-version
//	              u8  name[32]        (null-padded ASCII)
//	              u32 file-offset     (absolute, from start of file)
//	              u32 size            (payload length)
//	          }
//	Payloads: chunk-count × raw bytes, concatenated, in table order
//
// Readers use LoadTable/FindChunk/ReadChunk; writers use NewWriter and its
// BeginChunk/FinishCurrentChunk pair, which stream payloads directly to the
// destination without buffering a whole artifact in memory.
package chunkfile

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/marmos91/assetforge/pkg/storeerr"
)

// Magic is the four-byte file signature "XLE~" read as a little-endian u32.
const Magic uint32 = 0x7E454C58

// FileVersion is the only chunk-file format version this codec understands.
const FileVersion uint32 = 0

// Reserved chunk type identifiers used by the core itself.
const (
	TypeUnknown uint64 = 0
	TypeMulti   uint64 = 1 // the main artifact bundle produced by a compile
	TypeMetrics uint64 = 2 // per-request side metrics file
	TypeLog     uint64 = 3 // per-request side log file
)

const (
	nameFieldLen    = 32
	versionFieldLen = 64
)

// Header is the fixed 8+64+64+4-byte prologue of a chunk file.
type Header struct {
	Magic        uint32
	FileVersion  uint32
	BuildVersion [versionFieldLen]byte
	BuildDate    [versionFieldLen]byte
	ChunkCount   uint32
}

// headerSize is the on-disk size of Header: 4+4+64+64+4.
const headerSize = 4 + 4 + versionFieldLen + versionFieldLen + 4

// recordSize is the on-disk size of a ChunkRecord: 8+4+32+4+4.
const recordSize = 8 + 4 + nameFieldLen + 4 + 4

// ChunkRecord is one entry in the chunk table: the type, version, name, and
// location of a single chunk's payload.
type ChunkRecord struct {
	TypeID       uint64
	ChunkVersion uint32
	Name         [nameFieldLen]byte
	FileOffset   uint32
	Size         uint32
}

// NameString returns Name with its null padding trimmed.
func (r ChunkRecord) NameString() string {
	return trimZero(r.Name[:])
}

func trimZero(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func padName(name string) [nameFieldLen]byte {
	var out [nameFieldLen]byte
	copy(out[:], name)
	return out
}

func padVersionField(s string) [versionFieldLen]byte {
	var out [versionFieldLen]byte
	copy(out[:], s)
	return out
}

// BuildVersionString returns the header's build version with null padding
// trimmed.
func (h Header) BuildVersionString() string {
	return trimZero(h.BuildVersion[:])
}

// BuildDateString returns the header's build date with null padding
// trimmed.
func (h Header) BuildDateString() string {
	return trimZero(h.BuildDate[:])
}

// MakeHeader builds a Header stamped with the given build version/date
// strings, truncated to fit the fixed-size fields.
func MakeHeader(chunkCount uint32, buildVersion, buildDate string) Header {
	return Header{
		Magic:        Magic,
		FileVersion:  FileVersion,
		BuildVersion: padVersionField(buildVersion),
		BuildDate:    padVersionField(buildDate),
		ChunkCount:   chunkCount,
	}
}

// ReadHeader reads and validates the chunk-file header from r. It does not
// read the chunk table.
func ReadHeader(path string, r io.Reader) (Header, error) {
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h.Magic); err != nil {
		return h, storeerr.Wrap(storeerr.FormatError, "incomplete chunk file header", path, err)
	}
	if h.Magic != Magic {
		return h, storeerr.New(storeerr.FormatError, "unrecognised chunk file format", path)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.FileVersion); err != nil {
		return h, storeerr.Wrap(storeerr.FormatError, "incomplete chunk file header", path, err)
	}
	if h.FileVersion != FileVersion {
		return h, storeerr.NewUnsupportedVersion(path, h.FileVersion, FileVersion)
	}
	if _, err := io.ReadFull(r, h.BuildVersion[:]); err != nil {
		return h, storeerr.Wrap(storeerr.FormatError, "incomplete chunk file header", path, err)
	}
	if _, err := io.ReadFull(r, h.BuildDate[:]); err != nil {
		return h, storeerr.Wrap(storeerr.FormatError, "incomplete chunk file header", path, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.ChunkCount); err != nil {
		return h, storeerr.Wrap(storeerr.FormatError, "incomplete chunk file header", path, err)
	}
	return h, nil
}

// LoadTable reads the header and the full chunk table from r, in that
// order. The returned records are in on-disk order.
func LoadTable(path string, r io.Reader) (Header, []ChunkRecord, error) {
	header, err := ReadHeader(path, r)
	if err != nil {
		return header, nil, err
	}

	records := make([]ChunkRecord, header.ChunkCount)
	for i := range records {
		rec, err := readRecord(r)
		if err != nil {
			return header, nil, storeerr.Wrap(storeerr.FormatError, "incomplete chunk table", path, err)
		}
		records[i] = rec
	}
	return header, records, nil
}

func readRecord(r io.Reader) (ChunkRecord, error) {
	var rec ChunkRecord
	if err := binary.Read(r, binary.LittleEndian, &rec.TypeID); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &rec.ChunkVersion); err != nil {
		return rec, err
	}
	if _, err := io.ReadFull(r, rec.Name[:]); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &rec.FileOffset); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &rec.Size); err != nil {
		return rec, err
	}
	return rec, nil
}

func writeRecord(w io.Writer, rec ChunkRecord) error {
	if err := binary.Write(w, binary.LittleEndian, rec.TypeID); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, rec.ChunkVersion); err != nil {
		return err
	}
	if _, err := w.Write(rec.Name[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, rec.FileOffset); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, rec.Size); err != nil {
		return err
	}
	return nil
}

func writeHeader(w io.Writer, h Header) error {
	if err := binary.Write(w, binary.LittleEndian, h.Magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h.FileVersion); err != nil {
		return err
	}
	if _, err := w.Write(h.BuildVersion[:]); err != nil {
		return err
	}
	if _, err := w.Write(h.BuildDate[:]); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, h.ChunkCount)
}

// FindChunk locates the first record of the given type in hdrs and
// validates its version against expectedVersion. Mirrors the original
// engine's FindChunk: a chunk present with file-offset 0 is treated as not
// found, since offset 0 always falls inside the header/table region.
func FindChunk(path string, hdrs []ChunkRecord, chunkType uint64, expectedVersion uint32) (ChunkRecord, error) {
	var found ChunkRecord
	ok := false
	for _, h := range hdrs {
		if h.TypeID == chunkType {
			found = h
			ok = true
			break
		}
	}
	if !ok || found.FileOffset == 0 {
		return ChunkRecord{}, storeerr.NewMissingChunk(path, chunkType)
	}
	if found.ChunkVersion != expectedVersion {
		return ChunkRecord{}, storeerr.NewUnsupportedVersion(path, found.ChunkVersion, expectedVersion)
	}
	return found, nil
}

// ReadChunk seeks rs to the record's file offset and reads exactly its
// payload.
func ReadChunk(rs io.ReadSeeker, rec ChunkRecord) ([]byte, error) {
	if _, err := rs.Seek(int64(rec.FileOffset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to chunk payload: %w", err)
	}
	buf := make([]byte, rec.Size)
	if _, err := io.ReadFull(rs, buf); err != nil {
		return nil, fmt.Errorf("read chunk payload: %w", err)
	}
	return buf, nil
}

// Artifact is one named, typed, versioned payload to pack into a chunk
// file. It is the unit a compiler produces and BuildFile/Writer consumes.
type Artifact struct {
	TypeID  uint64
	Version uint32
	Name    string
	Data    []byte
}

// BuildFile writes a complete chunk file to w in one pass: header, table,
// then payloads, all for artifacts matching predicate (or all artifacts if
// predicate is nil). Used when every chunk's bytes are already in memory;
// see Writer for streaming production of large individual chunks.
func BuildFile(w io.Writer, artifacts []Artifact, buildVersion, buildDate string, predicate func(Artifact) bool) error {
	var selected []Artifact
	for _, a := range artifacts {
		if predicate == nil || predicate(a) {
			selected = append(selected, a)
		}
	}

	header := MakeHeader(uint32(len(selected)), buildVersion, buildDate)
	if err := writeHeader(w, header); err != nil {
		return fmt.Errorf("write chunk file header: %w", err)
	}

	offset := uint32(headerSize + recordSize*len(selected))
	for _, a := range selected {
		rec := ChunkRecord{
			TypeID:       a.TypeID,
			ChunkVersion: a.Version,
			Name:         padName(a.Name),
			FileOffset:   offset,
			Size:         uint32(len(a.Data)),
		}
		if err := writeRecord(w, rec); err != nil {
			return fmt.Errorf("write chunk record: %w", err)
		}
		offset += rec.Size
	}

	for _, a := range selected {
		if _, err := w.Write(a.Data); err != nil {
			return fmt.Errorf("write chunk payload %q: %w", a.Name, err)
		}
	}
	return nil
}
