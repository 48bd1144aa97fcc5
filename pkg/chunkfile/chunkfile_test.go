package chunkfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/marmos91/assetforge/pkg/storeerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFileRoundTrip(t *testing.T) {
	artifacts := []Artifact{
		{TypeID: TypeMulti, Version: 1, Name: "model", Data: []byte("model-bytes")},
		{TypeID: TypeMetrics, Version: 1, Name: "metrics", Data: []byte("metrics-bytes")},
	}

	var buf bytes.Buffer
	require.NoError(t, BuildFile(&buf, artifacts, "1.0.0", "2026-07-31", nil))

	header, records, err := LoadTable("test.chunk", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), header.ChunkCount)
	assert.Equal(t, "1.0.0", header.BuildVersionString())
	assert.Equal(t, "2026-07-31", header.BuildDateString())
	require.Len(t, records, 2)

	rec, err := FindChunk("test.chunk", records, TypeMulti, 1)
	require.NoError(t, err)
	assert.Equal(t, "model", rec.NameString())

	payload, err := ReadChunk(bytes.NewReader(buf.Bytes()), rec)
	require.NoError(t, err)
	assert.Equal(t, "model-bytes", string(payload))
}

func TestBuildFilePredicateFilters(t *testing.T) {
	artifacts := []Artifact{
		{TypeID: TypeMulti, Version: 1, Name: "model", Data: []byte("a")},
		{TypeID: TypeLog, Version: 1, Name: "log", Data: []byte("bb")},
	}

	var buf bytes.Buffer
	require.NoError(t, BuildFile(&buf, artifacts, "v", "d", func(a Artifact) bool {
		return a.TypeID == TypeMulti
	}))

	header, records, err := LoadTable("f", bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), header.ChunkCount)
	assert.Equal(t, "model", records[0].NameString())
}

func TestFindChunkMissing(t *testing.T) {
	_, records, err := roundTripSingle(t)
	require.NoError(t, err)

	_, err = FindChunk("f.chunk", records, 0xDEAD, 1)
	require.Error(t, err)

	var serr *storeerr.Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, storeerr.MissingChunk, serr.Kind)
}

func TestFindChunkVersionMismatch(t *testing.T) {
	_, records, err := roundTripSingle(t)
	require.NoError(t, err)

	_, err = FindChunk("f.chunk", records, TypeMulti, 99)
	require.Error(t, err)

	var serr *storeerr.Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, storeerr.UnsupportedVersion, serr.Kind)
}

func roundTripSingle(t *testing.T) (Header, []ChunkRecord, error) {
	t.Helper()
	var buf bytes.Buffer
	err := BuildFile(&buf, []Artifact{
		{TypeID: TypeMulti, Version: 1, Name: "model", Data: []byte("x")},
	}, "v", "d", nil)
	require.NoError(t, err)
	return LoadTable("f.chunk", bytes.NewReader(buf.Bytes()))
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	buf := make([]byte, headerSize)
	_, err := ReadHeader("bad.chunk", bytes.NewReader(buf))
	require.Error(t, err)
	var serr *storeerr.Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, storeerr.FormatError, serr.Kind)
}

func TestWriterStreamsMultipleChunks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.chunk")

	f, err := os.Create(path)
	require.NoError(t, err)

	w, err := NewWriter(f, 2, "1.2.3", "2026-07-31")
	require.NoError(t, err)

	require.NoError(t, w.BeginChunk(TypeMulti, 1, "model"))
	_, err = w.Write([]byte("model-payload"))
	require.NoError(t, err)

	require.NoError(t, w.BeginChunk(TypeLog, 1, "log"))
	_, err = w.Write([]byte("log-payload-longer"))
	require.NoError(t, err)

	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	header, records, err := LoadTable(path, bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), header.ChunkCount)
	require.Len(t, records, 2)

	modelRec, err := FindChunk(path, records, TypeMulti, 1)
	require.NoError(t, err)
	payload, err := ReadChunk(bytes.NewReader(raw), modelRec)
	require.NoError(t, err)
	assert.Equal(t, "model-payload", string(payload))

	logRec, err := FindChunk(path, records, TypeLog, 1)
	require.NoError(t, err)
	payload, err = ReadChunk(bytes.NewReader(raw), logRec)
	require.NoError(t, err)
	assert.Equal(t, "log-payload-longer", string(payload))
}

func TestWriterCloseErrorsOnShortCount(t *testing.T) {
	var buf bytesBuffer
	w, err := NewWriter(&buf, 2, "v", "d")
	require.NoError(t, err)

	require.NoError(t, w.BeginChunk(TypeMulti, 1, "model"))
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	err = w.Close()
	require.Error(t, err)
}

// bytesBuffer adapts bytes.Buffer to the WriteSeeker interface for tests
// that don't need a real file.
type bytesBuffer struct {
	bytes.Buffer
	pos int64
}

func (b *bytesBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case 0:
		b.pos = offset
	case 1:
		b.pos += offset
	case 2:
		b.pos = int64(b.Len()) + offset
	}
	return b.pos, nil
}
