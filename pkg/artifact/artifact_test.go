package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/assetforge/pkg/chunkfile"
)

func buildBundle(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "model.chunk")

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	artifacts := []chunkfile.Artifact{
		{TypeID: chunkfile.TypeMulti, Version: 1, Name: "model", Data: []byte("model-bytes")},
	}
	require.NoError(t, chunkfile.BuildFile(f, artifacts, "1.0", "2026-07-31", nil))
	return path
}

func TestOpenValidatesChunkTable(t *testing.T) {
	path := buildBundle(t)
	col, err := Open(path, nil)
	require.NoError(t, err)
	defer col.Close()
}

func TestOpenRejectsMissingFile(t *testing.T) {
	_, err := Open("/nonexistent/path/model.chunk", nil)
	require.Error(t, err)
}

func TestResolveRequestsReadsRawPayload(t *testing.T) {
	path := buildBundle(t)
	col, err := Open(path, nil)
	require.NoError(t, err)
	defer col.Close()

	resolved, err := col.ResolveRequests([]Request{
		{Name: "model", Type: chunkfile.TypeMulti, ExpectedVersion: 1, LoadMode: Raw},
	}, nil)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "model-bytes", string(resolved[0].Data))
}

func TestResolveRequestsDontLoadOmitsData(t *testing.T) {
	path := buildBundle(t)
	col, err := Open(path, nil)
	require.NoError(t, err)
	defer col.Close()

	resolved, err := col.ResolveRequests([]Request{
		{Name: "model", Type: chunkfile.TypeMulti, ExpectedVersion: 1, LoadMode: DontLoad},
	}, nil)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Nil(t, resolved[0].Data)
	assert.Equal(t, uint32(len("model-bytes")), resolved[0].Size)
}

func TestResolveRequestsBlockSerializerAppliesFixup(t *testing.T) {
	path := buildBundle(t)
	col, err := Open(path, nil)
	require.NoError(t, err)
	defer col.Close()

	fixupCalled := false
	fixup := func(buf []byte) error {
		fixupCalled = true
		for i := range buf {
			buf[i] = 'x'
		}
		return nil
	}

	resolved, err := col.ResolveRequests([]Request{
		{Name: "model", Type: chunkfile.TypeMulti, ExpectedVersion: 1, LoadMode: BlockSerializer},
	}, fixup)
	require.NoError(t, err)
	assert.True(t, fixupCalled)
	assert.Equal(t, "xxxxxxxxxxx", string(resolved[0].Data))
}

func TestResolveRequestsMissingChunkErrors(t *testing.T) {
	path := buildBundle(t)
	col, err := Open(path, nil)
	require.NoError(t, err)
	defer col.Close()

	_, err = col.ResolveRequests([]Request{
		{Name: "missing", Type: 0xDEAD, ExpectedVersion: 1, LoadMode: Raw},
	}, nil)
	require.Error(t, err)
}

func TestCloseReleasesExactlyOnce(t *testing.T) {
	path := buildBundle(t)
	releases := 0
	col, err := Open(path, func() { releases++ })
	require.NoError(t, err)

	require.NoError(t, col.Close())
	require.NoError(t, col.Close())
	assert.Equal(t, 1, releases)
}

func TestNewRawWrapsBufferWithoutChunkTable(t *testing.T) {
	col := NewRaw([]byte("diagnostic text"), nil)
	resolved, err := col.ResolveRequests([]Request{{Name: "diagnostic"}}, nil)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "diagnostic text", string(resolved[0].Data))
}

func TestOpenRawReadsFileEagerly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "asset.metrics")
	require.NoError(t, os.WriteFile(path, []byte("metrics-payload"), 0o644))

	col, err := OpenRaw(path, nil)
	require.NoError(t, err)
	defer col.Close()

	resolved, err := col.ResolveRequests([]Request{{Name: "metrics"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "metrics-payload", string(resolved[0].Data))
}

func TestOpenRawRejectsMissingFile(t *testing.T) {
	_, err := OpenRaw("/nonexistent/asset.metrics", nil)
	require.Error(t, err)
}
