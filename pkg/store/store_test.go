package store

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/assetforge/pkg/chunkfile"
	"github.com/marmos91/assetforge/pkg/depval"
)

func TestOpenAllocatesFreshBranch(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, "engine-1.0.0")
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, filepath.Join(root, "d0"), s.BranchDir())
	_, err = os.Stat(filepath.Join(s.BranchDir(), markerFileName))
	require.NoError(t, err)
}

func TestOpenReusesMatchingBranch(t *testing.T) {
	root := t.TempDir()
	s1, err := Open(root, "engine-1.0.0")
	require.NoError(t, err)
	s1.Close()

	s2, err := Open(root, "engine-1.0.0")
	require.NoError(t, err)
	defer s2.Close()
	assert.Equal(t, s1.BranchDir(), s2.BranchDir())
}

func TestOpenAllocatesNewBranchForDifferentVersion(t *testing.T) {
	root := t.TempDir()
	s1, err := Open(root, "engine-1.0.0")
	require.NoError(t, err)
	s1.Close()

	s2, err := Open(root, "engine-2.0.0")
	require.NoError(t, err)
	defer s2.Close()
	assert.NotEqual(t, s1.BranchDir(), s2.BranchDir())
}

func TestStoreAndRetrieveRoundTrip(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, "engine-1.0.0")
	require.NoError(t, err)
	defer s.Close()

	depDir := t.TempDir()
	depPath := filepath.Join(depDir, "mesh.dae")
	require.NoError(t, os.WriteFile(depPath, []byte("source"), 0o644))
	depState := depval.GetDependentFileState(depPath)

	products := []Product{
		{TypeID: chunkfile.TypeMulti, Version: 1, Name: "model", Data: []byte("compiled-bytes")},
	}
	require.NoError(t, s.StoreCompileProducts("hero/mesh.dae", products, false, []depval.FileState{depState}, "1.0", "2026-07-31"))

	result, ok, err := s.RetrieveCompileProducts("hero/mesh.dae")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(0), result.Validation.ValidationIndex())
	require.Len(t, result.Products, 1)

	raw, err := os.ReadFile(bundlePath(result.BasePath))
	require.NoError(t, err)
	header, records, err := chunkfile.LoadTable(bundlePath(result.BasePath), bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), header.ChunkCount)
	require.Len(t, records, 1)

	s.Release(result.Hash)
}

func TestRetrieveReturnsNotOkWhenDependencyChanged(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, "engine-1.0.0")
	require.NoError(t, err)
	defer s.Close()

	depDir := t.TempDir()
	depPath := filepath.Join(depDir, "mesh.dae")
	require.NoError(t, os.WriteFile(depPath, []byte("v1"), 0o644))
	depState := depval.GetDependentFileState(depPath)

	products := []Product{{TypeID: chunkfile.TypeMulti, Version: 1, Name: "model", Data: []byte("x")}}
	require.NoError(t, s.StoreCompileProducts("hero/mesh.dae", products, false, []depval.FileState{depState}, "1.0", "d"))

	require.NoError(t, os.WriteFile(depPath, []byte("v2, much longer now"), 0o644))

	_, ok, err := s.RetrieveCompileProducts("hero/mesh.dae")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRetrieveReturnsNotOkWhenManifestMissing(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, "engine-1.0.0")
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.RetrieveCompileProducts("never/compiled.dae")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreMarksInvalidAssetButRetrieveAllowsRecompile(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, "engine-1.0.0")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.StoreCompileProducts("broken/asset.dae", nil, true, nil, "1.0", "d"))

	// A prior compiler failure shows up in the informational sidecar list...
	invalid := s.InvalidAssets()
	require.Len(t, invalid, 1)
	assert.Equal(t, "broken/asset.dae", invalid[0].RequestName)

	// ...but never permanently gates the request: RetrieveCompileProducts
	// reports "no usable cache", not an error, so a caller whose compiler
	// now succeeds (e.g. the source file was fixed) can recompile freely.
	_, ok, err := s.RetrieveCompileProducts("broken/asset.dae")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMakeIntermediateNameSanitizesRequest(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, "v1")
	require.NoError(t, err)
	defer s.Close()

	got := s.MakeIntermediateName("model.dae:sub*section")
	assert.Equal(t, filepath.Join(s.BranchDir(), "model.dae-sub-section"), got)
}
