package storecmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/assetforge/internal/bytesize"
)

func TestGroupKey(t *testing.T) {
	cases := []struct {
		path    string
		wantKey string
		wantOK  bool
	}{
		{"d0/hero/mesh.dae.manifest", "d0/hero/mesh.dae", true},
		{"d0/hero/mesh.dae.chunk", "d0/hero/mesh.dae", true},
		{"d0/hero/mesh.dae-skin.metrics", "d0/hero/mesh.dae", true},
		{"d0/hero/mesh.dae-skin.log", "d0/hero/mesh.dae", true},
		{"d0/.store", "", false},
		{"d0/.index/000001.sst", "", false},
	}
	for _, c := range cases {
		key, ok := groupKey(c.path)
		assert.Equal(t, c.wantOK, ok, c.path)
		if c.wantOK {
			assert.Equal(t, c.wantKey, key, c.path)
		}
	}
}

func TestEnforceCacheBudgetEvictsOldestFirst(t *testing.T) {
	branch := t.TempDir()

	write := func(name string, data []byte, age time.Duration) {
		path := filepath.Join(branch, name)
		require.NoError(t, os.WriteFile(path, data, 0o644))
		ts := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(path, ts, ts))
	}

	// Two cached requests, each a manifest + chunk bundle. "old" was
	// written an hour ago, "new" a second ago.
	write("old.manifest", []byte("manifest-old"), time.Hour)
	write("old.chunk", make([]byte, 100), time.Hour)
	write("new.manifest", []byte("manifest-new"), time.Second)
	write("new.chunk", make([]byte, 100), time.Second)

	// The .store marker file should never be touched.
	require.NoError(t, os.WriteFile(filepath.Join(branch, ".store"), []byte("v1"), 0o644))

	// Budget smaller than the total (well over 200 bytes) but large enough
	// that evicting just the older entry satisfies it.
	budget := bytesize.ByteSize(150)

	require.NoError(t, enforceCacheBudget(branch, budget, false))

	_, err := os.Stat(filepath.Join(branch, "old.manifest"))
	assert.True(t, os.IsNotExist(err), "old entry should have been evicted")
	_, err = os.Stat(filepath.Join(branch, "old.chunk"))
	assert.True(t, os.IsNotExist(err), "old entry should have been evicted")

	_, err = os.Stat(filepath.Join(branch, "new.manifest"))
	assert.NoError(t, err, "new entry should survive")
	_, err = os.Stat(filepath.Join(branch, "new.chunk"))
	assert.NoError(t, err, "new entry should survive")

	_, err = os.Stat(filepath.Join(branch, ".store"))
	assert.NoError(t, err, "marker file is never grouped or evicted")
}

func TestEnforceCacheBudgetDryRunChangesNothing(t *testing.T) {
	branch := t.TempDir()
	path := filepath.Join(branch, "req.manifest")
	require.NoError(t, os.WriteFile(path, make([]byte, 1000), 0o644))

	require.NoError(t, enforceCacheBudget(branch, bytesize.ByteSize(1), true))

	_, err := os.Stat(path)
	assert.NoError(t, err, "dry run must not remove anything")
}

func TestEnforceCacheBudgetNoopUnderBudget(t *testing.T) {
	branch := t.TempDir()
	path := filepath.Join(branch, "req.manifest")
	require.NoError(t, os.WriteFile(path, make([]byte, 10), 0o644))

	require.NoError(t, enforceCacheBudget(branch, bytesize.ByteSize(1000), false))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}
