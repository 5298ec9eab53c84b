package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadScanAdapter_FindArchives(t *testing.T) {
	root := t.TempDir()
	for _, rel := range []string{
		"rocm/amdrocm-core7.12-7.12.0-1.x86_64.rpm",
		"rocm/amdrocm-core7.12-gfx942-7.12.0-1.x86_64.rpm",
		"amdgpu/amdgpu-dkms_6.12.1_all.deb",
		"rocm/README.md",
		".cache/stale.rpm",
		"component-rocm/base/foo/content/nested.rpm",
	} {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	paths, err := NewPayloadScanAdapter().FindArchives(root)
	require.NoError(t, err)
	want := []string{
		filepath.Join(root, "amdgpu/amdgpu-dkms_6.12.1_all.deb"),
		filepath.Join(root, "rocm/amdrocm-core7.12-7.12.0-1.x86_64.rpm"),
		filepath.Join(root, "rocm/amdrocm-core7.12-gfx942-7.12.0-1.x86_64.rpm"),
	}
	assert.Equal(t, want, paths)
}

func TestPayloadScanAdapter_EmptyRootErrors(t *testing.T) {
	_, err := NewPayloadScanAdapter().FindArchives("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "packages directory is empty")
}

func TestPayloadScanAdapter_NonExistentRootErrors(t *testing.T) {
	_, err := NewPayloadScanAdapter().FindArchives("/nonexistent/path/that/does/not/exist")
	require.Error(t, err)
}

func TestPayloadScanAdapter_EmptyDirReturnsNil(t *testing.T) {
	paths, err := NewPayloadScanAdapter().FindArchives(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, paths)
}
