package adapters

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blakesmith/ar"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"rocm-installer/internal/types"
)

type tarEntry struct {
	name     string
	body     string
	mode     int64
	linkname string
}

func buildTar(t *testing.T, entries []tarEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, entry := range entries {
		header := &tar.Header{Name: entry.name, Mode: entry.mode, Size: int64(len(entry.body)), Typeflag: tar.TypeReg}
		if entry.linkname != "" {
			header.Typeflag = tar.TypeSymlink
			header.Linkname = entry.linkname
			header.Size = 0
		}
		if entry.mode == 0 {
			header.Mode = 0o644
		}
		require.NoError(t, tw.WriteHeader(header))
		if header.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(entry.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func compressWith(t *testing.T, ext string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch ext {
	case ".gz":
		w = gzip.NewWriter(&buf)
	case ".xz":
		w, err = xz.NewWriter(&buf)
	case ".zst":
		w, err = zstd.NewWriter(&buf)
	}
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func writeDeb(t *testing.T, path string, control []tarEntry, dataExt string, data []tarEntry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := ar.NewWriter(f)
	require.NoError(t, w.WriteGlobalHeader())
	members := []struct {
		name string
		body []byte
	}{
		{"debian-binary", []byte("2.0\n")},
		{"control.tar.gz", compressWith(t, ".gz", buildTar(t, control))},
		{"data.tar" + dataExt, compressWith(t, dataExt, buildTar(t, data))},
	}
	for _, member := range members {
		require.NoError(t, w.WriteHeader(&ar.Header{Name: member.name, Size: int64(len(member.body)), Mode: 0o644, ModTime: time.Unix(0, 0)}))
		_, err := w.Write(member.body)
		require.NoError(t, err)
	}
}

func sampleControl() []tarEntry {
	return []tarEntry{
		{name: "./control", body: "Package: amdrocm-core7.12\n" +
			"Version: 7.12.0.70200-1~24.04\n" +
			"Maintainer: ROCm Dev Support <rocm-dev.support@amd.com>\n" +
			"Pre-Depends: amdrocm-base\n" +
			"Depends: libc6 (>= 2.34), libnuma1 | numactl-libs, amdrocm-llvm7.12 (= 7.12.0.70200-1~24.04)\n" +
			"Description: ROCm core\n multi-line description\n"},
		{name: "./postinst", body: "#!/bin/sh\nldconfig /opt/rocm/lib\n", mode: 0o755},
		{name: "./prerm", body: "#!/bin/sh\nrm -f /opt/rocm/.cache\n", mode: 0o755},
		{name: "./md5sums", body: "abc  opt/rocm/bin/rocminfo\n"},
	}
}

func TestDebArchiveAdapterReadMetadata(t *testing.T) {
	for _, ext := range []string{".xz", ".zst", ".gz"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "amdrocm-core7.12_7.12.0.70200-1~24.04_amd64.deb")
			writeDeb(t, path, sampleControl(), ext, []tarEntry{{name: "./opt/rocm/bin/rocminfo", body: "elf"}})

			meta, err := NewDebArchiveAdapter().ReadMetadata(path)
			require.NoError(t, err)
			assert.Equal(t, "amdrocm-core7.12", meta.Name)
			assert.Equal(t, "7.12.0.70200", meta.Version)
			assert.Equal(t, "1~24.04", meta.Release)
			assert.Equal(t, types.PackageFormatDeb, meta.Format)

			want := []types.Requirement{
				{Text: "amdrocm-base"},
				{Text: "libc6 (>= 2.34)"},
				{Text: "libnuma1 | numactl-libs"},
				{Text: "amdrocm-llvm7.12 (= 7.12.0.70200-1~24.04)"},
			}
			if diff := cmp.Diff(want, meta.Requires); diff != "" {
				t.Fatalf("unexpected requirements (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(map[types.ScriptletStage]string{
				types.ScriptletPostinst: "#!/bin/sh\nldconfig /opt/rocm/lib\n",
				types.ScriptletPrerm:    "#!/bin/sh\nrm -f /opt/rocm/.cache\n",
			}, meta.Scriptlets); diff != "" {
				t.Fatalf("unexpected scriptlets (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDebArchiveAdapterExpandPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pkg.deb")
	writeDeb(t, path, sampleControl(), ".xz", []tarEntry{
		{name: "./opt/rocm/bin/rocminfo", body: "elf", mode: 0o755},
		{name: "./opt/rocm/lib/libhsa-runtime64.so.1.14", body: "so"},
		{name: "./opt/rocm/lib/libhsa-runtime64.so.1", linkname: "libhsa-runtime64.so.1.14"},
	})
	dest := filepath.Join(dir, "content")

	files, err := NewDebArchiveAdapter().ExpandPayload(path, dest)
	require.NoError(t, err)
	want := []string{
		"opt/rocm/bin/rocminfo",
		"opt/rocm/lib/libhsa-runtime64.so.1.14",
		"opt/rocm/lib/libhsa-runtime64.so.1",
	}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Fatalf("unexpected files (-want +got):\n%s", diff)
	}
	info, err := os.Stat(filepath.Join(dest, "opt/rocm/bin/rocminfo"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	link, err := os.Readlink(filepath.Join(dest, "opt/rocm/lib/libhsa-runtime64.so.1"))
	require.NoError(t, err)
	assert.Equal(t, "libhsa-runtime64.so.1.14", link)
}

func TestDebArchiveAdapterRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "evil.deb")
	writeDeb(t, path, sampleControl(), ".gz", []tarEntry{{name: "../../etc/passwd", body: "x"}})

	_, err := NewDebArchiveAdapter().ExpandPayload(path, filepath.Join(dir, "content"))
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "etc", "passwd"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestDebArchiveAdapterMissingFile(t *testing.T) {
	_, err := NewDebArchiveAdapter().ReadMetadata(filepath.Join(t.TempDir(), "missing.deb"))
	require.Error(t, err)
}

func TestRPMRequirements(t *testing.T) {
	names := []string{"libdrm", "amdrocm-core7.12", "libc.so.6()(64bit)", "rpmlib(CompressedFileNames)", "zlib"}
	flags := []int{
		1<<2 | 1<<3,
		1 << 3,
		rpmSenseFindRequires,
		1<<1 | 1<<3 | 1<<24,
		0,
	}
	versions := []string{"2.4.89", "7.12.0", "", "3.0.4-1", ""}

	want := []types.Requirement{
		{Text: "libdrm >= 2.4.89"},
		{Text: "amdrocm-core7.12 = 7.12.0"},
		{Text: "libc.so.6()(64bit)", Auto: true},
		{Text: "rpmlib(CompressedFileNames) <= 3.0.4-1"},
		{Text: "zlib"},
	}
	if diff := cmp.Diff(want, rpmRequirements(names, flags, versions)); diff != "" {
		t.Fatalf("unexpected requirements (-want +got):\n%s", diff)
	}
}

func TestParseControlFoldsContinuations(t *testing.T) {
	fields := parseControl([]byte("Package: foo\nDepends: a,\n b (>= 1)\nVersion: 1:2.0-3\n"))
	assert.Equal(t, "a,\nb (>= 1)", fields["Depends"])

	version, release := splitDebVersion(fields["Version"])
	assert.Equal(t, "1:2.0", version)
	assert.Equal(t, "3", release)
}
