package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"rocm-installer/internal/adapters"
	"rocm-installer/internal/ports"
	"rocm-installer/internal/types"
)

type stubPackage struct {
	meta  types.ArchiveMetadata
	files map[string]string
}

// stubArchive serves archive metadata and payloads keyed by basename.
type stubArchive map[string]stubPackage

func (a stubArchive) ReadMetadata(path string) (types.ArchiveMetadata, error) {
	pkg, ok := a[filepath.Base(path)]
	if !ok {
		return types.ArchiveMetadata{}, errors.New("corrupt archive")
	}
	return pkg.meta, nil
}

func (a stubArchive) ExpandPayload(path string, dest string) ([]string, error) {
	pkg, ok := a[filepath.Base(path)]
	if !ok {
		return nil, errors.New("corrupt archive")
	}
	var files []string
	for rel, body := range pkg.files {
		target := filepath.Join(dest, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(target, []byte(body), 0o644); err != nil {
			return nil, err
		}
		files = append(files, rel)
	}
	sort.Strings(files)
	return files, nil
}

type scriptCall struct {
	Body string
	Args []string
}

type recordingScripts struct {
	calls []scriptCall
}

func (r *recordingScripts) Run(_ context.Context, body string, args []string) error {
	r.calls = append(r.calls, scriptCall{Body: body, Args: args})
	return nil
}

type fakeHost struct {
	family types.DistroFamily
	runs   [][]string
}

func (h *fakeHost) LookPath(string) error { return nil }

func (h *fakeHost) DetectDistro() (types.DistroFamily, error) { return h.family, nil }

func (h *fakeHost) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	h.runs = append(h.runs, append([]string{name}, args...))
	return nil, nil
}

func (h *fakeHost) InvokingUser() string { return "alice" }

type fakeDriver struct {
	version string
}

func (d fakeDriver) InstalledDriverVersion(context.Context) (string, error) {
	return d.version, nil
}

type fixedConfirm struct {
	answer bool
	asked  *[]string
}

func (c fixedConfirm) Confirm(prompt string) (bool, error) {
	if c.asked != nil {
		*c.asked = append(*c.asked, prompt)
	}
	return c.answer, nil
}

// recordingContent stands in for the content copier on system-root
// installs.
type recordingContent struct {
	copies  []string
	removed []string
	written map[string]string
}

func (c *recordingContent) CopyTree(_ context.Context, src string, dest string) (int, error) {
	c.copies = append(c.copies, filepath.Base(filepath.Dir(src))+"->"+dest)
	return 1, nil
}

func (c *recordingContent) RemoveFiles(_ string, relPaths []string) (int, int, error) {
	c.removed = append(c.removed, relPaths...)
	return len(relPaths), 0, nil
}

func (c *recordingContent) WriteFile(path string, data []byte) error {
	if c.written == nil {
		c.written = map[string]string{}
	}
	c.written[path] = string(data)
	return nil
}

const rocmVersionFile = "1.4.0\n7.12.0\nrel-41\n"

func rocmArchives() stubArchive {
	return stubArchive{
		"amdrocm-core7.12_7.12.0-1_amd64.deb": {meta: types.ArchiveMetadata{
			Name: "amdrocm-core7.12", Version: "7.12.0", Release: "1",
			Requires:   []types.Requirement{{Text: "amdrocm-runtime"}, {Text: "libnuma1"}},
			Scriptlets: map[types.ScriptletStage]string{types.ScriptletPrerm: "echo removing"},
		}},
		"amdrocm-runtime_7.12.0-1_amd64.deb": {
			meta: types.ArchiveMetadata{
				Name: "amdrocm-runtime", Version: "7.12.0", Release: "1",
				Requires:   []types.Requirement{{Text: "libdrm2 >= 2.4.120"}},
				Scriptlets: map[types.ScriptletStage]string{types.ScriptletPostinst: "ldconfig -n /opt/rocm-7.12.0/lib"},
			},
			files: map[string]string{
				"opt/rocm-7.12.0/lib/libamdhip64.so.7": "hip",
				"opt/rocm-7.12.0/.info/version":        "7.12.0",
			},
		},
		"amdrocm-core7.12-gfx942_7.12.0-1_amd64.deb": {meta: types.ArchiveMetadata{
			Name: "amdrocm-core7.12-gfx942", Version: "7.12.0", Release: "1",
			Requires: []types.Requirement{{Text: "amdrocm-core7.12"}, {Text: "amdrocm-blas-gfx942"}},
		}},
		"amdrocm-blas-gfx942_7.12.0-1_amd64.deb": {
			meta: types.ArchiveMetadata{
				Name: "amdrocm-blas-gfx942", Version: "7.12.0", Release: "1",
				Requires: []types.Requirement{{Text: "amdrocm-runtime"}},
			},
			files: map[string]string{"opt/rocm-7.12.0/lib/gfx942/libblas.so": "blas"},
		},
	}
}

const satisfiableIndex = `family: debian
available:
  libdrm2: 2.4.122-1
  libnuma1: 2.0.18-1
installed:
  libnuma1: 2.0.18-1
`

type fixture struct {
	service Service
	payload string
	archive string
	index   *adapters.PackageIndexFileAdapter
	scripts *recordingScripts
	host    *fakeHost
	prompts []string
}

// newFixture lays out a payload directory with a VERSION file and a
// directory of archive placeholders served by a stub archive reader.
func newFixture(t *testing.T, archives stubArchive, index string) *fixture {
	t.Helper()
	base := t.TempDir()
	f := &fixture{
		payload: filepath.Join(base, "payload"),
		archive: filepath.Join(base, "packages"),
		scripts: &recordingScripts{},
		host:    &fakeHost{family: types.DistroFamilyDebian},
	}
	require.NoError(t, os.MkdirAll(f.payload, 0o755))
	require.NoError(t, os.MkdirAll(f.archive, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.payload, VersionFileName), []byte(rocmVersionFile), 0o644))
	for name := range archives {
		require.NoError(t, os.WriteFile(filepath.Join(f.archive, name), nil, 0o644))
	}
	indexPath := filepath.Join(base, "index.yaml")
	require.NoError(t, os.WriteFile(indexPath, []byte(index), 0o644))
	f.index = adapters.NewPackageIndexFileAdapter(indexPath)

	service := NewService(Options{})
	service.Archives = map[types.PackageFormat]ports.ArchivePort{
		types.PackageFormatDeb: archives,
		types.PackageFormatRPM: archives,
	}
	service.Scripts = f.scripts
	service.Host = f.host
	service.Driver = fakeDriver{}
	service.Confirm = fixedConfirm{asked: &f.prompts}
	service.PackageManager = func(string) (ports.PackageManagerPort, types.DistroFamily, error) {
		return f.index, types.DistroFamilyDebian, nil
	}
	f.service = service
	return f
}

func (f *fixture) extractAndResolve(t *testing.T) {
	t.Helper()
	_, err := f.service.Extract(t.Context(), ExtractRequest{
		PackagesDir: f.archive,
		OutputDir:   filepath.Join(f.payload, RocmComponentDir),
	})
	require.NoError(t, err)
	_, err = f.service.Resolve(t.Context(), ResolveRequest{ExtractDir: filepath.Join(f.payload, RocmComponentDir)})
	require.NoError(t, err)
}
