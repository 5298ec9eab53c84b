package app

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rocm-installer/internal/types"
)

func TestInstallThenUninstallRocm(t *testing.T) {
	f := newFixture(t, rocmArchives(), satisfiableIndex)
	f.extractAndResolve(t)
	target := t.TempDir()

	result, err := f.service.InstallRocm(t.Context(), InstallRocmRequest{
		PayloadDir: f.payload,
		Target:     target,
		Gfx:        "gfx942",
		Components: []string{"core"},
		DepsMode:   types.DepsModeInstall,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Deps)
	assert.Equal(t, []string{"libdrm2"}, result.Deps.Installed)

	report := result.Report
	wantPhases := []types.InstallPhase{
		types.PhaseIdle,
		types.PhasePreinstallCheck,
		types.PhaseComponentResolved,
		types.PhaseContentCopied,
		types.PhaseScriptletsRun,
		types.PhasePostInstallDone,
	}
	if diff := cmp.Diff(wantPhases, report.Phases); diff != "" {
		t.Fatalf("unexpected phases (-want +got):\n%s", diff)
	}
	wantPackages := []string{"amdrocm-core7.12", "amdrocm-runtime", "amdrocm-blas-gfx942", "amdrocm-core7.12-gfx942"}
	if diff := cmp.Diff(wantPackages, report.Packages); diff != "" {
		t.Fatalf("unexpected packages (-want +got):\n%s", diff)
	}
	assert.Equal(t, "gfx942", report.Target.Arch)
	assert.Equal(t, "rocm-7.12.0", report.Target.VersionDir)
	assert.FileExists(t, filepath.Join(target, "opt", "rocm-7.12.0", "lib", "libamdhip64.so.7"))
	assert.FileExists(t, filepath.Join(target, "opt", "rocm-7.12.0", "lib", "gfx942", "libblas.so"))

	wantCalls := []scriptCall{{
		Body: "ldconfig -n " + filepath.Join(target, "opt") + "/rocm-7.12.0/lib\n",
		Args: []string{"configure"},
	}}
	if diff := cmp.Diff(wantCalls, f.scripts.calls); diff != "" {
		t.Fatalf("unexpected scriptlet calls (-want +got):\n%s", diff)
	}

	// Installing the same version again asks first; declining aborts.
	_, err = f.service.InstallRocm(t.Context(), InstallRocmRequest{
		PayloadDir: f.payload,
		Target:     target,
		Gfx:        "gfx942",
		Components: []string{"core"},
	})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeAlreadyExists, errbuilder.CodeOf(err))
	assert.Len(t, f.prompts, 1)

	f.scripts.calls = nil
	removed, err := f.service.UninstallRocm(t.Context(), UninstallRocmRequest{PayloadDir: f.payload, Target: target})
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"amdrocm-core7.12", "amdrocm-runtime", "amdrocm-blas-gfx942"}, removed.Packages); diff != "" {
		t.Fatalf("unexpected removed packages (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, removed.RemovedFiles)
	assert.Equal(t, 4, removed.PrunedDirs)
	assert.NoDirExists(t, filepath.Join(target, "opt", "rocm-7.12.0"))
	assert.DirExists(t, target)
	if diff := cmp.Diff([]scriptCall{{Body: "echo removing\n", Args: []string{"remove"}}}, f.scripts.calls); diff != "" {
		t.Fatalf("unexpected removal scriptlets (-want +got):\n%s", diff)
	}

	again, err := f.service.UninstallRocm(t.Context(), UninstallRocmRequest{PayloadDir: f.payload, Target: target})
	require.NoError(t, err)
	assert.Empty(t, again.Packages)
	assert.Len(t, again.Warnings, 1)
}

func TestInstallRocmDepsOnlyModesSkipInstall(t *testing.T) {
	for _, mode := range []types.DepsMode{types.DepsModeList, types.DepsModeValidate, types.DepsModeInstallOnly} {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t, rocmArchives(), satisfiableIndex)
			f.extractAndResolve(t)
			target := t.TempDir()

			result, err := f.service.InstallRocm(t.Context(), InstallRocmRequest{
				PayloadDir: f.payload,
				Target:     target,
				Gfx:        "gfx942",
				Components: []string{"core"},
				DepsMode:   mode,
			})
			require.NoError(t, err)
			assert.True(t, result.Report.Skipped)
			assert.Equal(t, "deps="+string(mode), result.Report.SkipReason)
			entries, err := os.ReadDir(target)
			require.NoError(t, err)
			assert.Empty(t, entries)
			if mode == types.DepsModeInstallOnly {
				assert.Equal(t, [][]string{{"libdrm2"}}, f.index.Requested)
			} else {
				assert.Empty(t, f.index.Requested)
			}
		})
	}
}

func TestInstallRocmUnsatisfiableDepsLeaveTargetUntouched(t *testing.T) {
	f := newFixture(t, rocmArchives(), "family: debian\navailable: {}\n")
	f.extractAndResolve(t)
	target := t.TempDir()

	result, err := f.service.InstallRocm(t.Context(), InstallRocmRequest{
		PayloadDir: f.payload,
		Target:     target,
		Gfx:        "gfx942",
		Components: []string{"core"},
		DepsMode:   types.DepsModeInstall,
	})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
	assert.Len(t, result.Deps.Report.Unsatisfied(), 2)
	entries, err := os.ReadDir(target)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Empty(t, f.index.Requested)
}

func TestInstallRocmRejectsUnknownComponent(t *testing.T) {
	f := newFixture(t, rocmArchives(), satisfiableIndex)
	f.extractAndResolve(t)

	_, err := f.service.InstallRocm(t.Context(), InstallRocmRequest{
		PayloadDir: f.payload,
		Target:     t.TempDir(),
		Gfx:        "gfx942",
		Components: []string{"core-sdk"},
	})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "available: core")
}

func amdgpuArchives() stubArchive {
	return stubArchive{
		"amdgpu-dkms_6.12.1-2110000.24.04_all.deb": {
			meta: types.ArchiveMetadata{
				Name: "amdgpu-dkms", Version: "6.12.1", Release: "2110000.24.04",
				Requires: []types.Requirement{{Text: "dkms >= 1.95"}},
				Scriptlets: map[types.ScriptletStage]string{
					types.ScriptletPostinst: "dkms install amdgpu/6.12.1",
					types.ScriptletPrerm:    "dkms remove amdgpu/6.12.1 --all",
				},
			},
			files: map[string]string{"usr/src/amdgpu-6.12.1/dkms.conf": "PACKAGE_NAME=amdgpu"},
		},
		"amdgpu-dkms-firmware_6.12.1-2110000.24.04_all.deb": {
			meta:  types.ArchiveMetadata{Name: "amdgpu-dkms-firmware", Version: "6.12.1", Release: "2110000.24.04"},
			files: map[string]string{"lib/firmware/updates/amdgpu/gc_9_4_3_mec.bin": "fw"},
		},
	}
}

func TestInstallAndUninstallAmdgpu(t *testing.T) {
	f := newFixture(t, amdgpuArchives(), satisfiableIndex)
	require.NoError(t, os.WriteFile(filepath.Join(f.payload, VersionFileName), []byte("1.4.0\n7.12.0\nrel-41\n\n\n6.12.1\n"), 0o644))
	_, err := f.service.Extract(t.Context(), ExtractRequest{
		PackagesDir: f.archive,
		OutputDir:   filepath.Join(f.payload, AmdgpuComponentDir),
	})
	require.NoError(t, err)

	content := &recordingContent{}
	system := fstest.MapFS{
		"usr/src/amdgpu-6.10.5/dkms.conf":              {Data: []byte("PACKAGE_NAME=amdgpu")},
		"lib/firmware/updates/amdgpu/gc_9_4_3_mec.bin": {Data: []byte("fw")},
	}
	f.service.Content = content
	f.service.OpenFS = func(string) fs.FS { return system }
	f.service.Driver = fakeDriver{version: "6.10.5"}

	result, err := f.service.InstallAmdgpu(t.Context(), InstallAmdgpuRequest{
		PayloadDir: f.payload,
		GPUAccess:  types.GPUAccessUser,
		Start:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "/", result.Report.Target.Root)
	if diff := cmp.Diff([]string{"amdgpu-dkms-firmware->/", "amdgpu-dkms->/"}, content.copies); diff != "" {
		t.Fatalf("unexpected copies (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]scriptCall{{Body: "dkms install amdgpu/6.12.1\n", Args: []string{"configure"}}}, f.scripts.calls); diff != "" {
		t.Fatalf("unexpected scriptlet calls (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]string{
		{"usermod", "-a", "-G", "render,video", "alice"},
		{"modprobe", "amdgpu"},
	}, f.host.runs); diff != "" {
		t.Fatalf("unexpected host commands (-want +got):\n%s", diff)
	}

	_, err = f.service.UninstallAmdgpu(t.Context(), UninstallAmdgpuRequest{PayloadDir: f.payload})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))

	f.scripts.calls = nil
	report, err := f.service.UninstallAmdgpu(t.Context(), UninstallAmdgpuRequest{PayloadDir: f.payload, Force: true})
	require.NoError(t, err)
	if diff := cmp.Diff([]scriptCall{{Body: "dkms remove amdgpu/6.10.5 --all\n", Args: []string{"remove"}}}, f.scripts.calls); diff != "" {
		t.Fatalf("unexpected removal scriptlets (-want +got):\n%s", diff)
	}
	wantRemoved := []string{"usr/src/amdgpu-6.10.5/dkms.conf", "lib/firmware/updates/amdgpu/gc_9_4_3_mec.bin"}
	if diff := cmp.Diff(wantRemoved, content.removed); diff != "" {
		t.Fatalf("unexpected removals (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"amdgpu-dkms-firmware", "amdgpu-dkms"}, report.Packages)
}
