package cli

import (
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rocm-installer/internal/core"
	"rocm-installer/internal/types"
)

// ---------- Command tree tests ----------

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCommand()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	expected := []string{
		"extract", "resolve", "install", "uninstall",
		"deps", "inspect", "run",
	}
	for _, name := range expected {
		assert.Contains(t, names, name, "missing subcommand: %s", name)
	}
}

func TestRootCommandVersion(t *testing.T) {
	root := newRootCommand()
	assert.Equal(t, "dev", root.Version)
}

func TestRootPersistentFlags(t *testing.T) {
	root := newRootCommand()
	for _, name := range []string{"config", "log-level", "payload", "yes"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), "missing flag: %s", name)
	}
}

func TestInstallSubcommands(t *testing.T) {
	for _, parent := range []*cobra.Command{newInstallCommand(), newUninstallCommand()} {
		names := make([]string, 0, 2)
		for _, cmd := range parent.Commands() {
			names = append(names, cmd.Name())
		}
		assert.ElementsMatch(t, []string{"rocm", "amdgpu"}, names, parent.Name())
	}
}

func TestInstallRocmCommandFlags(t *testing.T) {
	cmd := newInstallRocmCommand()
	flags := []string{
		"target", "gfx", "compo", "force", "deps",
		"postrocm", "no-postrocm", "gpu-access", "repo-index",
	}
	for _, name := range flags {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
}

func TestInstallAmdgpuCommandFlags(t *testing.T) {
	cmd := newInstallAmdgpuCommand()
	for _, name := range []string{"force", "deps", "gpu-access", "repo-index", "start"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
}

func TestDepsCommandFlags(t *testing.T) {
	cmd := newDepsCommand()
	for _, name := range []string{"mode", "amdgpu", "gfx", "repo-index"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), "missing flag: %s", name)
	}
	assert.Equal(t, "list", cmd.Flags().Lookup("mode").DefValue)
}

func TestExtractAndResolveCommandFlags(t *testing.T) {
	extract := newExtractCommand()
	assert.NotNil(t, extract.Flags().Lookup("packages-dir"))
	assert.NotNil(t, extract.Flags().Lookup("output"))
	resolve := newResolveCommand()
	for _, name := range []string{"extract-dir", "rocm-version", "first-party-prefix", "components"} {
		assert.NotNil(t, resolve.Flags().Lookup(name), "missing flag: %s", name)
	}
}

func TestInstallRocmRequestFromFlags(t *testing.T) {
	root := newRootCommand()
	cmd, _, err := root.Find([]string{"install", "rocm"})
	require.NoError(t, err)
	opts := installRocmOptions{
		Target:     "/srv/rocm",
		Gfx:        "gfx942",
		Components: []string{"core,dev-tools"},
		Deps:       "Validate",
		PostRocm:   true,
		NoPostRocm: true,
		GPUAccess:  "all",
	}
	require.NoError(t, cmd.Flags().Set("target", opts.Target))
	require.NoError(t, cmd.Flags().Set("gfx", opts.Gfx))
	require.NoError(t, cmd.Flags().Set("compo", "core,dev-tools"))

	req, err := installRocmRequest(cmd, opts)
	require.NoError(t, err)
	assert.Equal(t, "/srv/rocm", req.Target)
	assert.Equal(t, "gfx942", req.Gfx)
	assert.Equal(t, []string{"core", "dev-tools"}, req.Components)
	assert.Equal(t, types.DepsModeValidate, req.DepsMode)
	assert.Equal(t, types.GPUAccessAll, req.GPUAccess)
	assert.False(t, req.PostRocm, "no-postrocm wins")

	_, err = installRocmRequest(cmd, installRocmOptions{GPUAccess: "everyone"})
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
}

func TestParseLegacyArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected legacyPlan
	}{
		{
			name: "tui install",
			args: []string{"rocm", "amdgpu", "amdgpu-start", "target=/opt/custom", "", "postrocm", "gpu-access=user"},
			expected: legacyPlan{
				Rocm: true, Amdgpu: true, AmdgpuStart: true, PostRocm: true,
				Target: "/opt/custom", GPUAccess: types.GPUAccessUser,
			},
		},
		{
			name: "components and deps",
			args: []string{"rocm", "gfx=gfx942", "compo=core,dev-tools", "deps=install-only", "force"},
			expected: legacyPlan{
				Rocm: true, Force: true, Target: "/", Gfx: "gfx942",
				Components: []string{"core", "dev-tools"}, Deps: types.DepsModeInstallOnly,
			},
		},
		{
			name:     "nopostrocm after postrocm",
			args:     []string{"rocm", "postrocm", "nopostrocm"},
			expected: legacyPlan{Rocm: true, Target: "/"},
		},
		{
			name:     "tui uninstall",
			args:     []string{"target=/home/me/rocm", "uninstall-rocm"},
			expected: legacyPlan{UninstallRocm: true, Target: "/home/me/rocm"},
		},
		{
			name:     "deps only",
			args:     []string{"deps=list"},
			expected: legacyPlan{Target: "/", Deps: types.DepsModeList},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLegacyArgs(tt.args)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Fatalf("unexpected plan (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseLegacyArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "empty", args: nil},
		{name: "unknown token", args: []string{"rocm", "install-everything"}},
		{name: "flag token with value", args: []string{"rocm=yes"}},
		{name: "unknown deps mode", args: []string{"rocm", "deps=maybe"}},
		{name: "unknown gpu access", args: []string{"amdgpu", "gpu-access=world"}},
		{name: "empty target", args: []string{"rocm", "target="}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseLegacyArgs(tt.args)
			require.Error(t, err)
			assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
		})
	}
}

func TestRocmGPUAccessDefersToDriverInstall(t *testing.T) {
	assert.Equal(t, types.GPUAccessUser, rocmGPUAccess(legacyPlan{Rocm: true, GPUAccess: types.GPUAccessUser}))
	assert.Equal(t, types.GPUAccessNone, rocmGPUAccess(legacyPlan{Rocm: true, Amdgpu: true, GPUAccess: types.GPUAccessUser}))
}

// ---------- Helper function tests ----------

func TestResolveString(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *cobra.Command
		value    string
		expected string
	}{
		{
			name:     "nil cmd with value returns value",
			cmd:      nil,
			value:    "explicit",
			expected: "explicit",
		},
		{
			name:     "nil cmd empty value returns empty",
			cmd:      nil,
			value:    "",
			expected: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveString(tt.cmd, tt.value, "test_key", "test-flag")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveStrings(t *testing.T) {
	tests := []struct {
		name     string
		cmd      *cobra.Command
		values   []string
		expected []string
	}{
		{
			name:     "nil cmd with values returns values",
			cmd:      nil,
			values:   []string{"a", "b"},
			expected: []string{"a", "b"},
		},
		{
			name:     "nil cmd empty returns nil",
			cmd:      nil,
			values:   nil,
			expected: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveStrings(tt.cmd, tt.values, "test_key", "test-flag")
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveBool(t *testing.T) {
	got := resolveBool(nil, true, "test_key", "test-flag")
	assert.True(t, got)

	got = resolveBool(nil, false, "test_key", "test-flag")
	assert.False(t, got)
}

func TestFlagChanged(t *testing.T) {
	assert.False(t, flagChanged(nil, "anything"), "nil cmd should return false")
	assert.False(t, flagChanged(nil, ""), "nil cmd with empty name")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	assert.False(t, flagChanged(cmd, "myflag"), "unchanged flag")
	assert.False(t, flagChanged(cmd, "nonexistent"), "nonexistent flag")
}

func TestFlagChangedAfterSet(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("myflag", "", "test flag")
	require.NoError(t, cmd.Flags().Set("myflag", "val"))
	assert.True(t, flagChanged(cmd, "myflag"))
}

// ---------- Exit code tests ----------

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{
			name: "invalid argument",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("bad input"),
			expected: 2,
		},
		{
			name: "already exists",
			err: errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg("dup"),
			expected: 2,
		},
		{
			name: "dependencies unsatisfiable",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(core.UnsatisfiableMessage + ": libdrm2 >= 2.4.120"),
			expected: 3,
		},
		{
			name: "driver version mismatch",
			err: errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("installed amdgpu version 6.10.5 differs from installer version 6.12.1; use force to uninstall"),
			expected: 4,
		},
		{
			name: "permission denied",
			err: errbuilder.New().
				WithCode(errbuilder.CodePermissionDenied).
				WithMsg("nope"),
			expected: 4,
		},
		{
			name: "unknown component",
			err: errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("unknown component/architecture: core-sdk/gfx942"),
			expected: 5,
		},
		{
			name: "internal error",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("boom"),
			expected: 5,
		},
		{
			name:     "unknown error",
			err:      assert.AnError,
			expected: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := exitCodeForError(tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name: "errbuilder with msg",
			err: errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("something broke"),
			expected: "something broke",
		},
		{
			name:     "plain error",
			err:      assert.AnError,
			expected: assert.AnError.Error(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorMessage(tt.err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
