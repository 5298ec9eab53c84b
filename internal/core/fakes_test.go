package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"testing/fstest"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"rocm-installer/internal/types"
)

// memLayout is an in-memory extraction root keyed by group.
type memLayout struct {
	groups   map[string][]types.Package
	metas    map[string][]string
	versions map[string]string
	written  map[string][]string
}

func newMemLayout() *memLayout {
	return &memLayout{
		groups:  map[string][]types.Package{},
		metas:   map[string][]string{},
		written: map[string][]string{},
	}
}

func (m *memLayout) add(group string, pkg types.Package) *memLayout {
	pkg.Arch = group
	m.groups[group] = append(m.groups[group], pkg)
	return m
}

func notFound(what string) error {
	return errbuilder.New().WithCode(errbuilder.CodeNotFound).WithMsg(what + " not found")
}

func (m *memLayout) ListGroups(string) ([]string, error) {
	return sortedKeys(m.groups), nil
}

func (m *memLayout) ReadPackageList(_ string, group string) ([]string, error) {
	var names []string
	for _, pkg := range m.groups[group] {
		names = append(names, pkg.Name)
	}
	return names, nil
}

func (m *memLayout) ReadComponents(_ string, group string) (map[string]string, error) {
	out := map[string]string{}
	for _, pkg := range m.groups[group] {
		out[pkg.Name] = pkg.Version
	}
	return out, nil
}

func (m *memLayout) find(group string, name string) (types.Package, bool) {
	for _, pkg := range m.groups[group] {
		if pkg.Name == name {
			return pkg, true
		}
	}
	return types.Package{}, false
}

func (m *memLayout) ReadDeps(_ string, group string, name string) ([]string, error) {
	pkg, ok := m.find(group, name)
	if !ok {
		return nil, notFound("deps.txt")
	}
	return pkg.Dependencies, nil
}

func (m *memLayout) ReadMetaConfig(_ string, name string) ([]string, error) {
	if pkgs, ok := m.written[name]; ok {
		return pkgs, nil
	}
	pkgs, ok := m.metas[name]
	if !ok {
		return nil, notFound(name + "-meta.config")
	}
	return pkgs, nil
}

func (m *memLayout) ListMetaConfigs(string) ([]string, error) {
	seen := map[string]bool{}
	for name := range m.metas {
		seen[name] = true
	}
	for name := range m.written {
		seen[name] = true
	}
	return sortedKeys(seen), nil
}

func (m *memLayout) ReadPackage(_ string, group string, name string) (types.Package, error) {
	pkg, ok := m.find(group, name)
	if !ok {
		return types.Package{}, notFound(name)
	}
	return pkg, nil
}

func (m *memLayout) ContentDir(root string, group string, name string) string {
	return root + "/" + group + "/" + name + "/content"
}

func (m *memLayout) WriteMetaConfig(_ string, name string, packages []string) error {
	m.written[name] = append([]string(nil), packages...)
	return nil
}

func (m *memLayout) ResetPackage(root string, group string, name string) (string, error) {
	return m.ContentDir(root, group, name), nil
}

func (m *memLayout) WritePackage(_ string, pkg types.Package) error {
	m.groups[pkg.Arch] = append(m.groups[pkg.Arch], pkg)
	return nil
}

func (m *memLayout) WritePackageList(_ string, group string, names []string) error {
	m.written["packages:"+group] = names
	return nil
}

func (m *memLayout) WriteComponents(_ string, group string, packages []types.Package) error {
	var lines []string
	for _, pkg := range packages {
		lines = append(lines, pkg.Name+"="+pkg.Version)
	}
	m.written["components:"+group] = lines
	return nil
}

func (m *memLayout) WriteRequiredDeps(path string, set types.RequiredDependencySet) error {
	m.written[path] = set.Lines()
	return nil
}

func (m *memLayout) WritePackagesConfig(_ string, archives []string) error {
	m.written["rocm-packages.config"] = archives
	return nil
}

type scriptCall struct {
	Body string
	Args []string
}

type fakeScripts struct {
	calls []scriptCall
	fail  map[string]bool
}

func (f *fakeScripts) Run(_ context.Context, body string, args []string) error {
	f.calls = append(f.calls, scriptCall{Body: body, Args: args})
	for marker := range f.fail {
		if strings.Contains(body, marker) {
			return errors.New("exit status 1")
		}
	}
	return nil
}

// fakeContent applies copies and removals to a MapFS keyed by path
// relative to the target root.
type fakeContent struct {
	fsys    fstest.MapFS
	sources map[string][]string
	written map[string]string
	copied  []string
	failOn  string
}

func (f *fakeContent) CopyTree(_ context.Context, src string, _ string) (int, error) {
	if f.failOn != "" && strings.Contains(src, f.failOn) {
		return 0, errors.New("no space left on device")
	}
	f.copied = append(f.copied, src)
	for _, rel := range f.sources[src] {
		f.fsys[rel] = &fstest.MapFile{Data: []byte("x")}
	}
	return len(f.sources[src]), nil
}

func (f *fakeContent) RemoveFiles(_ string, relPaths []string) (int, int, error) {
	removed := 0
	for _, rel := range relPaths {
		key := fsPath(rel)
		if _, ok := f.fsys[key]; ok {
			delete(f.fsys, key)
			removed++
		}
	}
	return removed, 0, nil
}

func (f *fakeContent) WriteFile(path string, data []byte) error {
	if f.written == nil {
		f.written = map[string]string{}
	}
	f.written[path] = string(data)
	return nil
}

type fakeConfirm struct {
	answer  bool
	prompts []string
}

func (f *fakeConfirm) Confirm(prompt string) (bool, error) {
	f.prompts = append(f.prompts, prompt)
	return f.answer, nil
}

type fakeHost struct {
	missing map[string]bool
	user    string
	runs    []string
}

func (f *fakeHost) LookPath(tool string) error {
	if f.missing[tool] {
		return fmt.Errorf("exec: %q: executable file not found in $PATH", tool)
	}
	return nil
}

func (f *fakeHost) DetectDistro() (types.DistroFamily, error) {
	return types.DistroFamilyEL, nil
}

func (f *fakeHost) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.runs = append(f.runs, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return nil, nil
}

func (f *fakeHost) InvokingUser() string {
	return f.user
}

// fakePackages is an in-memory package index.
type fakePackages struct {
	available map[string]string
	provides  map[string][]string
	installed map[string]string
	bulkCalls int
	nameCalls int
	installs  [][]string
}

func (f *fakePackages) AvailableVersion(_ context.Context, name string) (string, bool, error) {
	f.nameCalls++
	version, ok := f.available[name]
	return version, ok, nil
}

func (f *fakePackages) AvailableVersions(_ context.Context, names []string) (map[string]string, error) {
	f.bulkCalls++
	out := map[string]string{}
	for _, name := range names {
		if version, ok := f.available[name]; ok {
			out[name] = version
		}
	}
	return out, nil
}

func (f *fakePackages) WhatProvides(_ context.Context, capability string) ([]string, error) {
	return f.provides[capability], nil
}

func (f *fakePackages) InstalledVersion(_ context.Context, name string) (string, error) {
	return f.installed[name], nil
}

func (f *fakePackages) InstalledMatching(_ context.Context, pattern string) ([]string, error) {
	prefix := strings.TrimSuffix(pattern, "*")
	var out []string
	for name := range f.installed {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakePackages) Install(_ context.Context, names []string) error {
	f.installs = append(f.installs, names)
	return nil
}

type fakeDriver struct {
	version string
}

func (f fakeDriver) InstalledDriverVersion(context.Context) (string, error) {
	return f.version, nil
}

func mapFSOpener(fsys fstest.MapFS) FSOpener {
	return func(string) fs.FS { return fsys }
}
