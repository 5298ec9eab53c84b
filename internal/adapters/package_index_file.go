package adapters

import (
	"context"
	"os"
	"path"
	"sort"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"rocm-installer/internal/ports"
	"rocm-installer/internal/types"
)

// PackageIndexFileAdapter answers package-manager queries from an offline
// YAML snapshot. Install only records the request.
type PackageIndexFileAdapter struct {
	Path      string
	Requested [][]string
	cached    types.PackageIndexFile
	loaded    bool
}

func NewPackageIndexFileAdapter(path string) *PackageIndexFileAdapter {
	return &PackageIndexFileAdapter{Path: path}
}

func (a *PackageIndexFileAdapter) Family() (types.DistroFamily, error) {
	index, err := a.load()
	if err != nil {
		return "", err
	}
	return index.Family, nil
}

func (a *PackageIndexFileAdapter) AvailableVersion(_ context.Context, name string) (string, bool, error) {
	index, err := a.load()
	if err != nil {
		return "", false, err
	}
	version, ok := index.Available[name]
	return version, ok, nil
}

func (a *PackageIndexFileAdapter) AvailableVersions(ctx context.Context, names []string) (map[string]string, error) {
	out := map[string]string{}
	for _, name := range names {
		version, ok, err := a.AvailableVersion(ctx, name)
		if err != nil {
			return nil, err
		}
		if ok {
			out[name] = version
		}
	}
	return out, nil
}

func (a *PackageIndexFileAdapter) WhatProvides(_ context.Context, capability string) ([]string, error) {
	index, err := a.load()
	if err != nil {
		return nil, err
	}
	return index.Provides[capability], nil
}

func (a *PackageIndexFileAdapter) InstalledVersion(_ context.Context, name string) (string, error) {
	index, err := a.load()
	if err != nil {
		return "", err
	}
	return index.Installed[name], nil
}

func (a *PackageIndexFileAdapter) InstalledMatching(_ context.Context, pattern string) ([]string, error) {
	index, err := a.load()
	if err != nil {
		return nil, err
	}
	var out []string
	for name := range index.Installed {
		if ok, _ := path.Match(pattern, name); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (a *PackageIndexFileAdapter) Install(_ context.Context, names []string) error {
	a.Requested = append(a.Requested, append([]string(nil), names...))
	return nil
}

func (a *PackageIndexFileAdapter) load() (types.PackageIndexFile, error) {
	if a.loaded {
		return a.cached, nil
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return types.PackageIndexFile{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("package index file not found").
			WithCause(err)
	}
	var idx types.PackageIndexFile
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return types.PackageIndexFile{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid package index format").
			WithCause(err)
	}
	if idx.Available == nil {
		idx.Available = map[string]string{}
	}
	if idx.Provides == nil {
		idx.Provides = map[string][]string{}
	}
	if idx.Installed == nil {
		idx.Installed = map[string]string{}
	}
	a.cached = idx
	a.loaded = true
	return idx, nil
}

var _ ports.PackageManagerPort = (*PackageIndexFileAdapter)(nil)
