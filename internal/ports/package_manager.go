package ports

import "context"

// PackageManagerPort queries and mutates the host package database.
type PackageManagerPort interface {
	// AvailableVersion returns the candidate version of an exact package
	// name; found is false when the repositories do not know it.
	AvailableVersion(ctx context.Context, name string) (version string, found bool, err error)
	// AvailableVersions bulk-queries several names at once. Names absent
	// from the result are unknown.
	AvailableVersions(ctx context.Context, names []string) (map[string]string, error)
	// WhatProvides lists package names providing a capability, best first.
	WhatProvides(ctx context.Context, capability string) ([]string, error)
	// InstalledVersion returns the installed version or "" when absent.
	InstalledVersion(ctx context.Context, name string) (string, error)
	// InstalledMatching lists installed package names matching a glob.
	InstalledMatching(ctx context.Context, pattern string) ([]string, error)
	Install(ctx context.Context, names []string) error
}
