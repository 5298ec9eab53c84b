package ports

import "rocm-installer/internal/types"

// ArchivePort reads a package archive of one format.
type ArchivePort interface {
	// ReadMetadata returns the header view: identity, requirements and
	// scriptlets.
	ReadMetadata(path string) (types.ArchiveMetadata, error)
	// ExpandPayload unpacks the file payload under dest and returns the
	// regular files written, relative to dest.
	ExpandPayload(path string, dest string) ([]string, error)
}

// PayloadScanPort discovers package archives in a directory tree.
type PayloadScanPort interface {
	FindArchives(root string) ([]string, error)
}
