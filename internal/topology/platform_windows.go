//go:build windows

package topology

import "path/filepath"

// platformVolumeLabel falls back to the drive letter when a root is a bare
// drive (e.g. "C:\") and so has no meaningful basename. Mirrors the original
// implementation's GetLogicalDriveStringsA path without the raw Win32 call:
// filepath.VolumeName already extracts "C:" from the path stdlib-side.
func platformVolumeLabel(path string) string {
	return filepath.VolumeName(path)
}
