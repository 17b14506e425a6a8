//go:build !windows

package topology

// platformVolumeLabel is the non-Windows fallback: basename failures here
// are a genuine "can't name this volume" rather than a root-vs-drive-letter
// ambiguity, so there's no OS-provided label to fall back to.
func platformVolumeLabel(path string) string {
	return ""
}
