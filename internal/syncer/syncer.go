// Package syncer mirrors one directory tree onto another and reclaims
// emptied-out source subdirectories afterward. See spec §4.4.
package syncer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/bitslides/internal/mover"
	"github.com/cuemby/bitslides/internal/tracer"
)

// Stats reports how much work a Sync call actually did, so a caller with
// job-level labels (src/via/dst) can feed them into metrics.
type Stats struct {
	FilesMoved    int
	DirsReclaimed int
}

// Sync walks from, mirroring its directory structure and files onto to.
// Directories are created as needed; files are relocated with the mover
// under strategy. Unless dryRun, a reclamation pass removes every
// subdirectory of from left empty by the move, without touching from
// itself. A single move failure aborts the walk immediately.
func Sync(from, to string, dryRun bool, trace tracer.Tracer, strategy mover.Strategy) (Stats, error) {
	var stats Stats
	fromComponents := len(splitPath(from))

	stack := []string{from}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dst := mirror(dir, fromComponents, to)

		if _, err := os.Stat(dst); err != nil {
			if err := trace.Log("MKDIR", dst); err != nil {
				return stats, fmt.Errorf("syncer: trace mkdir: %w", err)
			}
			if !dryRun {
				if err := os.MkdirAll(dst, 0o755); err != nil {
					return stats, fmt.Errorf("syncer: mkdir %s: %w", dst, err)
				}
			}
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return stats, fmt.Errorf("syncer: read %s: %w", dir, err)
		}

		for _, entry := range entries {
			srcPath := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				stack = append(stack, srcPath)
				continue
			}

			dstPath := filepath.Join(dst, entry.Name())
			if err := trace.Log("MV", srcPath+" -> "+dstPath); err != nil {
				return stats, fmt.Errorf("syncer: trace mv: %w", err)
			}
			if !dryRun {
				if err := mover.MoveFile(srcPath, dstPath, strategy); err != nil {
					return stats, fmt.Errorf("syncer: move %s -> %s: %w", srcPath, dstPath, err)
				}
				stats.FilesMoved++
			}
		}
	}

	if dryRun {
		return stats, nil
	}
	reclaimed, err := reclaimEmptyDirs(from)
	stats.DirsReclaimed = reclaimed
	return stats, err
}

// mirror computes the destination for a directory visited while walking
// from, by stripping from's path components as a prefix and joining the
// remainder under to.
func mirror(dir string, fromComponents int, to string) string {
	rest := splitPath(dir)[fromComponents:]
	if len(rest) == 0 {
		return to
	}
	return filepath.Join(to, filepath.Join(rest...))
}

func splitPath(path string) []string {
	clean := filepath.Clean(path)
	var parts []string
	for {
		dir, last := filepath.Split(clean)
		dir = strings.TrimSuffix(dir, string(filepath.Separator))
		if last != "" {
			parts = append([]string{last}, parts...)
		}
		if dir == clean || dir == "" {
			if dir != "" {
				parts = append([]string{dir}, parts...)
			}
			break
		}
		clean = dir
	}
	return parts
}

// reclaimEmptyDirs removes every subdirectory of root that (after the sync
// pass) contains no files at any depth, without removing root itself. A
// directory on the path to any retained file is kept, along with every
// ancestor above it.
func reclaimEmptyDirs(root string) (int, error) {
	hasFiles, err := subtreeHasFiles(root)
	if err != nil {
		return 0, fmt.Errorf("syncer: reclaim scan %s: %w", root, err)
	}

	retained := make(map[string]bool)
	markRetainedAncestors(root, hasFiles, retained)

	count := 0
	err = reclaimWalk(root, &count, retained)
	return count, err
}

// subtreeHasFiles reports, for every directory under root (root included),
// whether that subtree contains a file at any depth.
func subtreeHasFiles(dir string) (map[string]bool, error) {
	result := make(map[string]bool)
	var walk func(string) (bool, error)
	walk = func(d string) (bool, error) {
		entries, err := os.ReadDir(d)
		if err != nil {
			return false, err
		}
		found := false
		for _, entry := range entries {
			if entry.IsDir() {
				sub, err := walk(filepath.Join(d, entry.Name()))
				if err != nil {
					return false, err
				}
				if sub {
					found = true
				}
				continue
			}
			found = true
		}
		result[d] = found
		return found, nil
	}
	_, err := walk(dir)
	return result, err
}

// markRetainedAncestors flags root itself, and every directory that (per
// hasFiles) contains a file anywhere beneath it, as not-to-be-deleted.
func markRetainedAncestors(root string, hasFiles map[string]bool, retained map[string]bool) {
	retained[root] = true
	for dir, has := range hasFiles {
		if has {
			retained[dir] = true
		}
	}
}

// reclaimWalk deletes empty, non-retained subdirectories of dir bottom-up,
// incrementing *count once per directory removed.
func reclaimWalk(dir string, count *int, retained map[string]bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("syncer: reclaim read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(dir, entry.Name())
		if retained[sub] {
			if err := reclaimWalk(sub, count, retained); err != nil {
				return err
			}
			continue
		}
		if err := os.RemoveAll(sub); err != nil {
			return fmt.Errorf("syncer: remove empty dir %s: %w", sub, err)
		}
		*count++
	}
	return nil
}
