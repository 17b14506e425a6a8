// Package mover copies a single file into place under a collision policy,
// with optional checksum verification and safe staged writes. See spec §4.3.
package mover

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuemby/bitslides/internal/checksum"
	"github.com/cuemby/bitslides/internal/config"
	"github.com/cuemby/bitslides/internal/metrics"
)

// Strategy bundles the knobs MoveFile needs: what to do on a name collision,
// whether to stage through a .wip file, whether to verify the copy with a
// checksum, and how many extra attempts to make on mismatch.
type Strategy struct {
	Collision config.CollisionPolicy
	Safe      bool
	Check     *checksum.Algorithm
	Retries   uint8
	HashFile  checksum.HashFunc // defaults to checksum.HashFile when nil
}

func (s Strategy) hashFile() checksum.HashFunc {
	if s.HashFile != nil {
		return s.HashFile
	}
	return checksum.HashFile
}

// withExtension replaces dst's extension with ext, mirroring
// PathBuf::set_extension/with_extension: the existing extension (the part
// after the last '.' in the final component, if any) is dropped and ext is
// appended. A leading-dot basename has no extension by this rule, so the
// result is "<name>.ext" appended onto the dotfile itself -- a known
// cosmetic quirk, preserved for compatibility (spec §4.3).
func withExtension(path, ext string) string {
	dir, name := filepath.Split(path)
	if i := strings.LastIndex(name, "."); i > 0 {
		name = name[:i]
	}
	return filepath.Join(dir, name+"."+ext)
}

// MoveFile copies src to dst under strategy, removing src on success.
func MoveFile(src, dst string, strategy Strategy) error {
	if _, err := os.Stat(dst); err == nil {
		switch strategy.Collision.Kind {
		case config.CollisionSkip:
			return nil
		case config.CollisionFail:
			return fmt.Errorf("file already exists: %s", dst)
		case config.CollisionRename:
			dst = withExtension(dst, strategy.Collision.Suffix)
		case config.CollisionOverwrite:
			// fall through, copy overwrites in place
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("mover: stat %s: %w", dst, err)
	}

	var checksumSrc string
	if strategy.Check != nil {
		var err error
		checksumSrc, err = strategy.hashFile()(src, *strategy.Check)
		if err != nil {
			return fmt.Errorf("mover: checksum source %s: %w", src, err)
		}
	}

	staging := dst
	if strategy.Safe {
		staging = withExtension(dst, "wip")
	}

	for attempts := 0; attempts <= int(strategy.Retries); attempts++ {
		if err := copyFile(src, staging); err != nil {
			return fmt.Errorf("mover: copy %s -> %s: %w", src, staging, err)
		}

		if strategy.Check != nil {
			checksumStaging, err := strategy.hashFile()(staging, *strategy.Check)
			if err != nil {
				return fmt.Errorf("mover: checksum staging %s: %w", staging, err)
			}
			if checksumStaging != checksumSrc {
				metrics.MoveRetriesTotal.WithLabelValues(string(*strategy.Check)).Inc()
				continue
			}
		}

		if strategy.Safe {
			if err := os.Rename(staging, dst); err != nil {
				return fmt.Errorf("mover: rename %s -> %s: %w", staging, dst, err)
			}
		}

		if err := os.Remove(src); err != nil {
			return fmt.Errorf("mover: remove source %s: %w", src, err)
		}

		return nil
	}

	if _, err := os.Stat(staging); err == nil {
		_ = os.Remove(staging)
	}
	return fmt.Errorf("failed to move file %s after maximum retries", src)
}

// copyFile performs a whole-file copy, preserving the source's mode bits.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
