// Package config loads the YAML configuration surfaces the engine reads:
// the top-level rootset file, and the optional per-volume and per-slide
// marker files discovered during topology scanning.
package config

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/bitslides/internal/checksum"
)

var readFile = os.ReadFile

// DefaultKeyword is the slides-subfolder name used when a rootset file
// doesn't override it.
const DefaultKeyword = "Slides"

const (
	defaultVolumeConfigFile = ".volume.yml"
	defaultSlideConfigFile  = ".slide.yml"
)

// CollisionPolicy names what the mover does when a destination file already
// exists.
type CollisionPolicy struct {
	Kind   CollisionKind
	Suffix string // only meaningful when Kind == CollisionRename
}

// CollisionKind enumerates the collision strategies.
type CollisionKind string

const (
	CollisionOverwrite CollisionKind = "overwrite"
	CollisionSkip      CollisionKind = "skip"
	CollisionRename    CollisionKind = "rename"
	CollisionFail      CollisionKind = "fail"
)

// ParseCollisionPolicy turns a CLI/config string into a CollisionPolicy.
// "rename:<suffix>" selects CollisionRename with the given suffix.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	if rest, ok := strings.CutPrefix(s, "rename:"); ok {
		if rest == "" {
			return CollisionPolicy{}, fmt.Errorf("rename collision policy requires a suffix, e.g. rename:bak")
		}
		return CollisionPolicy{Kind: CollisionRename, Suffix: rest}, nil
	}

	switch CollisionKind(s) {
	case CollisionOverwrite, CollisionSkip, CollisionFail:
		return CollisionPolicy{Kind: CollisionKind(s)}, nil
	default:
		return CollisionPolicy{}, fmt.Errorf("unknown collision policy: %q", s)
	}
}

// RootsetConfig pairs a slides-folder keyword with the roots that should be
// scanned for volumes using that keyword.
type RootsetConfig struct {
	Keyword string
	Roots   []string
}

// GlobalConfig is the fully-resolved configuration the engine runs with:
// rootsets loaded from one or more files, plus the move/trace behavior
// selected on the command line.
type GlobalConfig struct {
	Rootsets  []RootsetConfig
	DryRun    bool
	TracePath string
	Check     *checksum.Algorithm
	Collision CollisionPolicy
	Safe      bool
	Retries   uint8
}

// fileConfig is the on-disk shape of a rootset configuration file.
type fileConfig struct {
	Keyword *string  `yaml:"keyword"`
	Roots   []string `yaml:"roots"`
	Trace   *string  `yaml:"trace"`
}

// LoadedFile is one successfully parsed rootset config file.
type LoadedFile struct {
	Rootset RootsetConfig
	Trace   string // empty if the file didn't set one
}

// LoadFile reads and validates a single rootset configuration file. Relative
// roots are resolved against the directory containing the file. A root
// containing "$" is rejected: it is reserved for future environment-variable
// expansion.
func LoadFile(path string) (LoadedFile, error) {
	data, err := readFile(path)
	if err != nil {
		return LoadedFile{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return LoadedFile{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	keyword := DefaultKeyword
	if fc.Keyword != nil && *fc.Keyword != "" {
		keyword = *fc.Keyword
	}

	base := filepath.Dir(path)
	roots := make([]string, 0, len(fc.Roots))
	for _, root := range fc.Roots {
		if strings.Contains(root, "$") {
			return LoadedFile{}, fmt.Errorf("config: root %q in %s contains '$', which is reserved for future expansion", root, path)
		}
		if !filepath.IsAbs(root) {
			root = filepath.Join(base, root)
		}
		roots = append(roots, root)
	}

	var trace string
	if fc.Trace != nil {
		trace = *fc.Trace
		if !filepath.IsAbs(trace) {
			trace = filepath.Join(base, trace)
		}
	}

	return LoadedFile{
		Rootset: RootsetConfig{Keyword: keyword, Roots: roots},
		Trace:   trace,
	}, nil
}

// LoadFiles reads every path, collecting rootsets from the ones that parse.
// It returns an error only when none of the provided paths yielded a usable
// configuration, matching the CLI's "no valid config found" fatal condition.
// The trace path of the last file that set one wins.
func LoadFiles(paths []string) (GlobalConfig, error) {
	var cfg GlobalConfig
	var lastErr error
	loaded := 0

	for _, path := range paths {
		lf, err := LoadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		cfg.Rootsets = append(cfg.Rootsets, lf.Rootset)
		if lf.Trace != "" {
			cfg.TracePath = lf.Trace
		}
		loaded++
	}

	if loaded == 0 {
		if lastErr != nil {
			return GlobalConfig{}, fmt.Errorf("no valid configuration found: %w", lastErr)
		}
		return GlobalConfig{}, fmt.Errorf("no valid configuration found among: %v", paths)
	}

	return cfg, nil
}

// VolumeFile is the optional per-volume marker file (<keyword>/.volume.yml).
type VolumeFile struct {
	Name     *string `yaml:"name"`
	Disabled bool    `yaml:"disabled"`
}

// ReadVolumeConfig reads a volume marker file. A missing file is reported
// as the read error; callers treat any error as "no override".
func ReadVolumeConfig(path string) (VolumeFile, error) {
	var vf VolumeFile
	data, err := readFile(path)
	if err != nil {
		return vf, err
	}
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return vf, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return vf, nil
}

// VolumeConfigFileName returns the marker filename for a volume's slides dir.
func VolumeConfigFileName() string { return defaultVolumeConfigFile }

// SlideFile is the optional per-slide marker file (<slide>/.slide.yml).
type SlideFile struct {
	Route *string `yaml:"route"`
}

// ReadSlideConfig reads a slide marker file.
func ReadSlideConfig(path string) (SlideFile, error) {
	var sf SlideFile
	data, err := readFile(path)
	if err != nil {
		return sf, err
	}
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return sf, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return sf, nil
}

// SlideConfigFileName returns the marker filename for a single slide dir.
func SlideConfigFileName() string { return defaultSlideConfigFile }

var strftimeFields = map[byte]string{
	'Y': "2006",
	'm': "01",
	'd': "02",
	'H': "15",
	'M': "04",
	'S': "05",
}

// ExpandTracePath resolves a strftime-like trace path template (supporting
// %Y %m %d %H %M %S) against t. Unknown '%x' sequences pass through
// unchanged.
func ExpandTracePath(template string, t time.Time) string {
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		if template[i] == '%' && i+1 < len(template) {
			if layout, ok := strftimeFields[template[i+1]]; ok {
				b.WriteString(t.Format(layout))
				i++
				continue
			}
		}
		b.WriteByte(template[i])
	}
	return b.String()
}

// DefaultConfigPaths returns the well-known locations searched when the CLI
// is given no explicit -c/--config flag.
func DefaultConfigPaths() []string {
	paths := []string{"/etc/bitslides/default.yml"}
	if u, err := user.Current(); err == nil && u.HomeDir != "" {
		paths = append(paths, filepath.Join(u.HomeDir, ".bitslides", "default.yml"))
	}
	return paths
}
