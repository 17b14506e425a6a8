// Package topology discovers volumes and slides on disk: the folder layout
// that the planner later turns into sync jobs. See spec §4.1.
package topology

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cuemby/bitslides/internal/config"
	"github.com/cuemby/bitslides/internal/log"
)

// Slide is one mailbox folder inside a volume: a destination-volume name,
// the on-disk path that holds files bound there, and an optional fallback
// route used when that destination volume isn't present.
type Slide struct {
	Name   string
	Path   string
	OrElse string // empty if the slide has no fallback route
}

// Volume is a folder containing a keyword subfolder full of slides.
type Volume struct {
	Name     string
	Keyword  string
	Path     string
	Disabled bool
	Slides   map[string]Slide
}

// AddSlide registers slide under its name, overwriting any prior slide of
// the same name.
func (v *Volume) AddSlide(s Slide) {
	if v.Slides == nil {
		v.Slides = make(map[string]Slide)
	}
	v.Slides[s.Name] = s
}

// CreateSlide makes the on-disk directory for a slide the planner needs but
// that doesn't exist yet, and registers it in memory. See spec §4.2.
func (v *Volume) CreateSlide(name string) error {
	path := filepath.Join(v.Path, v.Keyword, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("topology: create slide %s/%s: %w", v.Name, name, err)
	}
	v.AddSlide(Slide{Name: name, Path: path})
	return nil
}

// Volumes maps a volume's name to its Volume.
type Volumes map[string]Volume

// Discover scans every rootset's roots, merging the volumes found across
// them (later rootsets overwrite same-named volumes from earlier ones, per
// spec §4.1), then fills in each volume's slides.
func Discover(rootsets []config.RootsetConfig) Volumes {
	volumes := make(Volumes)
	logger := log.WithComponent("topology")

	for _, rs := range rootsets {
		for _, root := range rs.Roots {
			found, err := discoverRoot(root, rs.Keyword)
			if err != nil {
				logger.Warn().Err(err).Str("root", root).Msg("skipping root")
				continue
			}
			for name, v := range found {
				volumes[name] = v
			}
		}
	}

	for name, v := range volumes {
		if err := identifySlides(&v); err != nil {
			log.WithVolume(name).Warn().Err(err).Msg("failed to read slides")
		}
		volumes[name] = v
	}

	return volumes
}

// discoverRoot finds every candidate volume directly under root.
func discoverRoot(root, keyword string) (Volumes, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("topology: %s is not a directory", root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("topology: cannot read %s: %w", root, err)
	}

	logger := log.WithComponent("topology")
	volumes := make(Volumes)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		path := filepath.Join(root, entry.Name())
		v, ok := volumeFromPath(path, keyword)
		if !ok {
			continue
		}
		if v == nil {
			logger.Warn().Str("path", path).Msg("could not determine volume name, skipping")
			continue
		}
		volumes[v.Name] = *v
	}
	return volumes, nil
}

// volumeFromPath reports whether path/keyword exists, and if so builds the
// Volume for it. ok is false when path is not a volume at all (no keyword
// subfolder); a nil Volume with ok true never happens today, but the
// signature leaves room for the platform fallback below to return "not a
// volume" distinctly from "volume, but name undeterminable".
func volumeFromPath(path, keyword string) (*Volume, bool) {
	slidesDir := filepath.Join(path, keyword)
	info, err := os.Stat(slidesDir)
	if err != nil || !info.IsDir() {
		return nil, false
	}

	name := filepath.Base(path)
	disabled := false

	vf, err := config.ReadVolumeConfig(filepath.Join(slidesDir, config.VolumeConfigFileName()))
	if err == nil {
		if vf.Name != nil && *vf.Name != "" {
			name = *vf.Name
		}
		disabled = vf.Disabled
	}

	if name == "" || name == "." || name == string(filepath.Separator) {
		name = platformVolumeLabel(path)
	}
	if name == "" {
		return nil, true
	}

	return &Volume{
		Name:     name,
		Keyword:  keyword,
		Path:     path,
		Disabled: disabled,
		Slides:   make(map[string]Slide),
	}, true
}

// identifySlides scans volume.Path/volume.Keyword for slide subfolders.
func identifySlides(v *Volume) error {
	dir := filepath.Join(v.Path, v.Keyword)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("topology: cannot read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		entryPath := filepath.Join(dir, entry.Name())

		orElse := ""
		sf, err := config.ReadSlideConfig(filepath.Join(entryPath, config.SlideConfigFileName()))
		if err == nil && sf.Route != nil {
			orElse = *sf.Route
		}

		v.AddSlide(Slide{Name: entry.Name(), Path: entryPath, OrElse: orElse})
	}
	return nil
}
