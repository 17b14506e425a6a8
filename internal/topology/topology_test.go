package topology

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuemby/bitslides/internal/config"
)

func mkVolume(t *testing.T, root, name string, slides ...string) {
	t.Helper()
	base := filepath.Join(root, name, "Slides")
	if err := os.MkdirAll(base, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	for _, s := range slides {
		if err := os.MkdirAll(filepath.Join(base, s), 0o755); err != nil {
			t.Fatalf("MkdirAll() error = %v", err)
		}
	}
}

func TestDiscoverFindsVolumesAndSlides(t *testing.T) {
	root := t.TempDir()
	mkVolume(t, root, "foo", "bar", "baz")
	mkVolume(t, root, "bar", "foo")

	volumes := Discover([]config.RootsetConfig{{Keyword: "Slides", Roots: []string{root}}})

	if len(volumes) != 2 {
		t.Fatalf("got %d volumes, want 2: %+v", len(volumes), volumes)
	}
	foo, ok := volumes["foo"]
	if !ok {
		t.Fatal("volume foo not found")
	}
	if len(foo.Slides) != 2 {
		t.Errorf("foo has %d slides, want 2", len(foo.Slides))
	}
	if _, ok := foo.Slides["bar"]; !ok {
		t.Error("foo missing slide bar")
	}
}

func TestDiscoverSkipsNonVolumeDirs(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "not-a-volume"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	mkVolume(t, root, "foo")

	volumes := Discover([]config.RootsetConfig{{Keyword: "Slides", Roots: []string{root}}})
	if len(volumes) != 1 {
		t.Fatalf("got %d volumes, want 1: %+v", len(volumes), volumes)
	}
}

func TestDiscoverHonorsVolumeConfigNameAndDisabled(t *testing.T) {
	root := t.TempDir()
	mkVolume(t, root, "foo")
	yml := "name: renamed\ndisabled: true\n"
	path := filepath.Join(root, "foo", "Slides", config.VolumeConfigFileName())
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	volumes := Discover([]config.RootsetConfig{{Keyword: "Slides", Roots: []string{root}}})
	v, ok := volumes["renamed"]
	if !ok {
		t.Fatalf("expected volume named renamed, got %+v", volumes)
	}
	if !v.Disabled {
		t.Error("expected volume to be disabled")
	}
}

func TestDiscoverHonorsSlideOrElse(t *testing.T) {
	root := t.TempDir()
	mkVolume(t, root, "foo", "bar")
	yml := "route: baz\n"
	path := filepath.Join(root, "foo", "Slides", "bar", config.SlideConfigFileName())
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	volumes := Discover([]config.RootsetConfig{{Keyword: "Slides", Roots: []string{root}}})
	slide := volumes["foo"].Slides["bar"]
	if slide.OrElse != "baz" {
		t.Errorf("OrElse = %q, want baz", slide.OrElse)
	}
}

func TestDiscoverLaterRootsetOverwritesEarlier(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	mkVolume(t, rootA, "foo", "bar")
	mkVolume(t, rootB, "foo", "baz")

	volumes := Discover([]config.RootsetConfig{
		{Keyword: "Slides", Roots: []string{rootA}},
		{Keyword: "Slides", Roots: []string{rootB}},
	})

	foo := volumes["foo"]
	if _, ok := foo.Slides["baz"]; !ok {
		t.Error("expected the later rootset's volume to win")
	}
	if _, ok := foo.Slides["bar"]; ok {
		t.Error("expected the earlier rootset's volume to be fully replaced")
	}
}

func TestDiscoverWarnsAndContinuesOnBadRoot(t *testing.T) {
	root := t.TempDir()
	mkVolume(t, root, "foo")
	missing := filepath.Join(root, "does-not-exist")

	volumes := Discover([]config.RootsetConfig{{Keyword: "Slides", Roots: []string{missing, root}}})
	if len(volumes) != 1 {
		t.Fatalf("got %d volumes, want 1", len(volumes))
	}
}

func TestCreateSlideRegistersOnDisk(t *testing.T) {
	root := t.TempDir()
	v := Volume{Name: "foo", Keyword: "Slides", Path: filepath.Join(root, "foo")}
	if err := os.MkdirAll(filepath.Join(v.Path, v.Keyword), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}

	if err := v.CreateSlide("bar"); err != nil {
		t.Fatalf("CreateSlide() error = %v", err)
	}
	if _, ok := v.Slides["bar"]; !ok {
		t.Error("CreateSlide() did not register the slide in memory")
	}
	if info, err := os.Stat(filepath.Join(v.Path, v.Keyword, "bar")); err != nil || !info.IsDir() {
		t.Error("CreateSlide() did not create the directory on disk")
	}
}
