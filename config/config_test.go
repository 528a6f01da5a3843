package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	conf := Default()
	if err := conf.Validate(); err != nil {
		t.Fatal(err)
	}
	if !conf.Mangle.Text || !conf.Mangle.Paths || !conf.Mangle.Images {
		t.Fatal("content mangling should be enabled by default")
	}
	if !conf.Path.ExcludeClip {
		t.Fatal("clipping paths should be preserved by default")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mangle.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
mangle:
  images: false
metadata:
  keep: [CreatorTool, Producer]
path:
  percent_tweak: 0.5
  tweak_start: true
image:
  style: grey
  blur_radius: 8
`)
	conf, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Mangle.Images {
		t.Fatal("expected images disabled")
	}
	if !conf.Mangle.Text {
		t.Fatal("defaults should survive a partial file")
	}
	if conf.Path.PercentTweak != 0.5 || !conf.Path.TweakStart {
		t.Fatalf("unexpected path settings: %+v", conf.Path)
	}
	if !conf.Metadata.Keeps("Producer") || conf.Metadata.Keeps("Author") {
		t.Fatalf("unexpected keep list: %v", conf.Metadata.Keep)
	}
	if conf.Image.Style != "grey" {
		t.Fatalf("unexpected image style %s", conf.Image.Style)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	for _, content := range []string{
		"path:\n  percent_tweak: many", // type mismatch
		"paths:\n  percent_tweak: 2",   // unknown section
		"path:\n  percent_page_keep: 2",
		"image:\n  style: invert",
		"image:\n  blur_radius: 0",
	} {
		if _, err := Load(writeConfig(t, content)); err == nil {
			t.Fatalf("expected an error for %q", content)
		}
	}
}

func TestBlurRadius(t *testing.T) {
	for _, test := range []struct {
		radius   float64
		w, h     int
		expected int
	}{
		{8, 600, 400, 8},     // integral value: pixels
		{0.05, 600, 400, 20}, // fraction of the smaller dimension
		{0.05, 10, 10, 1},    // never below one pixel
		{3, 2, 2, 3},         // pixels, even on tiny images
	} {
		im := Image{Style: "blur", BlurRadius: test.radius}
		if got := im.RadiusFor(test.w, test.h); got != test.expected {
			t.Fatalf("RadiusFor(%g, %dx%d): expected %d, got %d",
				test.radius, test.w, test.h, test.expected, got)
		}
	}
}
