// Package config holds the settings controlling which parts of a
// document are mangled and how aggressively. A Config is populated
// once, at startup, and never mutated afterwards.
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Toggles enables or disables each mangling pass.
type Toggles struct {
	Metadata    bool `yaml:"metadata"`
	Content     bool `yaml:"content"`
	Text        bool `yaml:"text"`
	Paths       bool `yaml:"paths"`
	Images      bool `yaml:"images"`
	Outlines    bool `yaml:"outlines"`
	OCGNames    bool `yaml:"ocg_names"`
	JavaScript  bool `yaml:"javascript"`
	Thumbnails  bool `yaml:"thumbnails"`
	Annotations bool `yaml:"annotations"`
}

// Metadata configures the metadata filter. Keys are kept only on an
// exact match against Keep.
type Metadata struct {
	Keep []string `yaml:"keep"`
}

// Keeps returns whether the metadata key survives filtering.
func (m Metadata) Keeps(key string) bool {
	for _, k := range m.Keep {
		if k == key {
			return true
		}
	}
	return false
}

// Path configures the geometry perturbation.
type Path struct {
	// PercentTweak scales the standard deviation with the segment length.
	PercentTweak float64 `yaml:"percent_tweak"`
	// MinTweak is the floor of the standard deviation, in user space units.
	MinTweak float64 `yaml:"min_tweak"`
	// PercentPageKeep leaves untouched any segment spanning at least this
	// fraction of the page in either direction.
	PercentPageKeep float64 `yaml:"percent_page_keep"`
	// TweakStart also moves the starting point of each segment.
	TweakStart bool `yaml:"tweak_start"`
	// ExcludeClip leaves clipping paths untouched.
	ExcludeClip bool `yaml:"exclude_clip"`
}

// Image configures the raster image replacement.
type Image struct {
	// Style is "blur" or "grey" ("gray" is accepted as an alias).
	Style string `yaml:"style"`
	// BlurRadius is either a pixel count (integral values) or a fraction
	// of the smaller image dimension (values below one).
	BlurRadius float64 `yaml:"blur_radius"`
}

// RadiusFor resolves BlurRadius against the image dimensions, in pixels.
func (im Image) RadiusFor(w, h int) int {
	r := im.BlurRadius
	if r < 1 || r != math.Trunc(r) {
		min := w
		if h < w {
			min = h
		}
		r = r * float64(min)
	}
	if r < 1 {
		return 1
	}
	return int(r)
}

// Config is the root of the settings tree.
type Config struct {
	Mangle   Toggles  `yaml:"mangle"`
	Metadata Metadata `yaml:"metadata"`
	Path     Path     `yaml:"path"`
	Image    Image    `yaml:"image"`
}

// Default returns the settings used when no configuration file is given.
func Default() Config {
	return Config{
		Mangle: Toggles{
			Metadata:    true,
			Content:     true,
			Text:        true,
			Paths:       true,
			Images:      true,
			Outlines:    true,
			OCGNames:    true,
			JavaScript:  true,
			Thumbnails:  true,
			Annotations: true,
		},
		Metadata: Metadata{
			Keep: []string{"CreatorTool", "Producer", "CreateDate", "ModifyDate"},
		},
		Path: Path{
			PercentTweak:    0.25,
			MinTweak:        2,
			PercentPageKeep: 0.75,
			TweakStart:      false,
			ExcludeClip:     true,
		},
		Image: Image{
			Style:      "blur",
			BlurRadius: 0.05,
		},
	}
}

// Load reads a YAML configuration file on top of the defaults.
// Unknown fields and type mismatches are errors.
func Load(filename string) (Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Config{}, fmt.Errorf("opening configuration: %w", err)
	}
	defer f.Close()

	conf := Default()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&conf); err != nil {
		return Config{}, fmt.Errorf("reading configuration %s: %w", filename, err)
	}
	if err := conf.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration %s: %w", filename, err)
	}
	return conf, nil
}

// Validate checks the numeric ranges and enumerated values.
func (c *Config) Validate() error {
	if c.Path.PercentTweak < 0 {
		return fmt.Errorf("path.percent_tweak must not be negative (got %g)", c.Path.PercentTweak)
	}
	if c.Path.MinTweak < 0 {
		return fmt.Errorf("path.min_tweak must not be negative (got %g)", c.Path.MinTweak)
	}
	if c.Path.PercentPageKeep < 0 || c.Path.PercentPageKeep > 1 {
		return fmt.Errorf("path.percent_page_keep must be in [0, 1] (got %g)", c.Path.PercentPageKeep)
	}
	switch c.Image.Style {
	case "blur", "grey", "gray":
	default:
		return fmt.Errorf("image.style must be blur or grey (got %q)", c.Image.Style)
	}
	if c.Image.BlurRadius <= 0 {
		return fmt.Errorf("image.blur_radius must be positive (got %g)", c.Image.BlurRadius)
	}
	return nil
}
