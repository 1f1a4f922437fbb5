package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/postprocess"
	"github.com/Carmen-Shannon/oxy-render/engine/shadow"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse(`
[shadow]
tile_resolution = 1024
virtual_grid_size = 8

[bloom]
filter = "box"
prefilter = "gaussian"

[post]
outline_color = [1.0, 0.5, 0.0, 1.0]
`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Shadow.TileResolution != 1024 || cfg.Shadow.VirtualGridSize != 8 {
		t.Errorf("shadow = %+v, overrides not applied", cfg.Shadow)
	}
	if cfg.Shadow.AtlasTilesW != Default().Shadow.AtlasTilesW {
		t.Errorf("atlas_tiles_w = %d, want default", cfg.Shadow.AtlasTilesW)
	}
	bloom := cfg.Bloom.Settings()
	if bloom.Filter != postprocess.FilterBox || bloom.Prefilter != postprocess.PrefilterGaussian {
		t.Errorf("bloom settings = %+v", bloom)
	}
	if cfg.Post.OutlineColor != [4]float32{1, 0.5, 0, 1} {
		t.Errorf("outline_color = %v", cfg.Post.OutlineColor)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero tile resolution", func(c *Config) { c.Shadow.TileResolution = 0 }, "tile_resolution"},
		{"zero light cap", func(c *Config) { c.Culling.MaxLightsPerCamera = 0 }, "max_lights_per_camera"},
		{"bad filter", func(c *Config) { c.Bloom.Filter = "lanczos" }, "bloom.filter"},
		{"bad mip count", func(c *Config) { c.Bloom.MipCount = 0 }, "mip_count"},
		{"scatter above one", func(c *Config) { c.Bloom.Scatter = 1.5 }, "scatter"},
		{"bad msaa", func(c *Config) { c.Renderer.MSAA = 2 }, "msaa"},
		{"bad present mode", func(c *Config) { c.Renderer.PresentMode = "mailbox" }, "present_mode"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"inverted vignette", func(c *Config) { c.Post.VignetteInner = 1; c.Post.VignetteOuter = 0.5 }, "vignette"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v does not wrap ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateWrapsAtlasError(t *testing.T) {
	cfg := Default()
	cfg.Shadow.AtlasLayers = 0
	if err := cfg.Validate(); !errors.Is(err, shadow.ErrInvalidAtlas) {
		t.Errorf("Validate() = %v, want wrapped shadow.ErrInvalidAtlas", err)
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	if _, err := Parse("[shadow\ntile_resolution = "); err == nil {
		t.Error("Parse() of malformed TOML returned nil error")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "render.toml")
	cfg := Default()
	cfg.Post.Exposure = 1.75
	cfg.Culling.CPUFallback = true
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Post.Exposure != 1.75 || !loaded.Culling.CPUFallback {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want wrapped os.ErrNotExist", err)
	}
}

func TestLogConfigLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := LogConfig{Level: "debug", Format: "json"}.Logger(&buf)
	if err != nil {
		t.Fatal(err)
	}
	l.Debug("pipeline registered")
	if !strings.Contains(buf.String(), `"msg":"pipeline registered"`) {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
