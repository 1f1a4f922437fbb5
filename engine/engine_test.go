package engine

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/frame"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
)

// second is a variable so the float divisions below are evaluated at run
// time (truncating), as the code under test does.
var second = float64(time.Second)

func TestFrameDuration(t *testing.T) {
	tests := []struct {
		fps  float64
		want time.Duration
	}{
		{0, 0},
		{-5, 0},
		{60, time.Duration(second / 60)},
		{144, time.Duration(second / 144)},
	}
	for _, tt := range tests {
		if got := frameDuration(tt.fps); got != tt.want {
			t.Errorf("frameDuration(%v) = %v, want %v", tt.fps, got, tt.want)
		}
	}
}

func TestResizeTracksMinimized(t *testing.T) {
	e := NewEngine().(*engine)

	e.resize(0, 0)
	if !e.minimized.Load() {
		t.Error("zero-sized framebuffer should pause rendering")
	}
	e.resize(800, 600)
	if e.minimized.Load() {
		t.Error("restored framebuffer should resume rendering")
	}
}

func TestRunRequiresWindow(t *testing.T) {
	if err := NewEngine().Run(); err == nil {
		t.Error("Run() without a window returned nil")
	}
}

func TestSetTickRateBeforeRun(t *testing.T) {
	e := NewEngine(WithTickRate(30)).(*engine)
	if e.engineTickRate != time.Duration(second/30) {
		t.Errorf("engineTickRate = %v, want 1/30s", e.engineTickRate)
	}
	e.SetTickRate(0)
	if e.engineTickRate != time.Duration(second/60) {
		t.Errorf("engineTickRate = %v, want the 60Hz default", e.engineTickRate)
	}
}

func TestQuitIsIdempotent(t *testing.T) {
	e := NewEngine()
	e.Quit()
	e.Quit()
}

func TestLogFrameStatsVisibleLights(t *testing.T) {
	tests := []struct {
		name  string
		stats frame.Stats
		want  bool
	}{
		{"gpu culling", frame.Stats{Lights: 4}, false},
		{"cpu culling", frame.Stats{Lights: 4, VisibleLights: 2, CPUCulled: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
			defer logger.SetLogger(nil)

			logFrameStats(tt.stats)
			out := buf.String()
			if !strings.Contains(out, "lights=4") {
				t.Errorf("log = %q, want lights=4", out)
			}
			if got := strings.Contains(out, "visible_lights="); got != tt.want {
				t.Errorf("visible_lights logged = %v, want %v: %q", got, tt.want, out)
			}
		})
	}
}
