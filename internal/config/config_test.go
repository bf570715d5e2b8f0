package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"RECOGNITION_THRESHOLD", "RECOGNITION_ALPHA", "RECOGNITION_MIN_BOX_SIZE",
		"RECOGNITION_FRAME_STRIDE", "RECOGNITION_DEBOUNCE_SECONDS", "RECOGNITION_EMBEDDING_DIM",
		"DATABASE_MAX_OPEN_CONNS", "DATABASE_MAX_IDLE_CONNS", "ENGINE_URL", "WEB_ADDR",
	} {
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.Recognition.Threshold != 0.58 {
		t.Errorf("Threshold = %v, want 0.58", cfg.Recognition.Threshold)
	}
	if cfg.Recognition.Alpha != 0.05 {
		t.Errorf("Alpha = %v, want 0.05", cfg.Recognition.Alpha)
	}
	if cfg.Recognition.MinBoxSize != 80 {
		t.Errorf("MinBoxSize = %v, want 80", cfg.Recognition.MinBoxSize)
	}
	if cfg.Recognition.FrameStride != 1 {
		t.Errorf("FrameStride = %v, want 1", cfg.Recognition.FrameStride)
	}
	if cfg.Recognition.DebounceSeconds != 10 {
		t.Errorf("DebounceSeconds = %v, want 10", cfg.Recognition.DebounceSeconds)
	}
	if cfg.Recognition.EmbeddingDim != 512 {
		t.Errorf("EmbeddingDim = %v, want 512", cfg.Recognition.EmbeddingDim)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("MaxOpenConns = %v, want 25", cfg.Database.MaxOpenConns)
	}
	if cfg.Engine.URL != "http://localhost:8000" {
		t.Errorf("Engine.URL = %q, want default", cfg.Engine.URL)
	}
	if cfg.Web.Addr != ":8080" {
		t.Errorf("Web.Addr = %q, want :8080", cfg.Web.Addr)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("RECOGNITION_THRESHOLD", "0.7")
	t.Setenv("RECOGNITION_EMBEDDING_DIM", "128")
	t.Setenv("ENGINE_URL", "http://engine:9000")

	cfg := Load()

	if cfg.Recognition.Threshold != 0.7 {
		t.Errorf("Threshold = %v, want 0.7", cfg.Recognition.Threshold)
	}
	if cfg.Recognition.EmbeddingDim != 128 {
		t.Errorf("EmbeddingDim = %v, want 128", cfg.Recognition.EmbeddingDim)
	}
	if cfg.Engine.URL != "http://engine:9000" {
		t.Errorf("Engine.URL = %q, want override", cfg.Engine.URL)
	}
}

func TestEnvIntIgnoresInvalid(t *testing.T) {
	t.Setenv("RECOGNITION_MIN_BOX_SIZE", "not-a-number")
	cfg := Load()
	if cfg.Recognition.MinBoxSize != 80 {
		t.Errorf("MinBoxSize = %v, want fallback 80", cfg.Recognition.MinBoxSize)
	}
}

func TestEnvFloatRejectsOutOfRange(t *testing.T) {
	t.Setenv("RECOGNITION_ALPHA", "1.5")
	cfg := Load()
	if cfg.Recognition.Alpha != 0.05 {
		t.Errorf("Alpha = %v, want fallback 0.05", cfg.Recognition.Alpha)
	}
}
