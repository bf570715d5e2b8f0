package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database    DatabaseConfig
	Engine      EngineConfig
	Recognition RecognitionConfig
	Web         WebConfig
	Images      ImageConfig
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

// EngineConfig points at the face detection/embedding sidecar.
type EngineConfig struct {
	URL string // defaults to http://localhost:8000
}

type RecognitionConfig struct {
	Threshold       float64 `yaml:"threshold"`        // minimum cosine similarity for a match
	Alpha           float64 `yaml:"alpha"`            // EMA blend factor for template adaptation
	MinBoxSize      int     `yaml:"min_box_size"`     // smallest face box side in pixels worth matching
	FrameStride     int     `yaml:"frame_stride"`     // process every Nth frame
	DebounceSeconds int     `yaml:"debounce_seconds"` // per-identity event suppression window
	EmbeddingDim    int     `yaml:"embedding_dim"`    // embedding vector dimensionality
}

type WebConfig struct {
	Addr          string // listen address (default :8080)
	SessionSecret string // HMAC key for signed login cookies
}

type ImageConfig struct {
	Dir string // directory for saved face crops (default ./faces)
}

type defaults struct {
	Recognition RecognitionConfig `yaml:"recognition"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var def defaults
	if err := yaml.Unmarshal(defaultsYAML, &def); err != nil {
		// Embedded file, cannot fail in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Engine: EngineConfig{
			URL: envString("ENGINE_URL", "http://localhost:8000"),
		},
		Recognition: RecognitionConfig{
			Threshold:       envFloat("RECOGNITION_THRESHOLD", def.Recognition.Threshold),
			Alpha:           envFloat("RECOGNITION_ALPHA", def.Recognition.Alpha),
			MinBoxSize:      envInt("RECOGNITION_MIN_BOX_SIZE", def.Recognition.MinBoxSize),
			FrameStride:     envInt("RECOGNITION_FRAME_STRIDE", def.Recognition.FrameStride),
			DebounceSeconds: envInt("RECOGNITION_DEBOUNCE_SECONDS", def.Recognition.DebounceSeconds),
			EmbeddingDim:    envInt("RECOGNITION_EMBEDDING_DIM", def.Recognition.EmbeddingDim),
		},
		Web: WebConfig{
			Addr:          envString("WEB_ADDR", ":8080"),
			SessionSecret: os.Getenv("WEB_SESSION_SECRET"),
		},
		Images: ImageConfig{
			Dir: envString("IMAGES_DIR", "./faces"),
		},
	}
}
