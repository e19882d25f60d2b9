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
	Gallery     GalleryConfig
	EventLog    EventLogConfig
	Model       ModelConfig
	Detector    DetectorConfig
	Recognition RecognitionConfig
}

type GalleryConfig struct {
	Backend      string // "file" or "postgres"
	Path         string // gallery JSON file (file backend)
	DatabaseURL  string // PostgreSQL connection URL (postgres backend)
	MaxOpenConns int
	MaxIdleConns int
}

type EventLogConfig struct {
	Backend     string // "memory", "sqlite", "postgres" or "mariadb"
	Path        string // database file (sqlite backend)
	DatabaseURL string // PostgreSQL connection URL (postgres backend)
	MariaDSN    string // MariaDB DSN (mariadb backend), e.g. facegate:secret@tcp(mariadb:3306)/facegate
	MaxEvents   int    // memory backend retention, 0 keeps everything
}

type ModelConfig struct {
	URL string // face model service base URL, defaults to http://localhost:8000
}

type DetectorConfig struct {
	Mode             string // default detector mode: "precise" or "fast"
	CascadePath      string // pigo cascade file for the fast backend
	MinFaceSize      int
	ShiftFactor      float64
	ScaleFactor      float64
	IoUThreshold     float64
	QualityThreshold float64
}

type RecognitionConfig struct {
	Threshold     float64 // cosine similarity decision threshold
	InputSize     int     // model input size, faces are resized to InputSize x InputSize
	DescriptorDim int     // descriptor dimensionality, fixed for the process lifetime
}

// defaults mirrors the embedded defaults.yaml structure.
type defaults struct {
	Detector struct {
		MinFaceSize      int     `yaml:"min_face_size"`
		ShiftFactor      float64 `yaml:"shift_factor"`
		ScaleFactor      float64 `yaml:"scale_factor"`
		IoUThreshold     float64 `yaml:"iou_threshold"`
		QualityThreshold float64 `yaml:"quality_threshold"`
	} `yaml:"detector"`
	Recognition struct {
		Threshold     float64 `yaml:"threshold"`
		InputSize     int     `yaml:"input_size"`
		DescriptorDim int     `yaml:"descriptor_dim"`
	} `yaml:"recognition"`
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

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a fallback.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var d defaults
	if err := yaml.Unmarshal(defaultsYAML, &d); err != nil {
		// Embedded file, so this can only be a build-time mistake.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Gallery: GalleryConfig{
			Backend:      envString("GALLERY_BACKEND", "file"),
			Path:         envString("GALLERY_PATH", "data/gallery.json"),
			DatabaseURL:  os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		EventLog: EventLogConfig{
			Backend:     envString("EVENTLOG_BACKEND", "memory"),
			Path:        envString("EVENTLOG_PATH", "data/access_log.db"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			MariaDSN:    os.Getenv("MARIADB_DSN"),
			MaxEvents:   envInt("EVENTLOG_MAX_EVENTS", 0),
		},
		Model: ModelConfig{
			URL: envString("MODEL_URL", "http://localhost:8000"),
		},
		Detector: DetectorConfig{
			Mode:             envString("DETECTOR_MODE", "precise"),
			CascadePath:      envString("PIGO_CASCADE", "data/facefinder"),
			MinFaceSize:      envInt("DETECTOR_MIN_FACE_SIZE", d.Detector.MinFaceSize),
			ShiftFactor:      d.Detector.ShiftFactor,
			ScaleFactor:      d.Detector.ScaleFactor,
			IoUThreshold:     d.Detector.IoUThreshold,
			QualityThreshold: d.Detector.QualityThreshold,
		},
		Recognition: RecognitionConfig{
			Threshold:     envFloat("RECOGNIZE_THRESHOLD", d.Recognition.Threshold),
			InputSize:     envInt("MODEL_INPUT_SIZE", d.Recognition.InputSize),
			DescriptorDim: envInt("DESCRIPTOR_DIM", d.Recognition.DescriptorDim),
		},
	}
}
