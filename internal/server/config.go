package server

import (
	"os"
	"strconv"
	"time"
)

// Config is the render service configuration, read from the environment.
type Config struct {
	Port         string
	GalleryDB    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// RenderTimeout bounds one capture including bitmap fetches.
	RenderTimeout time.Duration
	// MaxScale caps the ?scale= of /render.
	MaxScale float64
	BodyLimit int
}

// LoadConfig reads the configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Port:          getEnv("PORT", "3000"),
		GalleryDB:     getEnv("GALLERY_DB_PATH", "gallery.db"),
		ReadTimeout:   time.Duration(getEnvAsInt("READ_TIMEOUT", 10)) * time.Second,
		WriteTimeout:  time.Duration(getEnvAsInt("WRITE_TIMEOUT", 30)) * time.Second,
		RenderTimeout: time.Duration(getEnvAsInt("RENDER_TIMEOUT", 60)) * time.Second,
		MaxScale:      float64(getEnvAsInt("MAX_SCALE", 4)),
		BodyLimit:     getEnvAsInt("BODY_LIMIT_MB", 64) << 20,
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}
