package config

import (
	"fmt"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port string

	ModelPath          string
	ModelMetadataPath  string
	OnnxRuntimeLibPath string

	StrokeWidth   int
	ThumbnailSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// TelegramBotToken enables the bot front-end when set.
	TelegramBotToken string
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("ignoring invalid %s=%q, using %d", k, v, def)
		return def
	}
	return n
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	v := getEnv(k, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("ignoring invalid %s=%q, using %s", k, v, def)
		return def
	}
	return d
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8080"),

		ModelPath:          getEnv("MODEL_PATH", "models/digit.onnx"),
		ModelMetadataPath:  getEnv("MODEL_METADATA_PATH", "models/digit_metadata.json"),
		OnnxRuntimeLibPath: getEnv("ONNXRUNTIME_LIB", DefaultLibraryPath()),

		StrokeWidth:   getEnvInt("STROKE_WIDTH", 18),
		ThumbnailSize: getEnvInt("THUMBNAIL_SIZE", 120),

		ReadTimeout:     getEnvDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("WRITE_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
	}
}

// DefaultLibraryPath picks the onnxruntime shared library under ./lib for
// the running platform.
func DefaultLibraryPath() string {
	baseDir := "./lib/"
	libName := "onnxruntime"

	if runtime.GOOS == "windows" {
		return baseDir + libName + ".dll"
	}

	var ext string
	switch runtime.GOOS {
	case "darwin":
		ext = "dylib"
	case "linux":
		ext = "so"
	default:
		return baseDir + libName + "_amd64.so"
	}

	return fmt.Sprintf("%s%s_%s.%s", baseDir, libName, runtime.GOARCH, ext)
}
