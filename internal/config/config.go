package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Simulator SimulatorConfig
	Session   SessionConfig
	Theme     ThemeConfig
	Tracing   TracingConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

// SimulatorConfig tunes the mock collaborators standing in for the absent backend.
type SimulatorConfig struct {
	SubmitLatency          time.Duration
	LiveDetectionLatency   time.Duration
	UploadDetectionLatency time.Duration
	DashboardLatency       time.Duration
	CameraDevices          []string
	CameraPermission       bool
	FailSubmitEmail        string
}

type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

type SessionConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
	NoticeTTL       time.Duration
	MaxUploadBytes  int
}

type ThemeConfig struct {
	DarkMode bool        `json:"darkMode"`
	Colors   ThemeColors `json:"colors"`
}

type ThemeColors struct {
	Primary       string `json:"primary"`
	Secondary     string `json:"secondary"`
	Background    string `json:"background"`
	Surface       string `json:"surface"`
	Text          string `json:"text"`
	TextSecondary string `json:"textSecondary"`
	Border        string `json:"border"`
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3001"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
		},
		Simulator: SimulatorConfig{
			SubmitLatency:          getEnvAsDuration("SUBMIT_LATENCY", 2*time.Second),
			LiveDetectionLatency:   getEnvAsDuration("DETECTION_LATENCY", 2*time.Second),
			UploadDetectionLatency: getEnvAsDuration("UPLOAD_DETECTION_LATENCY", 3*time.Second),
			DashboardLatency:       getEnvAsDuration("DASHBOARD_LATENCY", 1500*time.Millisecond),
			CameraDevices:          getEnvAsList("CAMERA_DEVICES", []string{"default"}),
			CameraPermission:       getEnvAsBool("CAMERA_PERMISSION", true),
			FailSubmitEmail:        getEnv("FAIL_SUBMIT_EMAIL", ""),
		},
		Session: SessionConfig{
			TTL:             getEnvAsDuration("SESSION_TTL", 30*time.Minute),
			CleanupInterval: getEnvAsDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute),
			NoticeTTL:       getEnvAsDuration("NOTICE_TTL", 3*time.Second),
			MaxUploadBytes:  getEnvAsInt("MAX_UPLOAD_BYTES", 50*1024*1024),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "helmet-compliance-backend"),
		},
		Theme: ThemeConfig{
			DarkMode: getEnvAsBool("THEME_DARK_MODE", false),
			Colors: ThemeColors{
				Primary:       getEnv("THEME_PRIMARY", "#007bff"),
				Secondary:     getEnv("THEME_SECONDARY", "#dc3545"),
				Background:    getEnv("THEME_BACKGROUND", "#ffffff"),
				Surface:       getEnv("THEME_SURFACE", "#f8f9fa"),
				Text:          getEnv("THEME_TEXT", "#000000"),
				TextSecondary: getEnv("THEME_TEXT_SECONDARY", "#666666"),
				Border:        getEnv("THEME_BORDER", "#dee2e6"),
			},
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(strValue, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
