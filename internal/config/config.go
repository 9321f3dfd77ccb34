// internal/config/config.go

package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Data source kinds
const (
	SourceAPI      = "api"
	SourcePostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Environment string
	Server      ServerConfig
	Source      string
	API         APIConfig
	Database    DatabaseConfig
	NATS        NATSConfig
	Sessions    SessionsConfig
	Render      RenderConfig
	View        ViewConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// APIConfig holds the upstream results API configuration
type APIConfig struct {
	BaseURL string
	// Timeout of zero leaves requests bounded only by their context
	Timeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// NATSConfig holds NATS configuration. An empty URL disables event
// publishing.
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
	EventsTopic    string
}

// SessionsConfig holds map session lifecycle configuration
type SessionsConfig struct {
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	MaxSessions   int
}

// RenderConfig holds the results layer and camera settings
type RenderConfig struct {
	ChunkBudget      time.Duration
	ChunkPause       time.Duration
	MaxChunkSize     int
	HeatCeilingRatio float64
	HeatMinOpacity   float64
	HeatRadius       int
	HeatBlur         int
	HeatMaxZoom      int
	FitPadding       int
	FitMaxZoom       int
	ClusterRadius    float64
	ClusterMaxZoom   int
}

// ViewConfig holds the landing view and interaction settings
type ViewConfig struct {
	DefaultViewEnabled bool
	DefaultYear        int
	DefaultOffice      string
	DefaultCandidate   int
	FlyToZoom          int
	SearchMinLength    int
}

// Load loads configuration from a local .env file, when present, and
// the environment
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Warning: could not load .env file: %v", err)
	}

	config := Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Source: strings.ToLower(getEnv("SOURCE", SourceAPI)),
		API: APIConfig{
			BaseURL: getEnv("API_BASE_URL", "http://localhost:3000/api/"),
			Timeout: getEnvAsDuration("API_TIMEOUT", 0),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "eleicoes"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", ""),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
			EventsTopic:    getEnv("NATS_EVENTS_TOPIC", "mapa.sessions"),
		},
		Sessions: SessionsConfig{
			IdleTimeout:   getEnvAsDuration("SESSION_IDLE_TIMEOUT", 10*time.Minute),
			SweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 1*time.Minute),
			MaxSessions:   getEnvAsInt("SESSION_MAX", 500),
		},
		Render: RenderConfig{
			ChunkBudget:      getEnvAsDuration("RENDER_CHUNK_BUDGET", 200*time.Millisecond),
			ChunkPause:       getEnvAsDuration("RENDER_CHUNK_PAUSE", 50*time.Millisecond),
			MaxChunkSize:     getEnvAsInt("RENDER_MAX_CHUNK_SIZE", 500),
			HeatCeilingRatio: getEnvAsFloat("RENDER_HEAT_CEILING_RATIO", 0.4),
			HeatMinOpacity:   getEnvAsFloat("RENDER_HEAT_MIN_OPACITY", 0.2),
			HeatRadius:       getEnvAsInt("RENDER_HEAT_RADIUS", 25),
			HeatBlur:         getEnvAsInt("RENDER_HEAT_BLUR", 20),
			HeatMaxZoom:      getEnvAsInt("RENDER_HEAT_MAX_ZOOM", 12),
			FitPadding:       getEnvAsInt("RENDER_FIT_PADDING", 50),
			FitMaxZoom:       getEnvAsInt("RENDER_FIT_MAX_ZOOM", 12),
			ClusterRadius:    getEnvAsFloat("RENDER_CLUSTER_RADIUS", 80),
			ClusterMaxZoom:   getEnvAsInt("RENDER_CLUSTER_MAX_ZOOM", 17),
		},
		View: ViewConfig{
			DefaultViewEnabled: getEnvAsBool("VIEW_DEFAULT_ENABLED", true),
			DefaultYear:        getEnvAsInt("VIEW_DEFAULT_YEAR", 2022),
			DefaultOffice:      getEnv("VIEW_DEFAULT_OFFICE", "PRESIDENTE"),
			DefaultCandidate:   getEnvAsInt("VIEW_DEFAULT_CANDIDATE", 22),
			FlyToZoom:          getEnvAsInt("VIEW_FLY_TO_ZOOM", 15),
			SearchMinLength:    getEnvAsInt("VIEW_SEARCH_MIN_LENGTH", 2),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	switch config.Source {
	case SourceAPI:
		u, err := url.Parse(config.API.BaseURL)
		if err != nil || !u.IsAbs() {
			return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", config.API.BaseURL)
		}
	case SourcePostgres:
		if config.Database.Host == "" || config.Database.Database == "" {
			return fmt.Errorf("postgres source requires DB_HOST and DB_NAME")
		}
	default:
		return fmt.Errorf("unknown SOURCE %q", config.Source)
	}

	if config.Render.ChunkBudget <= 0 {
		return fmt.Errorf("render chunk budget must be positive")
	}
	if config.Render.ChunkPause < 0 {
		return fmt.Errorf("render chunk pause must not be negative")
	}
	if config.Render.MaxChunkSize <= 0 {
		return fmt.Errorf("render max chunk size must be positive")
	}
	if config.Render.HeatCeilingRatio <= 0 || config.Render.HeatCeilingRatio > 1 {
		return fmt.Errorf("heat ceiling ratio must be in (0,1], got %v", config.Render.HeatCeilingRatio)
	}
	if config.Render.ClusterRadius <= 0 {
		return fmt.Errorf("cluster radius must be positive")
	}

	if config.Sessions.IdleTimeout > 0 && config.Sessions.SweepInterval <= 0 {
		return fmt.Errorf("session sweep interval must be positive when an idle timeout is set")
	}

	if config.View.DefaultViewEnabled {
		if config.View.DefaultYear != 2018 && config.View.DefaultYear != 2022 {
			return fmt.Errorf("default view year %d has no results", config.View.DefaultYear)
		}
		if config.View.DefaultOffice == "" {
			return fmt.Errorf("default view office must be set")
		}
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
