package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the tutoring orchestration core.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	JobTTL              time.Duration
	JobReclaimInterval  time.Duration
	SessionIdleTimeout  time.Duration
	OrchestratorTimeout time.Duration

	RouterHTTPURL string
	RouterTimeout time.Duration

	SafetyHTTPURL string
	SafetyTimeout time.Duration

	SpecialistMathURL    string
	SpecialistHistoryURL string
	SpecialistEnglishURL string

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:             envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:     envOrDefault("APP_METRICS_NAMESPACE", "tutorcore"),
		AllowAnyOrigin:       false,
		JobTTL:               time.Hour,
		JobReclaimInterval:   300 * time.Second,
		SessionIdleTimeout:   30 * time.Minute,
		OrchestratorTimeout:  20 * time.Second,
		RouterHTTPURL:        stringsTrimSpace("ROUTER_HTTP_URL"),
		RouterTimeout:        2 * time.Second,
		SafetyHTTPURL:        stringsTrimSpace("SAFETY_HTTP_URL"),
		SafetyTimeout:        2 * time.Second,
		SpecialistMathURL:    stringsTrimSpace("SPECIALIST_MATH_URL"),
		SpecialistHistoryURL: stringsTrimSpace("SPECIALIST_HISTORY_URL"),
		SpecialistEnglishURL: stringsTrimSpace("SPECIALIST_ENGLISH_URL"),
		DatabaseURL:          stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:      15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.JobTTL, err = durationFromEnv("JOB_TTL", cfg.JobTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.JobReclaimInterval, err = durationFromEnv("JOB_RECLAIM_INTERVAL", cfg.JobReclaimInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionIdleTimeout, err = durationFromEnv("APP_SESSION_IDLE_TIMEOUT", cfg.SessionIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.OrchestratorTimeout, err = durationFromEnv("ORCHESTRATOR_TIMEOUT", cfg.OrchestratorTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RouterTimeout, err = durationFromEnv("ROUTER_TIMEOUT", cfg.RouterTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SafetyTimeout, err = durationFromEnv("SAFETY_TIMEOUT", cfg.SafetyTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.JobTTL <= 0 {
		return Config{}, fmt.Errorf("JOB_TTL must be positive")
	}
	if cfg.SessionIdleTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_IDLE_TIMEOUT must be at least 5s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
	return b, nil
}
