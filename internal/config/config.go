package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	Env         string
	AgentURL    string
	AgentID     string
	SeedDemo    bool
	AutoMigrate bool
	StepDelay   time.Duration
}

func Load() Config {
	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		Env:         getenv("ENV", "dev"),
		AgentURL:    getenv("AGENT_URL", ""),
		AgentID:     getenv("AGENT_ID", ""),
		SeedDemo:    getenvBool("SEED_DEMO", true),
		AutoMigrate: getenvBool("AUTO_MIGRATE", true),
		StepDelay:   time.Duration(getenvInt("SIMULATE_STEP_DELAY_MS", 0)) * time.Millisecond,
	}
}

func getenv(key, defaultValue string) string {
	v := os.Getenv(key)
	if v != "" {
		return v
	}
	return defaultValue
}

func getenvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getenvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return parsed
}
