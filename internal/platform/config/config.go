package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. FromEnv keeps main lean;
// anything unset falls back to development defaults (memory stores, no
// kafka, no redis).
type Server struct {
	Addr string

	// PostgresDSN selects the durable stores. Empty means in-memory mode.
	PostgresDSN string

	// RedisURL backs the urgent-case snapshot cache. Empty disables it.
	RedisURL string

	// KafkaBrokers and AlertTopic configure escalation alert publishing.
	// No brokers means alerts are logged only.
	KafkaBrokers []string
	AlertTopic   string

	// FullRecomputeInterval is the cadence of the unattended full re-scoring
	// run. UrgentScanInterval is the read-only scan that refreshes the
	// urgent-case snapshot.
	FullRecomputeInterval time.Duration
	UrgentScanInterval    time.Duration

	// RescoreWorkers bounds concurrent per-beneficiary updates in a batch run.
	RescoreWorkers int
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:                  getenv("AIDCHAIN_ADDR", ":8080"),
		PostgresDSN:           os.Getenv("AIDCHAIN_POSTGRES_DSN"),
		RedisURL:              os.Getenv("AIDCHAIN_REDIS_URL"),
		AlertTopic:            getenv("AIDCHAIN_ALERT_TOPIC", "aidchain.priority.escalations"),
		FullRecomputeInterval: getduration("AIDCHAIN_FULL_RECOMPUTE_INTERVAL", 24*time.Hour),
		UrgentScanInterval:    getduration("AIDCHAIN_URGENT_SCAN_INTERVAL", time.Hour),
		RescoreWorkers:        getint("AIDCHAIN_RESCORE_WORKERS", 8),
	}
	if brokers := os.Getenv("AIDCHAIN_KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getint(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
