package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Observed page (exactly one of PageURL / PageFile)
	PageURL           string        // messaging page fetched over HTTP
	PageFile          string        // saved page on disk, watched for writes
	PageTimeout       time.Duration // HTTP fetch timeout (default: 10s)
	ScanMode          string        // "full" | "incremental"
	ContainerSelector string        // CSS selector of the message list (incremental mode)
	MessageSelector   string        // CSS selector of one message (incremental mode)
	PollInterval      time.Duration // snapshot polling period (default: 10s)
	RescanPerSecond   float64       // max rescans per second (default: 1)
	SelectorMaxWait   time.Duration // give up waiting for the container (default: 0 = never)

	// Ingestion
	Classifier      string        // "blocklist" | "keyword"
	RulesFile       string        // optional YAML override of the domain/keyword lists
	WriterQueueSize int           // pending storage mutations (default: 64)
	BadgeInterval   time.Duration // active count refresh period (default: 1m)

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Access restrictions
	AllowedHosts          []string // optional, restrict access to specific Host headers
	AllowedCIDRS          []string // optional, restrict access to specific IP (e.g. "1.2.3.4, 5.6.7.8")
	AllowedOrigins        []string // CORS origins (e.g. "chrome-extension://abc...")
	TrustProxy            bool     // true => trust X-Forwarded-For headers
	RateLimitBurst        int      // requests allowed in a burst per client IP
	RateLimitRefillPerMin int      // tokens refilled per client IP per minute
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("STREAMLINKS_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("STREAMLINKS_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("STREAMLINKS_LOG_LEVEL", "info"),
		PrettyLog: mustBool("STREAMLINKS_PRETTY_LOG", true),

		// Page
		PageURL:           getenv("STREAMLINKS_PAGE_URL", ""),
		PageFile:          getenv("STREAMLINKS_PAGE_FILE", ""),
		PageTimeout:       mustDuration("STREAMLINKS_PAGE_TIMEOUT", 10*time.Second),
		ScanMode:          strings.ToLower(getenv("STREAMLINKS_SCAN_MODE", "full")),
		ContainerSelector: getenv("STREAMLINKS_CONTAINER_SELECTOR", ""),
		MessageSelector:   getenv("STREAMLINKS_MESSAGE_SELECTOR", ""),
		PollInterval:      mustDuration("STREAMLINKS_POLL_INTERVAL", 10*time.Second),
		RescanPerSecond:   getenvFloat("STREAMLINKS_RESCAN_PER_SECOND", 1),
		SelectorMaxWait:   mustDuration("STREAMLINKS_SELECTOR_MAX_WAIT", 0),

		// Ingestion
		Classifier:      strings.ToLower(getenv("STREAMLINKS_CLASSIFIER", "blocklist")),
		RulesFile:       getenv("STREAMLINKS_RULES_FILE", ""),
		WriterQueueSize: getenvInt("STREAMLINKS_WRITER_QUEUE_SIZE", 64),
		BadgeInterval:   mustDuration("STREAMLINKS_BADGE_INTERVAL", time.Minute),

		// Redis settings
		RedisAddr:             requireEnv("STREAMLINKS_REDIS_ADDR"),
		RedisUser:             getenv("STREAMLINKS_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("STREAMLINKS_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("STREAMLINKS_REDIS_PASSWORD", ""),
		RedisDB:               requireEnvInt("STREAMLINKS_REDIS_DB"),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts:          splitAndTrim(getenv("STREAMLINKS_ALLOWED_HOSTS", "")),
		AllowedCIDRS:          parseAllowedIPs(getenv("STREAMLINKS_ALLOWED_CIDRS", "")),
		AllowedOrigins:        splitAndTrim(getenv("STREAMLINKS_ALLOWED_ORIGINS", "chrome-extension://*")),
		TrustProxy:            mustBool("STREAMLINKS_TRUST_PROXY", false),
		RateLimitBurst:        getenvInt("STREAMLINKS_RATE_LIMIT_BURST", 30),
		RateLimitRefillPerMin: getenvInt("STREAMLINKS_RATE_LIMIT_REFILL", 120),
	}

	if err := cfg.validate(); err != nil {
		panic(fmt.Sprintf("❌ FATAL: %v", err))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func (c *Config) validate() error {
	if c.RedisPasswordRequired && c.RedisPassword == "" {
		return fmt.Errorf("STREAMLINKS_REDIS_PASSWORD is required when STREAMLINKS_REDIS_PASSWORD_REQUIRED=true")
	}

	switch {
	case c.PageURL == "" && c.PageFile == "":
		return fmt.Errorf("one of STREAMLINKS_PAGE_URL or STREAMLINKS_PAGE_FILE must be set")
	case c.PageURL != "" && c.PageFile != "":
		return fmt.Errorf("STREAMLINKS_PAGE_URL and STREAMLINKS_PAGE_FILE are mutually exclusive")
	}

	if c.ScanMode != "full" && c.ScanMode != "incremental" {
		return fmt.Errorf("invalid STREAMLINKS_SCAN_MODE %q (want full or incremental)", c.ScanMode)
	}
	if c.Classifier != "blocklist" && c.Classifier != "keyword" {
		return fmt.Errorf("invalid STREAMLINKS_CLASSIFIER %q (want blocklist or keyword)", c.Classifier)
	}
	return nil
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
