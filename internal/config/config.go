package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values. Each field corresponds
// to an environment variable. Deadlines and TTLs are durations so the
// rest of the code never re-parses them.
type Config struct {
	Env            string        // application environment (e.g. "dev", "prod")
	Port           string        // HTTP port to listen on
	DBUser         string        // database username
	DBPass         string        // database password (optional)
	DBHost         string        // database host address
	DBPort         string        // database port number
	DBName         string        // database name
	JWTSecret      string        // secret the platform gateway signs tokens with
	SweepSecret    string        // shared secret for /internal routes
	AMQPURL        string        // broker URL for transition and notification events
	ProcessingSLA  time.Duration // operator action deadline for new reservations
	OfferTTL       time.Duration // waitlist offer validity window
	AcknowledgeSLA time.Duration // quote acknowledge deadline
	QuoteSLA       time.Duration // quote send deadline after acknowledgement
	SweepInterval  time.Duration // in-process sweeper cadence (0 disables the ticker)
	SweepBatch     int           // max rows per sweep pass
}

// Load reads configuration from the environment. Required variables are
// enforced by must() and missing values cause the program to exit with a
// fatal log message.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		SweepSecret:    must("SWEEP_SECRET"),
		AMQPURL:        os.Getenv("AMQP_URL"),
		ProcessingSLA:  duration("PROCESSING_SLA", 24*time.Hour),
		OfferTTL:       duration("WAITLIST_OFFER_TTL", 15*time.Minute),
		AcknowledgeSLA: duration("QUOTE_ACK_SLA", 48*time.Hour),
		QuoteSLA:       duration("QUOTE_SEND_SLA", 7*24*time.Hour),
		SweepInterval:  duration("SWEEP_INTERVAL", time.Minute),
		SweepBatch:     intval("SWEEP_BATCH", 200),
	}
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and
// exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func duration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, s)
	}
	return d
}

func intval(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
