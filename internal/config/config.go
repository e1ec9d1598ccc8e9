package config // package config loads engine configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
	"strings" // strings splits list-valued variables
)

// Config holds the runtime configuration shared by both binaries. Each field
// corresponds to an environment variable. Scrape tunables live in a separate
// ScrapeConfig so the orchestrator receives an explicit object instead of
// reading ambient globals.
type Config struct {
	Env       string   // application environment (e.g. "dev", "prod")
	Port      string   // HTTP port to listen on
	DBUser    string   // database username
	DBPass    string   // database password (optional)
	DBHost    string   // database host address
	DBPort    string   // database port number
	DBName    string   // database name
	TenantIDs []uint64 // tenants the scheduler drives (TENANT_IDS, comma-separated)
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values cause
// the program to exit with a fatal log message.
func Load() Config {
	return Config{
		Env:       must("APP_ENV"),      // environment (dev/test/prod)
		Port:      must("APP_PORT"),     // port to bind the HTTP server
		DBUser:    must("DB_USER"),      // database user
		DBPass:    os.Getenv("DB_PASS"), // database password (empty allowed)
		DBHost:    must("DB_HOST"),      // database host
		DBPort:    must("DB_PORT"),      // database port
		DBName:    must("DB_NAME"),      // database name
		TenantIDs: tenantList(os.Getenv("TENANT_IDS")),
	}
}

// tenantList parses a comma-separated list of tenant ids. Malformed entries
// are fatal: a scheduler silently skipping a tenant is worse than failing at
// startup.
func tenantList(s string) []uint64 {
	var ids []uint64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			log.Fatalf("invalid tenant id in TENANT_IDS: %q", part)
		}
		ids = append(ids, id)
	}
	return ids
}

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}
