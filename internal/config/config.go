package config // package config loads runtime configuration from environment variables

import (
	"log"
	"os"
	"strconv"
)

// Config holds every runtime setting the server needs. Each field maps to a
// single environment variable. Strings are used for identifiers and secrets,
// ints for durations and costs.
type Config struct {
	Env          string // application environment (dev/test/prod)
	Port         string // HTTP port to listen on
	DBUser       string // database username
	DBPass       string // database password (optional)
	DBHost       string // database host address
	DBPort       string // database port number
	DBName       string // database name
	JWTSecret    string // secret used to sign access tokens
	AccessTTLMin int    // access token time-to-live in minutes; 0 issues tokens without expiry
	BcryptCost   int    // bcrypt cost for password hashing
	UploaderURL  string // endpoint of the external asset host; empty disables avatar uploads
}

// Load reads configuration from the environment. Required variables are
// enforced by must(); missing values abort startup with a fatal log message.
func Load() Config {
	return Config{
		Env:          must("APP_ENV"),
		Port:         must("APP_PORT"),
		DBUser:       must("DB_USER"),
		DBPass:       os.Getenv("DB_PASS"),
		DBHost:       must("DB_HOST"),
		DBPort:       must("DB_PORT"),
		DBName:       must("DB_NAME"),
		JWTSecret:    must("JWT_SECRET"),
		AccessTTLMin: mustInt("ACCESS_TOKEN_TTL_MIN"),
		BcryptCost:   mustInt("BCRYPT_COST"),
		UploaderURL:  os.Getenv("UPLOADER_URL"),
	}
}

// must retrieves a required environment variable or exits the process.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but parses the value as an integer.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
