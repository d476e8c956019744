package config // package config loads application configuration from environment variables

import (
    "log"      // log is used to report configuration errors and halt execution
    "os"       // os provides access to environment variables
    "strconv"  // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations and costs.
type Config struct {
    Env          string // application environment (e.g. "development", "production")
    Port         string // HTTP port to listen on
    MongoURI     string // MongoDB connection string
    MongoDB      string // database name
    JWTSecret    string // secret used to sign JWTs
    JWTTTLMin    int    // session token time‑to‑live in minutes
    CookieTTLMin int    // session cookie time‑to‑live in minutes
    BcryptCost   int    // bcrypt cost for password hashing
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:          must("APP_ENV"),            // environment (development/production)
        Port:         must("APP_PORT"),           // port to bind the HTTP server
        MongoURI:     must("MONGO_URI"),          // MongoDB connection string
        MongoDB:      must("MONGO_DB"),           // database name
        JWTSecret:    must("JWT_SECRET"),         // secret used for signing JWTs
        JWTTTLMin:    mustInt("JWT_TTL_MIN"),     // TTL for session tokens in minutes
        CookieTTLMin: mustInt("COOKIE_TTL_MIN"),  // TTL for the session cookie in minutes
        BcryptCost:   mustInt("BCRYPT_COST"),     // bcrypt cost factor
    }
}

// Production reports whether the application runs in production mode.  Error
// responses and cookie security are keyed off this flag.
func (c Config) Production() bool { return c.Env == "production" }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
