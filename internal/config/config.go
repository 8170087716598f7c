package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types

    "github.com/joho/godotenv"       // godotenv loads an optional .env file
    "github.com/shopspring/decimal" // decimal holds currency settings exactly
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Currency settings are decimals so they never
// pass through a float.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    DBAutoMigrate  bool   // apply the schema on startup
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time‑to‑live in minutes
    RefreshTTLDays int    // refresh token time‑to‑live in days
    BcryptCost     int    // bcrypt cost for password hashing

    StartingBalance decimal.Decimal // balance provisioned at registration
    NearTolerance   float64         // "same location" radius in degrees
    CreatorShare    decimal.Decimal // fraction of each transaction paid to the original creator

    RabbitMQURL string // change feed broker; empty disables publishing
    SentryDSN   string // optional sentry project DSN
    LogDebug    bool   // development logger at debug level
}

// Load reads configuration values from environment variables and returns a
// Config.  A .env file in the working directory is loaded first when
// present; variables already set in the environment win.  Required
// variables are enforced by must() and missing values cause the program to
// exit with a fatal log message.
func Load() Config {
    _ = godotenv.Load() // a missing .env is not an error

    return Config{
        Env:            must("APP_ENV"),                   // environment (dev/test/prod)
        Port:           must("APP_PORT"),                  // port to bind the HTTP server
        DBUser:         must("DB_USER"),                   // database user
        DBPass:         os.Getenv("DB_PASS"),              // database password (empty allowed)
        DBHost:         must("DB_HOST"),                   // database host
        DBPort:         must("DB_PORT"),                   // database port
        DBName:         must("DB_NAME"),                   // database name
        DBAutoMigrate:  envBool("DB_AUTO_MIGRATE", false), // run database.Migrate on boot
        JWTSecret:      must("JWT_SECRET"),                // secret used for signing JWTs
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),   // TTL for access tokens in minutes
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"), // TTL for refresh tokens in days
        BcryptCost:     mustInt("BCRYPT_COST"),            // bcrypt cost factor

        StartingBalance: envDecimal("STARTING_BALANCE", decimal.NewFromInt(300)),
        NearTolerance:   envFloat("NEAR_TOLERANCE_DEG", 0.0001),
        CreatorShare:    envShare("CREATOR_SHARE", decimal.NewFromFloat(0.5)),

        RabbitMQURL: rabbitURL(),
        SentryDSN:   os.Getenv("SENTRY_DSN"),
        LogDebug:    envBool("LOG_DEBUG", false),
    }
}

// rabbitURL honours RABBITMQ_URL and the older AMQP_URL spelling.
func rabbitURL() string {
    if v := os.Getenv("RABBITMQ_URL"); v != "" {
        return v
    }
    return os.Getenv("AMQP_URL")
}

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

// envDecimal parses an optional decimal variable.  Malformed or
// non-positive values are fatal since they would corrupt balances.
func envDecimal(key string, def decimal.Decimal) decimal.Decimal {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    d, err := decimal.NewFromString(v)
    if err != nil || !d.IsPositive() {
        log.Fatalf("invalid decimal for %s: %q", key, v)
    }
    return d
}

// envShare is envDecimal restricted to (0, 1].  A larger share would pay
// the creator more than the transaction cost.
func envShare(key string, def decimal.Decimal) decimal.Decimal {
    d := envDecimal(key, def)
    if d.GreaterThan(decimal.NewFromInt(1)) {
        log.Fatalf("invalid share for %s: %s exceeds 1", key, d)
    }
    return d
}

func envFloat(key string, def float64) float64 {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    f, err := strconv.ParseFloat(v, 64)
    if err != nil || f <= 0 {
        log.Fatalf("invalid float for %s: %q", key, v)
    }
    return f
}
