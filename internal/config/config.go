package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "strings"
    "time"

    "github.com/joho/godotenv"

    "github.com/iliyamo/ajali/internal/database"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
    Env            string // application environment (e.g. "dev", "prod")
    Port           string // HTTP port to listen on
    DBUser         string // database username
    DBPass         string // database password (optional)
    DBHost         string // database host address
    DBPort         string // database port number
    DBName         string // database name
    JWTSecret      string // secret used to sign JWTs
    AccessTTLMin   int    // access token time-to-live in minutes
    RefreshTTLDays int    // refresh token time-to-live in days
    BcryptCost     int    // bcrypt cost for password hashing

    UploadDir      string   // root directory for uploaded media
    MaxUploadMB    int      // per-file upload limit in megabytes
    CORSOrigins    []string // allowed browser origins
    LogLevel       string   // debug | info | warn | error
    MigrateOnStart bool     // apply embedded migrations before serving

    StrictTransitions bool // enforce the report transition table

    NotifyBackend         string // "log" or "rabbitmq"
    RabbitMQURL           string // broker URL for notifications
    NotifyConsumerEnabled bool   // run the notification consumer in-process
    NotificationLogPath   string // where the consumer appends events
}

// LoadDotEnv reads a .env file when one exists. Real environment variables
// win over the file.
func LoadDotEnv(paths ...string) {
    if err := godotenv.Load(paths...); err != nil && !os.IsNotExist(err) {
        log.Printf("config: .env not loaded: %v", err)
    }
}

// Load reads configuration values from environment variables and returns a
// Config. Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),
        Port:           strconv.Itoa(mustInt("APP_PORT")),
        DBUser:         must("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"), // empty allowed
        DBHost:         must("DB_HOST"),
        DBPort:         must("DB_PORT"),
        DBName:         must("DB_NAME"),
        JWTSecret:      must("JWT_SECRET"),
        AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 60),
        RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 30),
        BcryptCost:     envInt("BCRYPT_COST", 12),

        UploadDir:      envStr("UPLOAD_DIR", "uploads"),
        MaxUploadMB:    envInt("MAX_UPLOAD_MB", 16),
        CORSOrigins:    envList("CORS_ORIGINS", []string{"http://localhost:3000"}),
        LogLevel:       strings.ToLower(envStr("LOG_LEVEL", "info")),
        MigrateOnStart: envBool("MIGRATE_ON_START", false),

        StrictTransitions: envBool("STRICT_TRANSITIONS", false),

        NotifyBackend:         strings.ToLower(envStr("NOTIFY_BACKEND", "log")),
        RabbitMQURL:           firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL")),
        NotifyConsumerEnabled: envBool("NOTIFY_CONSUMER_ENABLED", false),
        NotificationLogPath:   envStr("NOTIFICATION_LOG_PATH", "logs/notifications.log"),
    }
}

// LoadDatabase reads only the database variables; the migrate and admin
// commands need nothing else.
func LoadDatabase() database.Params {
    return database.Params{
        User: must("DB_USER"),
        Pass: os.Getenv("DB_PASS"),
        Host: must("DB_HOST"),
        Port: must("DB_PORT"),
        Name: must("DB_NAME"),
    }
}

// Database returns the connection parameters of c.
func (c Config) Database() database.Params {
    return database.Params{User: c.DBUser, Pass: c.DBPass, Host: c.DBHost, Port: c.DBPort, Name: c.DBName}
}

func (c Config) AccessTTL() time.Duration  { return time.Duration(c.AccessTTLMin) * time.Minute }
func (c Config) RefreshTTL() time.Duration { return time.Duration(c.RefreshTTLDays) * 24 * time.Hour }
func (c Config) MaxUploadBytes() int64     { return int64(c.MaxUploadMB) << 20 }

// must retrieves the value of a required environment variable. If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}

func envList(k string, d []string) []string {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    var out []string
    for _, p := range strings.Split(v, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}

func firstNonEmpty(vs ...string) string {
    for _, v := range vs {
        if v != "" {
            return v
        }
    }
    return ""
}
