package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store drivers understood by the gateway.
const (
	StoreDriverMemory   = "memory"
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverRedis    = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Store     StoreConfig
	Database  DatabaseConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Portal    PortalConfig
	Mutations MutationsConfig
	CORS      CORSConfig
	Log       LogConfig
	Exports   ExportsConfig
	Docs      DocsConfig
}

// StoreConfig selects the document store backing every screen.
type StoreConfig struct {
	Driver   string
	SeedFile string
	Migrate  bool
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host      string
	Port      int
	Password  string
	DB        int
	KeyPrefix string
}

// PortalConfig tunes the screen lifecycle.
type PortalConfig struct {
	UserID              string
	ScreenLoadTimeout   time.Duration
	MutationTimeout     time.Duration
	PersistMembership   bool
	PersistHelpRequests bool
	SessionTTL          time.Duration
}

// MutationsConfig sizes the background writer pool.
type MutationsConfig struct {
	Workers    int
	BufferSize int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ExportsConfig controls screen exports and their signed download links.
type ExportsConfig struct {
	Enabled       bool
	Dir           string
	SigningSecret string
	URLTTL        time.Duration
	RetentionTTL  time.Duration
}

// DocsConfig toggles the swagger UI.
type DocsConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Store = StoreConfig{
		Driver:   strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER"))),
		SeedFile: v.GetString("STORE_SEED_FILE"),
		Migrate:  v.GetBool("STORE_MIGRATE"),
	}
	switch cfg.Store.Driver {
	case StoreDriverMemory, StoreDriverPostgres, StoreDriverSQLite, StoreDriverRedis:
	default:
		return nil, errors.New("unsupported STORE_DRIVER: " + cfg.Store.Driver)
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.SQLite = SQLiteConfig{Path: v.GetString("SQLITE_PATH")}

	cfg.Redis = RedisConfig{
		Host:      v.GetString("REDIS_HOST"),
		Port:      v.GetInt("REDIS_PORT"),
		Password:  v.GetString("REDIS_PASSWORD"),
		DB:        v.GetInt("REDIS_DB"),
		KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
	}

	cfg.Portal = PortalConfig{
		UserID:              v.GetString("PORTAL_USER_ID"),
		ScreenLoadTimeout:   parseDuration(v.GetString("SCREEN_LOAD_TIMEOUT"), 10*time.Second),
		MutationTimeout:     parseDuration(v.GetString("MUTATION_TIMEOUT"), 10*time.Second),
		PersistMembership:   v.GetBool("PORTAL_PERSIST_MEMBERSHIP"),
		PersistHelpRequests: v.GetBool("PORTAL_PERSIST_HELP"),
		SessionTTL:          parseDuration(v.GetString("PORTAL_SESSION_TTL"), 30*time.Minute),
	}
	if strings.TrimSpace(cfg.Portal.UserID) == "" {
		cfg.Portal.UserID = "current_user"
	}

	cfg.Mutations = MutationsConfig{
		Workers:    v.GetInt("MUTATION_WORKERS"),
		BufferSize: v.GetInt("MUTATION_BUFFER_SIZE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Exports = ExportsConfig{
		Enabled:       v.GetBool("ENABLE_EXPORTS"),
		Dir:           v.GetString("EXPORTS_DIR"),
		SigningSecret: v.GetString("EXPORTS_SIGNING_SECRET"),
		URLTTL:        parseDuration(v.GetString("EXPORTS_URL_TTL"), 15*time.Minute),
		RetentionTTL:  parseDuration(v.GetString("EXPORTS_RETENTION"), 24*time.Hour),
	}
	cfg.Docs = DocsConfig{Enabled: v.GetBool("ENABLE_DOCS")}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("STORE_DRIVER", StoreDriverMemory)
	v.SetDefault("STORE_SEED_FILE", "")
	v.SetDefault("STORE_MIGRATE", true)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "student_portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("SQLITE_PATH", "./portal.db")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "portal")

	v.SetDefault("PORTAL_USER_ID", "current_user")
	v.SetDefault("SCREEN_LOAD_TIMEOUT", "10s")
	v.SetDefault("MUTATION_TIMEOUT", "10s")
	v.SetDefault("PORTAL_PERSIST_MEMBERSHIP", true)
	v.SetDefault("PORTAL_PERSIST_HELP", true)
	v.SetDefault("PORTAL_SESSION_TTL", "30m")

	v.SetDefault("MUTATION_WORKERS", 4)
	v.SetDefault("MUTATION_BUFFER_SIZE", 64)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_EXPORTS", true)
	v.SetDefault("EXPORTS_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNING_SECRET", "change-me")
	v.SetDefault("EXPORTS_URL_TTL", "15m")
	v.SetDefault("EXPORTS_RETENTION", "24h")
	v.SetDefault("ENABLE_DOCS", true)
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
