package server

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"todoapp/internal/domain/errors"
	"todoapp/internal/notify"

	"github.com/rs/zerolog/log"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverMemory   = "memory"
)

type Config struct {
	Addr            string        `json:"addr"`
	Port            int           `json:"port"`
	DBDriver        string        `json:"db_driver"`
	DBStr           string        `json:"db_str"`
	MigratePath     string        `json:"migrate_path"`
	RedisAddr       string        `json:"redis_addr"`
	JWTSecret       string        `json:"jwt_secret"`
	LogLevel        string        `json:"log_level"`
	PurgeSchedule   string        `json:"purge_schedule"`
	CORSOrigins     []string      `json:"cors_origins"`
	RateLimitPerMin int           `json:"rate_limit_per_min"`
	RateLimitBurst  int           `json:"rate_limit_burst"`
	Notify          notify.Config `json:"notify"`
}

const (
	defaultAddr            = "0.0.0.0"
	defaultPort            = 8080
	defaultDBDriver        = DriverPostgres
	defaultDBStr           = "postgresql://shouldbeinVaultuser:shouldbeinVaultpassword@db:5432/tasks?sslmode=disable"
	defaultMigratePath     = "migrations"
	defaultJWTSecret       = "shouldbeinVaultsecret"
	defaultLogLevel        = "info"
	defaultPurgeSchedule   = "@hourly"
	defaultRateLimitPerMin = 30
	defaultRateLimitBurst  = 10
	defaultSiteURL         = "http://localhost:8080"
	defaultMailFrom        = "To-Do App <noreply@todoapp.local>"
)

var defaultCORSOrigins = []string{"http://localhost:3000"}

func DefaultConfig() *Config {
	return &Config{
		Addr:            defaultAddr,
		Port:            defaultPort,
		DBDriver:        defaultDBDriver,
		DBStr:           defaultDBStr,
		MigratePath:     defaultMigratePath,
		JWTSecret:       defaultJWTSecret,
		LogLevel:        defaultLogLevel,
		PurgeSchedule:   defaultPurgeSchedule,
		CORSOrigins:     append([]string(nil), defaultCORSOrigins...),
		RateLimitPerMin: defaultRateLimitPerMin,
		RateLimitBurst:  defaultRateLimitBurst,
		Notify: notify.Config{
			From:    defaultMailFrom,
			SiteURL: defaultSiteURL,
		},
	}
}

// withDefaults fills the zero fields the HTTP layer cannot run without.
func (c Config) withDefaults() Config {
	if c.JWTSecret == "" {
		c.JWTSecret = defaultJWTSecret
	}
	if c.RateLimitPerMin <= 0 {
		c.RateLimitPerMin = defaultRateLimitPerMin
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = defaultRateLimitBurst
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = defaultCORSOrigins
	}
	return c
}

func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Addr, c.Port)
}

type flagValues struct {
	configFile  string
	addr        string
	port        int
	dbDriver    string
	dbStr       string
	dbDSN       string
	migratePath string
	redisAddr   string
	logLevel    string
}

// ReadConfig builds the configuration from the process arguments.
func ReadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load applies defaults, then the JSON file, then the environment, then the
// flags present in args.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("todo", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var fv flagValues
	fs.StringVar(&fv.configFile, "c", "", "path to a JSON config file")
	fs.StringVar(&fv.addr, "addr", defaultAddr, "listen address")
	fs.IntVar(&fv.port, "port", defaultPort, "listen port")
	fs.StringVar(&fv.dbDriver, "dbdriver", defaultDBDriver, "storage driver: postgres, sqlite, mysql or memory")
	fs.StringVar(&fv.dbStr, "dbstr", defaultDBStr, "database connection string")
	fs.StringVar(&fv.dbDSN, "dbdsn", "", "database DSN, takes priority over -dbstr")
	fs.StringVar(&fv.migratePath, "migratepath", defaultMigratePath, "migrations directory")
	fs.StringVar(&fv.redisAddr, "redis", "", "redis address for the statistics cache")
	fs.StringVar(&fv.logLevel, "loglevel", defaultLogLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrConfigInvalidFormat, err)
	}

	cfg := DefaultConfig()
	if err := loadJSONConfig(cfg, fv.configFile); err != nil {
		log.Warn().Err(err).Msg("JSON config ignored")
	}
	applyEnvOverrides(cfg)
	applyFlagOverrides(cfg, fs, fv)
	return cfg, nil
}

func loadJSONConfig(cfg *Config, path string) error {
	if path == "" {
		path = os.Getenv("CONFIG")
	}
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w %s: %v", errors.ErrConfigFileReadFailed, path, err)
	}
	// Decode into a copy so a half-parsed file leaves cfg untouched.
	parsed := *cfg
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrConfigParseFailed, err)
	}
	*cfg = parsed
	log.Info().Str("path", path).Msg("JSON config loaded")
	return nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Addr, "ADDR")
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		switch {
		case err != nil:
			log.Warn().Str("PORT", port).Msg(errors.ErrConfigInvalidFormat.Error())
		case p < 1 || p > 65535:
			log.Warn().Int("PORT", p).Msg("port must be between 1 and 65535")
		default:
			cfg.Port = p
		}
	}
	setString(&cfg.DBDriver, "DB_DRIVER")
	setString(&cfg.DBStr, "DB_STR")
	setString(&cfg.MigratePath, "MIGRATE_PATH")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.PurgeSchedule, "PURGE_SCHEDULE")
	setString(&cfg.Notify.APIKey, "RESEND_API_KEY")
	setString(&cfg.Notify.From, "MAIL_FROM")
	setString(&cfg.Notify.SiteURL, "SITE_URL")
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	if cfg.DBStr == defaultDBStr && cfg.DBDriver == DriverPostgres {
		dbUser := os.Getenv("DB_USER")
		dbPassword := os.Getenv("DB_PASSWORD")
		dbName := os.Getenv("DB_NAME")
		dbHost := os.Getenv("DB_HOST")
		dbPort := os.Getenv("DB_PORT")
		if dbUser != "" && dbPassword != "" && dbName != "" && dbHost != "" && dbPort != "" {
			cfg.DBStr = fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable", dbUser, dbPassword, dbHost, dbPort, dbName)
		}
	}
}

// applyFlagOverrides only applies flags that were given explicitly, so a flag
// default never hides a value from the file or the environment.
func applyFlagOverrides(cfg *Config, fs *flag.FlagSet, fv flagValues) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = fv.addr
		case "port":
			cfg.Port = fv.port
		case "dbdriver":
			cfg.DBDriver = fv.dbDriver
		case "dbstr":
			if fv.dbDSN == "" {
				cfg.DBStr = fv.dbStr
			}
		case "dbdsn":
			cfg.DBStr = fv.dbDSN
		case "migratepath":
			cfg.MigratePath = fv.migratePath
		case "redis":
			cfg.RedisAddr = fv.redisAddr
		case "loglevel":
			cfg.LogLevel = fv.logLevel
		}
	})
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
