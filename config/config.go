package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

// AppConfig holds environment driven configuration values.
// Sensitive data should never have defaults inside code and must be provided via env files or the environment.
type AppConfig struct {
	AppPort        string   `env:"APP_PORT"`
	JWTSecret      string   `env:"JWT_SECRET"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	// Per user limit for claim/spin/open requests
	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE"`
	// Gin framework configuration
	GinMode string `env:"GIN_MODE"`
	GinPath string `env:"GIN_PATH"`
	// Database
	DatabaseURI string `env:"DATABASE_URI"`
	DBHost      string `env:"DB_HOST"`
	DBPort      string `env:"DB_PORT"`
	DBUser      string `env:"DB_USER"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBName      string `env:"DB_NAME"`
	// Transaction tuning for the reward engines
	TxTimeoutSec    int `env:"TX_TIMEOUT_SEC"`
	ConflictRetries int `env:"CONFLICT_RETRIES"`
	// Redis for status caching
	RedisHost      string `env:"REDIS_HOST"`
	RedisPort      int    `env:"REDIS_PORT"`
	RedisDB        int    `env:"REDIS_DB"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	StatusCacheSec int    `env:"STATUS_CACHE_SEC"`
	// Logging configuration
	LogLevel      string `env:"LOG_LEVEL"`
	LogPath       string `env:"LOG_PATH"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS"`
	LogCompress   bool   `env:"LOG_COMPRESS"`
	// Reward curves, level table and catalogs
	RewardsConfigPath string `env:"REWARDS_CONFIG_PATH"`
	// Interval of the expired grant sweeper
	GrantSweepMinutes int `env:"GRANT_SWEEP_MINUTES"`
	// OTLP/HTTP trace export, off unless an endpoint is set
	TraceEndpoint string `env:"TRACE_ENDPOINT"`
	TraceDisabled bool   `env:"TRACE_DISABLED"`
}

// fileConfig mirrors the grouped layout of config/config.json.
type fileConfig struct {
	App struct {
		AppPort            string   `json:"AppPort"`
		JWTSecret          string   `json:"JWTSecret"`
		AllowedOrigins     []string `json:"AllowedOrigins"`
		RateLimitPerMinute int      `json:"RateLimitPerMinute"`
		RewardsConfigPath  string   `json:"RewardsConfigPath"`
		GrantSweepMinutes  int      `json:"GrantSweepMinutes"`
	} `json:"app"`
	Gin struct {
		Mode    string `json:"Mode"`
		LogPath string `json:"LogPath"`
	} `json:"gin"`
	Database struct {
		DatabaseURI     string `json:"DatabaseURI"`
		DBHost          string `json:"DBHost"`
		DBPort          string `json:"DBPort"`
		DBUser          string `json:"DBUser"`
		DBPassword      string `json:"DBPassword"`
		DBName          string `json:"DBName"`
		TxTimeoutSec    int    `json:"TxTimeoutSec"`
		ConflictRetries *int   `json:"ConflictRetries"`
	} `json:"database"`
	Redis struct {
		RedisHost      string `json:"RedisHost"`
		RedisPort      int    `json:"RedisPort"`
		RedisDB        int    `json:"RedisDB"`
		RedisPassword  string `json:"RedisPassword"`
		StatusCacheSec int    `json:"StatusCacheSec"`
	} `json:"redis"`
	Log struct {
		Level      string `json:"Level"`
		Path       string `json:"Path"`
		MaxSizeMB  int    `json:"MaxSizeMB"`
		MaxBackups int    `json:"MaxBackups"`
		MaxAgeDays int    `json:"MaxAgeDays"`
		Compress   bool   `json:"Compress"`
	} `json:"log"`
	Trace struct {
		Endpoint string `json:"Endpoint"`
		Disabled bool   `json:"Disabled"`
	} `json:"trace"`
}

// unsetRetries marks ConflictRetries as not configured; 0 is a valid value that disables retries.
const unsetRetries = -1

var cfg AppConfig
var loaded bool

// Load loads the application configuration. It should be called once during boot.
func Load() AppConfig {
	if loaded {
		return cfg
	}

	// Precedence: config/config.json -> defaults -> environment variable overrides
	cfg.ConflictRetries = unsetRetries
	if err := loadJSONConfig(filepath.Join("config", "config.json"), &cfg); err != nil {
		log.Fatalf("invalid config/config.json: %v", err)
	}

	applyDefaults(&cfg)

	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("invalid environment configuration: %v", err)
	}

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set in environment variables")
	}

	loaded = true
	return cfg
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	if !loaded {
		return Load()
	}
	return cfg
}

// loadJSONConfig reads the grouped JSON file into out if present. Returns error only for invalid JSON.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw fileConfig
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	out.AppPort = raw.App.AppPort
	out.JWTSecret = raw.App.JWTSecret
	out.AllowedOrigins = raw.App.AllowedOrigins
	out.RateLimitPerMinute = raw.App.RateLimitPerMinute
	out.RewardsConfigPath = raw.App.RewardsConfigPath
	out.GrantSweepMinutes = raw.App.GrantSweepMinutes

	out.GinMode = raw.Gin.Mode
	out.GinPath = raw.Gin.LogPath

	out.DatabaseURI = raw.Database.DatabaseURI
	out.DBHost = raw.Database.DBHost
	out.DBPort = raw.Database.DBPort
	out.DBUser = raw.Database.DBUser
	out.DBPassword = raw.Database.DBPassword
	out.DBName = raw.Database.DBName
	out.TxTimeoutSec = raw.Database.TxTimeoutSec
	if raw.Database.ConflictRetries != nil {
		out.ConflictRetries = *raw.Database.ConflictRetries
	}

	out.RedisHost = raw.Redis.RedisHost
	out.RedisPort = raw.Redis.RedisPort
	out.RedisDB = raw.Redis.RedisDB
	out.RedisPassword = raw.Redis.RedisPassword
	out.StatusCacheSec = raw.Redis.StatusCacheSec

	out.LogLevel = raw.Log.Level
	out.LogPath = raw.Log.Path
	out.LogMaxSizeMB = raw.Log.MaxSizeMB
	out.LogMaxBackups = raw.Log.MaxBackups
	out.LogMaxAgeDays = raw.Log.MaxAgeDays
	out.LogCompress = raw.Log.Compress

	out.TraceEndpoint = raw.Trace.Endpoint
	out.TraceDisabled = raw.Trace.Disabled
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 30
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBPort == "" {
		c.DBPort = "3306"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "rewards"
	}
	if c.TxTimeoutSec == 0 {
		c.TxTimeoutSec = 10
	}
	if c.ConflictRetries < 0 {
		c.ConflictRetries = 2
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.StatusCacheSec == 0 {
		c.StatusCacheSec = 30
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
	if c.RewardsConfigPath == "" {
		c.RewardsConfigPath = filepath.Join("config", "rewards.toml")
	}
	if c.GrantSweepMinutes == 0 {
		c.GrantSweepMinutes = 5
	}
}
