package config

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageSQLite = "sqlite"
	StorageBadger = "badger"
	StorageRedis  = "redis"
	StorageMemory = "memory"
	StorageNone   = "none"
)

type Config struct {
	APIBaseURL     string
	LogLevel       string
	LogFormat      string
	Storage        string
	ConfigDir      string
	SQLitePath     string
	BadgerDir      string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	LocalHost      string
	LocalPort      int
	HTTPTimeout    time.Duration
	AutosaveDelay  time.Duration
	CaptchaSiteKey string
}

// LoadDotEnv loads KEY=VALUE files into the environment without overriding
// variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

func LoadConfig() Config {
	base := strings.TrimRight(os.Getenv("LANDFORM_API_BASE_URL"), "/")
	if base == "" {
		base = "http://127.0.0.1:3000"
	}

	level := os.Getenv("LANDFORM_LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	format := os.Getenv("LANDFORM_LOG_FORMAT")
	if format == "" {
		format = "json"
	}

	storage := strings.ToLower(strings.TrimSpace(os.Getenv("LANDFORM_STORAGE")))
	switch storage {
	case StorageSQLite, StorageBadger, StorageRedis, StorageMemory, StorageNone:
	default:
		storage = StorageSQLite
	}

	configDir, err := DefaultConfigDir()
	if err != nil {
		configDir = filepath.Clean(".landform")
	}
	sqlitePath := os.Getenv("LANDFORM_SQLITE_PATH")
	if sqlitePath == "" {
		sqlitePath = filepath.Join(configDir, "landform.db")
	}
	badgerDir := os.Getenv("LANDFORM_BADGER_DIR")
	if badgerDir == "" {
		badgerDir = filepath.Join(configDir, "badger")
	}

	redisAddr := os.Getenv("LANDFORM_REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "127.0.0.1:6379"
	}
	redisDB := 0
	if v := os.Getenv("LANDFORM_REDIS_DB"); v != "" {
		redisDB = atoiOrDefault(v, 0)
	}

	localHost := os.Getenv("LANDFORM_LOCAL_HOST")
	if localHost == "" {
		localHost = "127.0.0.1"
	}
	localPort := atoiOrDefault(os.Getenv("LANDFORM_LOCAL_PORT"), 4780)

	timeoutMS := atoiOrDefault(os.Getenv("LANDFORM_HTTP_TIMEOUT_MS"), 15000)
	autosaveMS := atoiOrDefault(os.Getenv("LANDFORM_AUTOSAVE_DELAY_MS"), 500)

	return Config{
		APIBaseURL:     base,
		LogLevel:       level,
		LogFormat:      format,
		Storage:        storage,
		ConfigDir:      configDir,
		SQLitePath:     sqlitePath,
		BadgerDir:      badgerDir,
		RedisAddr:      redisAddr,
		RedisPassword:  os.Getenv("LANDFORM_REDIS_PASSWORD"),
		RedisDB:        redisDB,
		LocalHost:      localHost,
		LocalPort:      localPort,
		HTTPTimeout:    time.Duration(timeoutMS) * time.Millisecond,
		AutosaveDelay:  time.Duration(autosaveMS) * time.Millisecond,
		CaptchaSiteKey: os.Getenv("LANDFORM_CAPTCHA_SITE_KEY"),
	}
}

// DefaultConfigDir returns ~/.config/landform unless LANDFORM_CONFIG_DIR is set.
func DefaultConfigDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv("LANDFORM_CONFIG_DIR")); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "landform"), nil
}

// ListenAddr is the host:port the bridge server binds.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.LocalHost, strconv.Itoa(c.LocalPort))
}

func atoiOrDefault(v string, fallback int) int {
	n := 0
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return fallback
		}
		n = n*10 + int(v[i]-'0')
	}
	if n == 0 {
		return fallback
	}
	return n
}
