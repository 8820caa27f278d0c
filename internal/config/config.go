package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		// postgres | memory
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Cache struct {
		// memory | redis
		Kind  string `yaml:"kind"`
		Redis struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	// Material de firma. Uno de los dos es obligatorio; el arranque falla si no hay clave.
	Keys struct {
		PrivateKeyPath string `yaml:"private_key_path"`
		PrivateKeyPEM  string `yaml:"private_key_pem"`
	} `yaml:"keys"`

	// Throttling del endpoint de tokens. Apagado por defecto.
	Rate struct {
		Enabled bool   `yaml:"enabled"`
		Max     int    `yaml:"max"`
		Window  string `yaml:"window"`
	} `yaml:"rate"`

	OAuth struct {
		Issuer     string `yaml:"issuer"`
		AccessTTL  string `yaml:"access_ttl"`  // default 1h
		RefreshTTL string `yaml:"refresh_ttl"` // default 720h
		CodeTTL    string `yaml:"code_ttl"`    // default 2m
	} `yaml:"oauth"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	c.applyEnvOverrides()
	return &c, nil
}

// Default construye una configuración con defaults + overrides de entorno,
// sin archivo YAML (útil para contenedores configurados solo por env).
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	c.applyEnvOverrides()
	return c
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "2m"
	}
	if c.Rate.Max == 0 {
		c.Rate.Max = 60
	}
	if c.Rate.Window == "" {
		c.Rate.Window = "1m"
	}
	if c.OAuth.Issuer == "" {
		c.OAuth.Issuer = "http://localhost:8080"
	}
	if c.OAuth.AccessTTL == "" {
		c.OAuth.AccessTTL = "1h"
	}
	if c.OAuth.RefreshTTL == "" {
		c.OAuth.RefreshTTL = "720h" // 30d
	}
	if c.OAuth.CodeTTL == "" {
		c.OAuth.CodeTTL = "2m"
	}
}

func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("STORAGE_DRIVER"); ok {
		c.Storage.Driver = v
	}
	if v, ok := getEnvStr("STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvInt("STORAGE_PG_MAX_OPEN_CONNS"); ok {
		c.Storage.Postgres.MaxOpenConns = v
	}
	if v, ok := getEnvInt("STORAGE_PG_MAX_IDLE_CONNS"); ok {
		c.Storage.Postgres.MaxIdleConns = v
	}
	if v, ok := getEnvStr("CACHE_KIND"); ok {
		c.Cache.Kind = v
	}
	if v, ok := getEnvStr("CACHE_REDIS_ADDR"); ok {
		c.Cache.Redis.Addr = v
	}
	if v, ok := getEnvStr("CACHE_REDIS_PASSWORD"); ok {
		c.Cache.Redis.Password = v
	}
	if v, ok := getEnvInt("CACHE_REDIS_DB"); ok {
		c.Cache.Redis.DB = v
	}
	if v, ok := getEnvStr("CACHE_REDIS_PREFIX"); ok {
		c.Cache.Redis.Prefix = v
	}
	if v, ok := getEnvStr("KEYS_PRIVATE_KEY_PATH"); ok {
		c.Keys.PrivateKeyPath = v
	}
	if v, ok := getEnvStr("KEYS_PRIVATE_KEY_PEM"); ok {
		c.Keys.PrivateKeyPEM = v
	}
	if v, ok := getEnvStr("RATE_ENABLED"); ok {
		c.Rate.Enabled = v == "true" || v == "1"
	}
	if v, ok := getEnvInt("RATE_MAX"); ok {
		c.Rate.Max = v
	}
	if v, ok := getEnvStr("RATE_WINDOW"); ok {
		c.Rate.Window = v
	}
	if v, ok := getEnvStr("OAUTH_ISSUER"); ok {
		c.OAuth.Issuer = v
	}
	if v, ok := getEnvStr("OAUTH_ACCESS_TTL"); ok {
		c.OAuth.AccessTTL = v
	}
	if v, ok := getEnvStr("OAUTH_REFRESH_TTL"); ok {
		c.OAuth.RefreshTTL = v
	}
	if v, ok := getEnvStr("OAUTH_CODE_TTL"); ok {
		c.OAuth.CodeTTL = v
	}
}

// Validate chequea lo mínimo indispensable para arrancar.
// La clave de firma es obligatoria: sin material no hay IdP.
func (c *Config) Validate() error {
	if c.Keys.PrivateKeyPath == "" && c.Keys.PrivateKeyPEM == "" {
		return errors.New("config: keys.private_key_path o keys.private_key_pem es obligatorio")
	}
	if c.OAuth.Issuer == "" {
		return errors.New("config: oauth.issuer es obligatorio")
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return errors.New("config: storage.dsn es obligatorio con driver postgres")
	}
	return nil
}

// AccessTTL parsea el TTL de access tokens (default 1h si es inválido).
func (c *Config) AccessTTL() time.Duration { return durOr(c.OAuth.AccessTTL, time.Hour) }

// RefreshTTL parsea el TTL de refresh tokens (default 30d si es inválido).
func (c *Config) RefreshTTL() time.Duration { return durOr(c.OAuth.RefreshTTL, 720*time.Hour) }

// CodeTTL parsea el TTL de authorization codes (default 2m si es inválido).
func (c *Config) CodeTTL() time.Duration { return durOr(c.OAuth.CodeTTL, 2*time.Minute) }

// RateWindow parsea la ventana del limitador (default 1m si es inválida).
func (c *Config) RateWindow() time.Duration { return durOr(c.Rate.Window, time.Minute) }

func durOr(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil && d > 0 {
		return d
	}
	return def
}

func getEnvStr(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
}

func getEnvInt(key string) (int, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return n, true
}
