package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/flagx"
	"github.com/dmitrijs2005/gophauth/internal/timex"
	"gopkg.in/yaml.v3"
)

// FileConfig is the shape of the optional config file. Durations accept
// strings such as "15m" or integer nanoseconds. Only fields present in the
// file override earlier values.
type FileConfig struct {
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`

	DatabaseDSN       string          `json:"database_dsn" yaml:"database_dsn"`
	DBMaxOpenConns    *int            `json:"database_max_open_conns" yaml:"database_max_open_conns"`
	DBMaxIdleConns    *int            `json:"database_max_idle_conns" yaml:"database_max_idle_conns"`
	DBConnMaxLifetime *timex.Duration `json:"database_conn_max_lifetime" yaml:"database_conn_max_lifetime"`
	Migrate           *bool           `json:"database_migrate" yaml:"database_migrate"`
	UsersBackend      string          `json:"users_backend" yaml:"users_backend"`
	TokensBackend     string          `json:"tokens_backend" yaml:"tokens_backend"`
	RedisAddr         string          `json:"redis_addr" yaml:"redis_addr"`
	RedisPassword     string          `json:"redis_password" yaml:"redis_password"`
	RedisDB           *int            `json:"redis_db" yaml:"redis_db"`
	RedisPrefix       string          `json:"redis_prefix" yaml:"redis_prefix"`

	Issuer           string          `json:"token_issuer" yaml:"token_issuer"`
	AccessKey        string          `json:"access_token_key" yaml:"access_token_key"`
	AccessPublicKey  string          `json:"access_token_public_key" yaml:"access_token_public_key"`
	AccessTokenTTL   *timex.Duration `json:"access_token_ttl" yaml:"access_token_ttl"`
	RefreshKey       string          `json:"refresh_token_key" yaml:"refresh_token_key"`
	RefreshPublicKey string          `json:"refresh_token_public_key" yaml:"refresh_token_public_key"`
	RefreshTokenTTL  *timex.Duration `json:"refresh_token_ttl" yaml:"refresh_token_ttl"`
	BcryptCost       *int            `json:"bcrypt_cost" yaml:"bcrypt_cost"`

	LogLevel        string          `json:"log_level" yaml:"log_level"`
	ShutdownTimeout *timex.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	Metrics         *bool           `json:"metrics_enabled" yaml:"metrics_enabled"`
}

// parseFile overlays the file named by -c/-config, if any. Files ending in
// .yaml or .yml are read as YAML, anything else as JSON.
func parseFile(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	fc := &FileConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, fc)
	default:
		err = json.Unmarshal(data, fc)
	}
	if err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	fc.apply(config)
	return nil
}

func (fc *FileConfig) apply(c *Config) {
	setString(&c.ListenAddr, fc.ListenAddr)
	setString(&c.DatabaseDSN, fc.DatabaseDSN)
	set(&c.DBMaxOpenConns, fc.DBMaxOpenConns)
	set(&c.DBMaxIdleConns, fc.DBMaxIdleConns)
	if fc.DBConnMaxLifetime != nil {
		c.DBConnMaxLifetime = fc.DBConnMaxLifetime.Duration
	}
	set(&c.Migrate, fc.Migrate)
	setString(&c.UsersBackend, fc.UsersBackend)
	setString(&c.TokensBackend, fc.TokensBackend)
	setString(&c.RedisAddr, fc.RedisAddr)
	setString(&c.RedisPassword, fc.RedisPassword)
	set(&c.RedisDB, fc.RedisDB)
	setString(&c.RedisPrefix, fc.RedisPrefix)

	setString(&c.Issuer, fc.Issuer)
	setString(&c.AccessKey, fc.AccessKey)
	setString(&c.AccessPublicKey, fc.AccessPublicKey)
	if fc.AccessTokenTTL != nil {
		c.AccessTokenTTL = fc.AccessTokenTTL.Duration
	}
	setString(&c.RefreshKey, fc.RefreshKey)
	setString(&c.RefreshPublicKey, fc.RefreshPublicKey)
	if fc.RefreshTokenTTL != nil {
		c.RefreshTokenTTL = fc.RefreshTokenTTL.Duration
	}
	set(&c.BcryptCost, fc.BcryptCost)

	setString(&c.LogLevel, fc.LogLevel)
	if fc.ShutdownTimeout != nil {
		c.ShutdownTimeout = fc.ShutdownTimeout.Duration
	}
	set(&c.Metrics, fc.Metrics)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
