// Package config loads settings from built-in defaults, an optional TOML
// file and TODO_ prefixed environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "TODO_"

const (
	DefaultDataFile      = "data/data.json"
	DefaultUsersFile     = "data/users.json"
	DefaultBackupDir     = "backups"
	DefaultCacheTTL      = 30 * time.Second
	DefaultListenAddr    = ":8080"
	DefaultTokenTTL      = 30 * time.Minute
	DefaultWriteLeaseTTL = 10 * time.Second
	DefaultWriteLeaseKey = "todo-api:write-lease"
)

// Config holds the settings shared by the API server and the cleaning CLI.
type Config struct {
	DataFile  string `toml:"data_file"  env:"DATA_FILE"`
	UsersFile string `toml:"users_file" env:"USERS_FILE"`
	BackupDir string `toml:"backup_dir" env:"BACKUP_DIR"`

	CacheTTL   time.Duration `toml:"cache_ttl"   env:"CACHE_TTL"`
	ListenAddr string        `toml:"listen_addr" env:"LISTEN_ADDR"`
	Debug      bool          `toml:"debug"       env:"DEBUG"`

	JWTSecret string        `toml:"jwt_secret" env:"JWT_SECRET"`
	TokenTTL  time.Duration `toml:"token_ttl"  env:"TOKEN_TTL"`

	RedisURL      string        `toml:"redis_url"       env:"REDIS_URL"`
	WriteLeaseKey string        `toml:"write_lease_key" env:"WRITE_LEASE_KEY"`
	WriteLeaseTTL time.Duration `toml:"write_lease_ttl" env:"WRITE_LEASE_TTL"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		DataFile:      DefaultDataFile,
		UsersFile:     DefaultUsersFile,
		BackupDir:     DefaultBackupDir,
		CacheTTL:      DefaultCacheTTL,
		ListenAddr:    DefaultListenAddr,
		TokenTTL:      DefaultTokenTTL,
		WriteLeaseKey: DefaultWriteLeaseKey,
		WriteLeaseTTL: DefaultWriteLeaseTTL,
	}
}

// Load builds the configuration. path may be empty; a named file that does
// not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("decode %s: unknown key %q", path, undecoded[0].String())
	}
	return nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	var errs []error
	if c.DataFile == "" {
		errs = append(errs, errors.New("data_file is required"))
	}
	if c.UsersFile == "" {
		errs = append(errs, errors.New("users_file is required"))
	}
	if c.BackupDir == "" {
		errs = append(errs, errors.New("backup_dir is required"))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("cache_ttl must not be negative, got %s", c.CacheTTL))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("token_ttl must be positive, got %s", c.TokenTTL))
	}
	if c.WriteLeaseTTL <= 0 {
		errs = append(errs, fmt.Errorf("write_lease_ttl must be positive, got %s", c.WriteLeaseTTL))
	}
	return errors.Join(errs...)
}
