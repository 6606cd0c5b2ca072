/*
config.go - Runtime configuration

PURPOSE:
  Collects the settings shared by cmd/server and cmd/leavectl from the
  environment. A .env file in the working directory is loaded first when
  present; variables already set in the environment win.

VARIABLES:
  LEAVE_PORT             HTTP port (default: 8080)
  LEAVE_DB_PATH          SQLite database path (default: leave.db)
  LEAVE_ENV              development | production (default: development)
  LEAVE_EDIT_REBALANCE   true to re-deduct balances on edit (default: false)
  LEAVE_ALLOWED_ORIGINS  comma-separated CORS origins
  LEAVE_PROVISION_EVERY  balance provisioning interval, 0 disables (default: 1h)

SEE ALSO:
  - cmd/server/main.go: flags override Port and DBPath
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/firestation/leave-engine/leave"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Port           int
	DBPath         string
	Env            string
	EditRebalance  bool
	AllowedOrigins []string

	ProvisionInterval time.Duration
}

func Default() Config {
	return Config{
		Port:           8080,
		DBPath:         "leave.db",
		Env:            EnvDevelopment,
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},

		ProvisionInterval: time.Hour,
	}
}

// Load reads .env (if any) and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, falling back to Default for unset keys.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if v, ok := lookup("LEAVE_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("LEAVE_PORT: invalid port %q", v)
		}
		cfg.Port = port
	}
	if v, ok := lookup("LEAVE_DB_PATH"); ok && v != "" {
		cfg.DBPath = v
	}
	if v, ok := lookup("LEAVE_ENV"); ok && v != "" {
		switch v {
		case EnvDevelopment, EnvProduction:
			cfg.Env = v
		default:
			return Config{}, fmt.Errorf("LEAVE_ENV: must be %q or %q, got %q", EnvDevelopment, EnvProduction, v)
		}
	}
	if v, ok := lookup("LEAVE_EDIT_REBALANCE"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("LEAVE_EDIT_REBALANCE: %w", err)
		}
		cfg.EditRebalance = b
	}
	if v, ok := lookup("LEAVE_ALLOWED_ORIGINS"); ok && v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.AllowedOrigins = origins
	}
	if v, ok := lookup("LEAVE_PROVISION_EVERY"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("LEAVE_PROVISION_EVERY: invalid duration %q", v)
		}
		cfg.ProvisionInterval = d
	}
	return cfg, nil
}

func (c Config) Production() bool { return c.Env == EnvProduction }

// EditPolicy maps EditRebalance onto the service option.
func (c Config) EditPolicy() leave.EditPolicy {
	if c.EditRebalance {
		return leave.EditRebalance
	}
	return leave.EditKeepBalance
}
