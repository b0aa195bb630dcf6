// Package config provides the client configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	TransportHTTP = "http"
	TransportA2A  = "a2a"

	HandshakeExplicit    = "explicit"
	HandshakeIncremental = "incremental"
)

type Config struct {
	Assistant struct {
		Transport string
		Endpoint  string
		A2AURL    string
	}
	Session struct {
		Handshake string
	}
	Catalog struct {
		File string
	}
	Logging struct {
		Level string
		File  string
	}
	Export struct {
		Dir string
	}
}

func DefaultConfig() Config {
	cfg := Config{}
	cfg.Assistant.Transport = TransportHTTP
	cfg.Assistant.Endpoint = "http://localhost:8000/chat"
	cfg.Assistant.A2AURL = ""
	cfg.Session.Handshake = HandshakeExplicit
	cfg.Catalog.File = ""
	cfg.Logging.Level = "info"
	cfg.Logging.File = ""
	cfg.Export.Dir = "."
	return cfg
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// Load returns the defaults overlaid with the process environment. When
// dotenv is non-empty that file is loaded first; a missing file is not an
// error.
func Load(dotenv string) (Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}
	cfg := DefaultConfig()
	ApplyEnv(&cfg, os.LookupEnv)
	return cfg, nil
}

// ApplyEnv overlays BANKCHAT_* variables onto cfg.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	get := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	get("BANKCHAT_TRANSPORT", &cfg.Assistant.Transport)
	get("BANKCHAT_ENDPOINT", &cfg.Assistant.Endpoint)
	get("BANKCHAT_A2A_URL", &cfg.Assistant.A2AURL)
	get("BANKCHAT_HANDSHAKE", &cfg.Session.Handshake)
	get("BANKCHAT_CATALOG", &cfg.Catalog.File)
	get("BANKCHAT_LOG_LEVEL", &cfg.Logging.Level)
	get("BANKCHAT_LOG_FILE", &cfg.Logging.File)
	get("BANKCHAT_EXPORT_DIR", &cfg.Export.Dir)
	cfg.Assistant.Transport = strings.ToLower(cfg.Assistant.Transport)
	cfg.Session.Handshake = strings.ToLower(cfg.Session.Handshake)
}

// Validate checks the transport and handshake settings.
func (c Config) Validate() error {
	switch c.Assistant.Transport {
	case TransportHTTP:
		if c.Assistant.Endpoint == "" {
			return fmt.Errorf("BANKCHAT_ENDPOINT cannot be empty for the http transport")
		}
	case TransportA2A:
		if c.Assistant.A2AURL == "" {
			return fmt.Errorf("BANKCHAT_A2A_URL cannot be empty for the a2a transport")
		}
	default:
		return fmt.Errorf("unknown transport %q (want http or a2a)", c.Assistant.Transport)
	}
	switch c.Session.Handshake {
	case HandshakeExplicit, HandshakeIncremental:
	default:
		return fmt.Errorf("unknown handshake %q (want explicit or incremental)", c.Session.Handshake)
	}
	return nil
}
