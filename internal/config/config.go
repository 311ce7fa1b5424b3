// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr   string
	DBPath       string
	CDPURL       string
	ChromeBinary string
	ProfileDir   string
	Headless     bool
	FillTimeout  time.Duration
	RuntimeID    string
}

// UsesRemoteBrowser returns true when the bridge should attach to an already
// running browser at CDPURL instead of launching its own.
func (c *Config) UsesRemoteBrowser() bool {
	return c.CDPURL != ""
}

// DefaultListenAddr is the address served when SELECTORPASS_LISTEN_ADDR is unset.
const DefaultListenAddr = "127.0.0.1:8090"

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional. Defaults: SELECTORPASS_LISTEN_ADDR (127.0.0.1:8090),
// SELECTORPASS_DB_PATH (selectorpass.db), SELECTORPASS_PROFILE_DIR (chrome-profile),
// SELECTORPASS_HEADLESS (false), SELECTORPASS_FILL_TIMEOUT (5s).
// SELECTORPASS_RUNTIME_ID defaults to a random UUID generated per process.
func Load() (*Config, error) {
	listenAddr := DefaultListenAddr
	if v, ok := os.LookupEnv("SELECTORPASS_LISTEN_ADDR"); ok {
		listenAddr = v
	}

	dbPath := "selectorpass.db"
	if v, ok := os.LookupEnv("SELECTORPASS_DB_PATH"); ok {
		dbPath = v
	}

	profileDir := "chrome-profile"
	if v, ok := os.LookupEnv("SELECTORPASS_PROFILE_DIR"); ok && v != "" {
		profileDir = v
	}

	headless := false
	if v, ok := os.LookupEnv("SELECTORPASS_HEADLESS"); ok && v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("SELECTORPASS_HEADLESS has invalid boolean %q: %w", v, err)
		}
		headless = parsed
	}

	fillTimeout := 5 * time.Second
	if v, ok := os.LookupEnv("SELECTORPASS_FILL_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("SELECTORPASS_FILL_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("SELECTORPASS_FILL_TIMEOUT must not be negative, got %s", parsed)
		}
		fillTimeout = parsed
	}

	runtimeID := strings.TrimSpace(os.Getenv("SELECTORPASS_RUNTIME_ID"))
	if runtimeID == "" {
		runtimeID = uuid.NewString()
	}

	return &Config{
		ListenAddr:   listenAddr,
		DBPath:       dbPath,
		CDPURL:       strings.TrimSpace(os.Getenv("SELECTORPASS_CDP_URL")),
		ChromeBinary: strings.TrimSpace(os.Getenv("SELECTORPASS_CHROME_BINARY")),
		ProfileDir:   profileDir,
		Headless:     headless,
		FillTimeout:  fillTimeout,
		RuntimeID:    runtimeID,
	}, nil
}
